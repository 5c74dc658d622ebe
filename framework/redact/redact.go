// Package redact renders errors for logging without leaking secret material:
// error codes, HTTP statuses and exception kinds only, never vendor response
// text or credential fragments.
package redact

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"

	"github.com/kfdevops/cloudbilling/collector/domain"
)

// Error reduces err to a loggable string. AWS errors keep only their code,
// Google API errors only their status, provider API errors are already
// code-only; anything else falls back to its dynamic type name.
func Error(err error) string {
	if err == nil {
		return ""
	}

	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		return fmt.Sprintf("aws error code %s", awsErr.Code())
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return fmt.Sprintf("googleapi status %d", gErr.Code)
	}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}

	return fmt.Sprintf("%T", errors.Cause(err))
}

// Message renders err for a failure log line. The wrap chain carries only
// operation labels written in this codebase and is kept; a vendor root cause
// is replaced with its Error rendering. Vendor auth failures quote request
// URLs and credential fragments back in their message text.
func Message(err error) string {
	if err == nil {
		return ""
	}

	cause := errors.Cause(err)
	if ownError(cause) {
		return err.Error()
	}

	chain := strings.TrimSuffix(err.Error(), cause.Error())
	chain = strings.TrimSuffix(chain, ": ")

	if chain == "" {
		return Error(err)
	}

	return chain + ": " + Error(err)
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// ownError reports whether the root cause was produced inside this codebase.
// Everything built with pkg/errors carries a stack trace; vendor SDK and
// transport errors do not.
func ownError(cause error) bool {
	switch cause.(type) {
	case *domain.APIError, *multierror.Error:
		return true
	}

	_, ok := cause.(stackTracer)

	return ok
}
