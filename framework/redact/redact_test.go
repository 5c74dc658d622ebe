package redact

import (
	"io"
	"net/url"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/kfdevops/cloudbilling/collector/domain"
)

func TestErrorStripsAWSMessage(t *testing.T) {
	err := awserr.New("AccessDeniedException",
		"User arn:aws:iam::999999999999:user/collector is not authorized (key AKIASECRETSECRET)", nil)

	got := Error(err)

	assert.Equal(t, "aws error code AccessDeniedException", got)
	assert.NotContains(t, got, "AKIA")
	assert.NotContains(t, got, "999999999999")
}

func TestErrorGoogleAPIKeepsStatusOnly(t *testing.T) {
	err := &googleapi.Error{Code: 403, Message: "Access Denied: Table secret-tenant:billing.export"}

	got := Error(err)

	assert.Equal(t, "googleapi status 403", got)
	assert.NotContains(t, got, "secret-tenant")
}

func TestErrorAPIError(t *testing.T) {
	err := &domain.APIError{Op: "atlas list invoices", StatusCode: 401}
	assert.Equal(t, "atlas list invoices: http status 401", Error(err))
}

func TestErrorWrappedFallsBackToTypeName(t *testing.T) {
	err := errors.Wrap(errors.New("password=hunter2 rejected"), "connect")

	got := Error(err)

	assert.NotContains(t, got, "hunter2")
}

func TestErrorNil(t *testing.T) {
	assert.Equal(t, "", Error(nil))
}

func TestMessageKeepsChainRedactsVendorCause(t *testing.T) {
	err := errors.Wrap(
		errors.Wrap(
			awserr.New("UnrecognizedClientException", "The security token included in the request is invalid", nil),
			"aws cost explorer daily costs"),
		"collect 2026-02-25")

	got := Message(err)

	assert.Equal(t, "collect 2026-02-25: aws cost explorer daily costs: aws error code UnrecognizedClientException", got)
	assert.NotContains(t, got, "security token")
}

func TestMessageStripsTransportURL(t *testing.T) {
	cause := &url.Error{
		Op:  "Get",
		URL: "https://cloud.mongodb.com/api/atlas/v1.0/orgs/5f2211aabbccddeeff001122/invoices",
		Err: io.EOF,
	}
	err := errors.Wrap(cause, "atlas invoice list")

	got := Message(err)

	assert.Contains(t, got, "atlas invoice list")
	assert.NotContains(t, got, "5f2211aabbccddeeff001122")
	assert.NotContains(t, got, "cloud.mongodb.com")
}

func TestMessageKeepsOwnErrors(t *testing.T) {
	err := errors.New("date and backfill are mutually exclusive")
	assert.Equal(t, "date and backfill are mutually exclusive", Message(err))

	merr := multierror.Append(nil,
		errors.New("secret AWS_ACCESS_KEY_ID is not set"),
		errors.New("secret AWS_SECRET_ACCESS_KEY is not set"),
	)
	assert.Contains(t, Message(merr), "AWS_SECRET_ACCESS_KEY")
}

func TestMessageAPIErrorCause(t *testing.T) {
	err := errors.Wrap(&domain.APIError{Op: "atlas invoice detail", StatusCode: 401}, "collect 2026-02-25")
	assert.Equal(t, "collect 2026-02-25: atlas invoice detail: http status 401", Message(err))
}
