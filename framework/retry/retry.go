// Package retry wraps outbound provider calls with bounded exponential
// backoff. Rate limiting and server faults are transient; everything else is
// permanent and surfaces immediately. Required calls raise after exhaustion,
// optional enrichment calls degrade to an empty result with a warning.
package retry

import (
	"context"
	"net"
	"time"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"

	"github.com/kfdevops/cloudbilling/collector/domain"
	"github.com/kfdevops/cloudbilling/framework/redact"
	"github.com/kfdevops/cloudbilling/logger"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
)

// Retryer applies the retry policy. The zero value is not usable; construct
// with New.
type Retryer struct {
	MaxAttempts int
	// BaseDelay is the wait after the first failed attempt; it doubles on
	// every subsequent one.
	BaseDelay time.Duration

	log logger.Provider
}

func New(log logger.Provider) *Retryer {
	return &Retryer{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		log:         log,
	}
}

// Do runs a required call. Transient failures are retried up to MaxAttempts;
// the final error is returned after exhaustion, permanent errors immediately.
func (r *Retryer) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := r.log(ctx)
	delay := r.BaseDelay

	var err error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		if !IsTransient(err) {
			return errors.Wrap(err, op)
		}

		if attempt == r.MaxAttempts {
			break
		}

		log.Warningf("%s: transient failure (%s), attempt %d/%d, retrying in %s",
			op, redact.Error(err), attempt, r.MaxAttempts, delay)

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), op)
		case <-time.After(delay):
		}

		delay *= 2
	}

	return errors.Wrapf(err, "%s: retries exhausted", op)
}

// DoOptional runs an enrichment call. Any failure, transient retries
// included, degrades to false with a warning instead of an error: missing
// enrichment must never abort a day's collection.
func (r *Retryer) DoOptional(ctx context.Context, op string, fn func(ctx context.Context) error) bool {
	if err := r.Do(ctx, op, fn); err != nil {
		r.log(ctx).Warningf("%s: enrichment unavailable (%s), continuing with defaults", op, redact.Error(err))
		return false
	}

	return true
}

// IsTransient classifies provider failures worth retrying: throttling and
// server-side faults, in all the shapes the four vendor SDKs produce them.
func IsTransient(err error) bool {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case "Throttling", "ThrottlingException", "RequestLimitExceeded",
			"TooManyRequestsException", "ServiceUnavailable",
			"InternalError", "InternalServiceError":
			return true
		}

		var reqErr awserr.RequestFailure
		if errors.As(err, &reqErr) {
			return transientStatus(reqErr.StatusCode())
		}

		return false
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return transientStatus(gErr.Code)
	}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

func transientStatus(code int) bool {
	return code == 429 || code >= 500
}
