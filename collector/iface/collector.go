// Package iface declares the capability contract every provider adapter
// implements. The concrete variant is chosen once at process start from the
// --provider flag.
package iface

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/kfdevops/cloudbilling/collector/domain"
)

//go:generate mockery --name Collector --output ../mocks
type Collector interface {
	// Provider reports which partition the adapter's records belong to.
	Provider() domain.Provider

	// Collect fetches and normalizes one calendar day of spend. Returned
	// records are already enriched, zero-cost filtered and normalized.
	// Collecting a day with no spend returns an empty slice, not an error.
	Collect(ctx context.Context, day civil.Date) ([]*domain.Record, error)
}
