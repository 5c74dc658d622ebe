package iface

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/kfdevops/cloudbilling/collector/domain"
)

//go:generate mockery --name Writer --output ../mocks
type Writer interface {
	// Replace atomically-enough swaps the (day, provider) partition: it
	// deletes the existing rows, waits for the delete to complete, then
	// bulk-inserts the batch. Returns the number of rows written.
	//
	// Replace is idempotent for a fixed batch but NOT safe to run
	// concurrently for the same (day, provider): two interleaved runs can
	// duplicate or drop rows. One active job per provider and day.
	Replace(ctx context.Context, day civil.Date, provider domain.Provider, records []*domain.Record) (int, error)
}
