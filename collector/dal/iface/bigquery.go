package iface

import (
	"context"

	"cloud.google.com/go/bigquery"

	"github.com/kfdevops/cloudbilling/collector/domain"
)

// PartitionStore is the slice of the BigQuery surface the writer uses.
// *dal.BigQueryStore satisfies it.
//
//go:generate mockery --name PartitionStore --output ../mocks
type PartitionStore interface {
	// RunDML executes the statement as a query job and waits until the job
	// reaches a durable done state. It returns only after the mutation is
	// complete, or with the job's terminal error.
	RunDML(ctx context.Context, query string, params []bigquery.QueryParameter) error

	// InsertRows streams one batch into the target table. Row-level rejects
	// surface as bigquery.PutMultiError.
	InsertRows(ctx context.Context, rows []*domain.Record) error
}
