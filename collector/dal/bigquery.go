// Package dal owns the fact-table write path: an idempotent delete-then-insert
// replace of one (billing_date, provider) partition.
package dal

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/pkg/errors"

	"github.com/kfdevops/cloudbilling/collector/dal/iface"
	"github.com/kfdevops/cloudbilling/collector/domain"
	"github.com/kfdevops/cloudbilling/framework/config"
	"github.com/kfdevops/cloudbilling/logger"
)

// insertBatchSize bounds a single streaming-insert request.
const insertBatchSize = 500

type BillingWriter struct {
	store          iface.PartitionStore
	target         config.Target
	loggerProvider logger.Provider
}

// NewBillingWriter returns a new BillingWriter for the configured target
// table.
func NewBillingWriter(ctx context.Context, loggerProvider logger.Provider, target config.Target) (*BillingWriter, error) {
	bq, err := bigquery.NewClient(ctx, target.Project)
	if err != nil {
		return nil, errors.Wrap(err, "bigquery client")
	}

	return NewBillingWriterWithClient(loggerProvider, target, bq), nil
}

// NewBillingWriterWithClient returns a new BillingWriter using the given
// BigQuery client.
func NewBillingWriterWithClient(loggerProvider logger.Provider, target config.Target, bq *bigquery.Client) *BillingWriter {
	return NewBillingWriterWithStore(loggerProvider, target, &BigQueryStore{client: bq, target: target})
}

// NewBillingWriterWithStore returns a new BillingWriter over the given store.
func NewBillingWriterWithStore(loggerProvider logger.Provider, target config.Target, store iface.PartitionStore) *BillingWriter {
	return &BillingWriter{
		store:          store,
		target:         target,
		loggerProvider: loggerProvider,
	}
}

// Replace swaps the partition's content for the given batch.
//
// The delete runs as a query job and is waited to durable completion before
// the first insert request: a retried insert after a partial failure must
// never land on top of the previous batch. Any rejected row fails the whole
// replace; an under-populated partition is worse than a visible failure.
//
// Not safe for concurrent runs on the same (day, provider) — the two
// delete/insert sequences can interleave. One active job per provider+day.
func (w *BillingWriter) Replace(ctx context.Context, day civil.Date, provider domain.Provider, records []*domain.Record) (int, error) {
	log := w.loggerProvider(ctx)

	if len(records) == 0 {
		log.Infof("%s %s: empty batch, partition left untouched", provider, day)
		return 0, nil
	}

	err := w.store.RunDML(ctx, deleteQuery(w.target), []bigquery.QueryParameter{
		{Name: "billing_date", Value: day},
		{Name: "provider", Value: string(provider)},
	})
	if err != nil {
		return 0, errors.Wrap(err, "delete partition")
	}

	log.Infof("%s %s: existing rows cleared", provider, day)

	for _, batch := range batchRecords(records, insertBatchSize) {
		if err := w.store.InsertRows(ctx, batch); err != nil {
			var rowErrs bigquery.PutMultiError
			if errors.As(err, &rowErrs) {
				return 0, errors.Errorf("insert into %s rejected %d of %d rows for %s %s",
					w.target.FullyQualifiedName(), len(rowErrs), len(records), provider, day)
			}

			return 0, errors.Wrapf(err, "insert into %s", w.target.FullyQualifiedName())
		}
	}

	return len(records), nil
}

// BigQueryStore runs the writer's partition operations on a live client.
type BigQueryStore struct {
	client *bigquery.Client
	target config.Target
}

func (s *BigQueryStore) RunDML(ctx context.Context, queryText string, params []bigquery.QueryParameter) error {
	query := s.client.Query(queryText)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return err
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}

	return status.Err()
}

func (s *BigQueryStore) InsertRows(ctx context.Context, rows []*domain.Record) error {
	return s.client.Dataset(s.target.Dataset).Table(s.target.Table).Inserter().Put(ctx, rows)
}

// deleteQuery interpolates only identifiers that passed the configuration
// allow-list; the partition keys stay bound parameters.
func deleteQuery(target config.Target) string {
	return fmt.Sprintf(
		"DELETE FROM `%s` WHERE billing_date = @billing_date AND provider = @provider",
		target.FullyQualifiedName(),
	)
}

func batchRecords(records []*domain.Record, size int) [][]*domain.Record {
	var batches [][]*domain.Record

	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}

		batches = append(batches, records[start:end])
	}

	return batches
}
