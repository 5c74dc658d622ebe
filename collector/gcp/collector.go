// Package gcp collects one day of GCP spend from the native BigQuery billing
// export. The transformation lives in a single templated query; credits come
// back separately and are netted against gross cost in Go.
package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/kfdevops/cloudbilling/collector/domain"
	"github.com/kfdevops/cloudbilling/framework/config"
	"github.com/kfdevops/cloudbilling/framework/retry"
	"github.com/kfdevops/cloudbilling/logger"
)

type BillingExportCollector struct {
	bigqueryClient *bigquery.Client
	cfg            *config.Config
	retryer        *retry.Retryer
	loggerProvider logger.Provider
	now            func() time.Time
}

func NewBillingExportCollector(ctx context.Context, cfg *config.Config, loggerProvider logger.Provider) (*BillingExportCollector, error) {
	bq, err := bigquery.NewClient(ctx, cfg.Target.Project)
	if err != nil {
		return nil, errors.Wrap(err, "bigquery client")
	}

	return NewBillingExportCollectorWithClient(cfg, loggerProvider, bq), nil
}

func NewBillingExportCollectorWithClient(cfg *config.Config, loggerProvider logger.Provider, bq *bigquery.Client) *BillingExportCollector {
	return &BillingExportCollector{
		bigqueryClient: bq,
		cfg:            cfg,
		retryer:        retry.New(loggerProvider),
		loggerProvider: loggerProvider,
		now:            time.Now,
	}
}

func (c *BillingExportCollector) Provider() domain.Provider {
	return domain.ProviderGCP
}

func (c *BillingExportCollector) Collect(ctx context.Context, day civil.Date) ([]*domain.Record, error) {
	log := c.loggerProvider(ctx)

	var rows []exportRow

	err := c.retryer.Do(ctx, "gcp billing export query", func(ctx context.Context) error {
		var err error
		rows, err = c.fetchExportRows(ctx, day)

		return err
	})
	if err != nil {
		return nil, err
	}

	collectedAt := c.now().UTC()
	records := make([]*domain.Record, 0, len(rows))

	for i := range rows {
		records = append(records, c.toRecord(&rows[i], day, collectedAt))
	}

	records = domain.DropZeroCost(records)
	log.Infof("GCP %s: %d line items (scan capped at %d bytes)", day, len(records), c.cfg.GCP.MaxScannedBytes)

	return records, nil
}

func (c *BillingExportCollector) fetchExportRows(ctx context.Context, day civil.Date) ([]exportRow, error) {
	query := c.bigqueryClient.Query(sourceQuery(c.cfg.GCP))
	query.MaxBytesBilled = c.cfg.GCP.MaxScannedBytes
	query.Parameters = []bigquery.QueryParameter{
		{Name: "billing_date", Value: day},
	}

	it, err := query.Read(ctx)
	if err != nil {
		return nil, err
	}

	var rows []exportRow

	for {
		var row exportRow

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}

		if err != nil {
			return nil, err
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// exportRow is the shape of one transformed billing-export line item.
type exportRow struct {
	AccountID      bigquery.NullString  `bigquery:"account_id"`
	AccountName    bigquery.NullString  `bigquery:"account_name"`
	ServiceName    bigquery.NullString  `bigquery:"service_name"`
	SKU            bigquery.NullString  `bigquery:"sku"`
	SKUDescription bigquery.NullString  `bigquery:"sku_description"`
	ResourceID     bigquery.NullString  `bigquery:"resource_id"`
	ResourceName   bigquery.NullString  `bigquery:"resource_name"`
	ResourceType   bigquery.NullString  `bigquery:"resource_type"`
	Cost           float64              `bigquery:"cost"`
	CreditsTotal   float64              `bigquery:"credits_total"`
	Currency       bigquery.NullString  `bigquery:"currency"`
	UsageAmount    bigquery.NullFloat64 `bigquery:"usage_amount"`
	UsageUnit      bigquery.NullString  `bigquery:"usage_unit"`
	Team           bigquery.NullString  `bigquery:"team"`
	Environment    bigquery.NullString  `bigquery:"environment"`
	Region         bigquery.NullString  `bigquery:"region"`
	Tags           bigquery.NullString  `bigquery:"tags"`
}

// toRecord nets credits (negative amounts) against the gross cost and keeps
// the gross for audit.
func (c *BillingExportCollector) toRecord(row *exportRow, day civil.Date, collectedAt time.Time) *domain.Record {
	gross := decimal.NewFromFloat(row.Cost)
	net := gross.Add(decimal.NewFromFloat(row.CreditsTotal))

	r := &domain.Record{
		BillingDate:      day,
		Provider:         domain.ProviderGCP,
		AccountID:        row.AccountID.StringVal,
		AccountName:      row.AccountName.StringVal,
		ProjectID:        row.AccountID.StringVal,
		ServiceName:      row.ServiceName.StringVal,
		SKU:              row.SKU.StringVal,
		SKUDescription:   row.SKUDescription.StringVal,
		ResourceID:       row.ResourceID.StringVal,
		ResourceName:     row.ResourceName.StringVal,
		ResourceType:     row.ResourceType.StringVal,
		Cost:             domain.Round(net),
		Currency:         row.Currency.StringVal,
		OriginalCost:     domain.Round(gross),
		UsageUnit:        row.UsageUnit.StringVal,
		Team:             row.Team.StringVal,
		Environment:      row.Environment.StringVal,
		Region:           row.Region.StringVal,
		Tags:             row.Tags.StringVal,
		CollectedAt:      collectedAt,
		ProcessedAt:      collectedAt,
		SourceFile:       c.cfg.GCP.SourceFullyQualifiedName(),
		CollectorVersion: c.cfg.CollectorVersion,
	}

	if row.UsageAmount.Valid {
		usage := domain.Round(decimal.NewFromFloat(row.UsageAmount.Float64))
		r.UsageAmount = &usage
	}

	r.Normalize()

	return r
}

// sourceQuery builds the one templated query against the billing export.
// The table identifier comes from allow-list-validated configuration; the
// date stays a bound parameter. Label resolution falls back through
// line-item label, line-item alternate key, project label, then "unknown".
func sourceQuery(gcp config.GCP) string {
	return fmt.Sprintf(`
SELECT
  project.id                                                          AS account_id,
  project.name                                                        AS account_name,
  service.description                                                 AS service_name,
  sku.id                                                              AS sku,
  sku.description                                                     AS sku_description,
  resource.name                                                       AS resource_id,
  resource.global_name                                                AS resource_name,
  resource.type                                                       AS resource_type,
  cost,
  IFNULL((SELECT SUM(c.amount) FROM UNNEST(credits) AS c), 0)         AS credits_total,
  currency,
  usage.amount                                                        AS usage_amount,
  usage.unit                                                          AS usage_unit,
  LOWER(COALESCE(
    (SELECT value FROM UNNEST(labels) WHERE key = 'team' LIMIT 1),
    (SELECT value FROM UNNEST(project.labels) WHERE key = 'team' LIMIT 1),
    'unknown'
  ))                                                                  AS team,
  LOWER(COALESCE(
    (SELECT value FROM UNNEST(labels) WHERE key = 'environment' LIMIT 1),
    (SELECT value FROM UNNEST(labels) WHERE key = 'env' LIMIT 1),
    (SELECT value FROM UNNEST(project.labels) WHERE key = 'environment' LIMIT 1),
    'unknown'
  ))                                                                  AS environment,
  location.region                                                     AS region,
  TO_JSON_STRING(labels)                                              AS tags
FROM `+"`%s`"+`
WHERE DATE(usage_start_time) = @billing_date
  AND cost != 0`, gcp.SourceFullyQualifiedName())
}
