// Package domain defines the canonical billing record every provider adapter
// normalizes into, and the helpers shared by all of them.
package domain

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Provider identifies the billing source of a record. It is one of the two
// partition keys of the fact table.
type Provider string

const (
	ProviderAWS       Provider = "AWS"
	ProviderGCP       Provider = "GCP"
	ProviderMongoDB   Provider = "MongoDB"
	ProviderSnowflake Provider = "Snowflake"
)

// Unknown is the explicit absence marker for team and environment.
// Those columns are never null.
const Unknown = "unknown"

// CostPrecision is the number of fractional digits kept on every monetary
// and usage amount.
const CostPrecision = 6

func ParseProvider(s string) (Provider, error) {
	switch s {
	case "aws", "AWS":
		return ProviderAWS, nil
	case "gcp", "GCP":
		return ProviderGCP, nil
	case "mongodb", "MongoDB":
		return ProviderMongoDB, nil
	case "snowflake", "Snowflake":
		return ProviderSnowflake, nil
	default:
		return "", errors.Errorf("unknown provider %q", s)
	}
}

// Record is one canonical row of the fact table: one provider/service/day or
// provider/cluster/day slice of spend, net of credits.
type Record struct {
	BillingDate civil.Date
	Provider    Provider

	AccountID   string
	AccountName string
	ProjectID   string

	ServiceName    string
	SKU            string
	SKUDescription string

	ResourceID   string
	ResourceName string
	ResourceType string

	Cost         decimal.Decimal
	Currency     string
	OriginalCost decimal.Decimal

	UsageAmount *decimal.Decimal
	UsageUnit   string

	Team        string
	Environment string
	Region      string
	Tags        string

	CollectedAt time.Time
	ProcessedAt time.Time

	SourceFile       string
	CollectorVersion string
}

// Round normalizes a monetary or usage amount to the canonical precision.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(CostPrecision)
}

// DropZeroCost removes records whose net cost rounds to zero. Zero-cost rows
// are never persisted.
func DropZeroCost(records []*Record) []*Record {
	kept := make([]*Record, 0, len(records))

	for _, r := range records {
		if Round(r.Cost).IsZero() {
			continue
		}

		kept = append(kept, r)
	}

	return kept
}

// Save implements bigquery.ValueSaver. Empty optional strings become NULLs,
// decimals are sent as rationals for the NUMERIC columns, and each row gets a
// fresh insert ID (best-effort streaming dedup; correctness comes from the
// partition replace).
func (r *Record) Save() (map[string]bigquery.Value, string, error) {
	row := map[string]bigquery.Value{
		"billing_date":      r.BillingDate,
		"provider":          string(r.Provider),
		"account_id":        r.AccountID,
		"account_name":      nullable(r.AccountName),
		"project_id":        r.ProjectID,
		"service_name":      r.ServiceName,
		"sku":               nullable(r.SKU),
		"sku_description":   nullable(r.SKUDescription),
		"resource_id":       nullable(r.ResourceID),
		"resource_name":     nullable(r.ResourceName),
		"resource_type":     nullable(r.ResourceType),
		"cost":              Round(r.Cost).Rat(),
		"currency":          r.Currency,
		"original_cost":     Round(r.OriginalCost).Rat(),
		"usage_amount":      nil,
		"usage_unit":        nullable(r.UsageUnit),
		"team":              r.Team,
		"environment":       r.Environment,
		"region":            nullable(r.Region),
		"tags":              nullable(r.Tags),
		"collected_at":      r.CollectedAt,
		"processed_at":      r.ProcessedAt,
		"source_file":       r.SourceFile,
		"collector_version": r.CollectorVersion,
	}

	if r.UsageAmount != nil {
		row["usage_amount"] = Round(*r.UsageAmount).Rat()
	}

	return row, uuid.NewString(), nil
}

func nullable(s string) bigquery.Value {
	if s == "" {
		return nil
	}

	return s
}

// Normalize applies the canonical defaults: USD currency, lowercase
// team/environment with "unknown" standing in for absence.
func (r *Record) Normalize() {
	if r.Currency == "" {
		r.Currency = "USD"
	}

	r.Team = normalizeLabel(r.Team)
	r.Environment = normalizeLabel(r.Environment)
}
