// Package snowflake collects one day of Snowflake spend over database/sql.
// The organization-level usage view carries direct currency amounts and is
// the preferred source; when it is unreadable or empty (no ORGADMIN grant,
// view latency), the account-level metering history stands in, priced at the
// configured rate per credit.
package snowflake

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/snowflakedb/gosnowflake"

	"github.com/kfdevops/cloudbilling/collector/domain"
	"github.com/kfdevops/cloudbilling/framework/config"
	"github.com/kfdevops/cloudbilling/framework/retry"
	"github.com/kfdevops/cloudbilling/logger"
)

const (
	sourceFileOrgUsage = "snowflake.organization_usage.usage_in_currency_daily"
	sourceFileMetering = "snowflake.account_usage.metering_daily_history"

	orgUsageQuery = `
SELECT
    ACCOUNT_NAME,
    ACCOUNT_LOCATOR,
    SERVICE_TYPE,
    USAGE,
    USAGE_UNIT,
    USAGE_IN_CURRENCY,
    CURRENCY
FROM SNOWFLAKE.ORGANIZATION_USAGE.USAGE_IN_CURRENCY_DAILY
WHERE USAGE_DATE = ?
  AND USAGE_IN_CURRENCY > 0
ORDER BY USAGE_IN_CURRENCY DESC`

	meteringQuery = `
SELECT
    SERVICE_TYPE,
    IFNULL(WAREHOUSE_NAME, SERVICE_TYPE) AS WAREHOUSE_NAME,
    SUM(CREDITS_USED)                    AS CREDITS_USED
FROM SNOWFLAKE.ACCOUNT_USAGE.METERING_DAILY_HISTORY
WHERE USAGE_DATE = ?
  AND CREDITS_USED > 0
GROUP BY SERVICE_TYPE, WAREHOUSE_NAME
ORDER BY CREDITS_USED DESC`
)

type UsageCollector struct {
	db             *sql.DB
	cfg            *config.Config
	retryer        *retry.Retryer
	loggerProvider logger.Provider
	now            func() time.Time
}

// NewUsageCollector opens the connection pool, reading the password from the
// environment here so it lives only inside the driver's DSN.
func NewUsageCollector(cfg *config.Config, loggerProvider logger.Provider) (*UsageCollector, error) {
	password, err := config.Secret(config.SecretSnowflakePassword)
	if err != nil {
		return nil, err
	}

	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   cfg.Snowflake.Account,
		User:      cfg.Snowflake.User,
		Password:  password,
		Role:      cfg.Snowflake.Role,
		Warehouse: cfg.Snowflake.Warehouse,
		Database:  "SNOWFLAKE",
		Schema:    "ORGANIZATION_USAGE",
	})
	if err != nil {
		return nil, errors.Wrap(err, "snowflake dsn")
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "snowflake open")
	}

	return NewUsageCollectorWithDB(cfg, loggerProvider, db), nil
}

func NewUsageCollectorWithDB(cfg *config.Config, loggerProvider logger.Provider, db *sql.DB) *UsageCollector {
	return &UsageCollector{
		db:             db,
		cfg:            cfg,
		retryer:        retry.New(loggerProvider),
		loggerProvider: loggerProvider,
		now:            time.Now,
	}
}

func (c *UsageCollector) Provider() domain.Provider {
	return domain.ProviderSnowflake
}

func (c *UsageCollector) Close() error {
	return c.db.Close()
}

func (c *UsageCollector) Collect(ctx context.Context, day civil.Date) ([]*domain.Record, error) {
	log := c.loggerProvider(ctx)

	var records []*domain.Record

	ok := c.retryer.DoOptional(ctx, "snowflake organization usage", func(ctx context.Context) error {
		var err error
		records, err = c.fetchOrgUsage(ctx, day)

		return err
	})

	if ok && len(records) > 0 {
		log.Infof("Snowflake %s: %d rows from organization usage", day, len(records))
		return domain.DropZeroCost(records), nil
	}

	err := c.retryer.Do(ctx, "snowflake metering history", func(ctx context.Context) error {
		var err error
		records, err = c.fetchMetering(ctx, day)

		return err
	})
	if err != nil {
		return nil, err
	}

	log.Infof("Snowflake %s: %d rows from metering fallback", day, len(records))

	return domain.DropZeroCost(records), nil
}

func (c *UsageCollector) fetchOrgUsage(ctx context.Context, day civil.Date) ([]*domain.Record, error) {
	rows, err := c.db.QueryContext(ctx, orgUsageQuery, day.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collectedAt := c.now().UTC()

	var records []*domain.Record

	for rows.Next() {
		var (
			accountName    string
			accountLocator sql.NullString
			serviceType    string
			usage          sql.NullFloat64
			usageUnit      sql.NullString
			costInCurrency float64
			currency       sql.NullString
		)

		if err := rows.Scan(&accountName, &accountLocator, &serviceType, &usage, &usageUnit, &costInCurrency, &currency); err != nil {
			return nil, err
		}

		accountID := accountLocator.String
		if accountID == "" {
			accountID = accountName
		}

		cost := domain.Round(decimal.NewFromFloat(costInCurrency))

		r := &domain.Record{
			BillingDate:      day,
			Provider:         domain.ProviderSnowflake,
			AccountID:        accountID,
			AccountName:      accountName,
			ProjectID:        accountName,
			ServiceName:      friendlyService(serviceType),
			SKU:              serviceType,
			SKUDescription:   serviceType,
			ResourceType:     serviceType,
			Cost:             cost,
			Currency:         currency.String,
			OriginalCost:     cost,
			UsageUnit:        usageUnit.String,
			Environment:      c.cfg.Snowflake.Environment,
			Region:           c.cfg.Snowflake.Region,
			CollectedAt:      collectedAt,
			ProcessedAt:      collectedAt,
			SourceFile:       sourceFileOrgUsage,
			CollectorVersion: c.cfg.CollectorVersion,
		}

		if usage.Valid {
			amount := domain.Round(decimal.NewFromFloat(usage.Float64))
			r.UsageAmount = &amount
		}

		r.Normalize()
		records = append(records, r)
	}

	return records, rows.Err()
}

// fetchMetering prices credits at the configured rate. The credit count is
// kept as the original cost and the usage amount for audit.
func (c *UsageCollector) fetchMetering(ctx context.Context, day civil.Date) ([]*domain.Record, error) {
	rows, err := c.db.QueryContext(ctx, meteringQuery, day.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collectedAt := c.now().UTC()

	var records []*domain.Record

	for rows.Next() {
		var (
			serviceType   string
			warehouseName string
			creditsUsed   float64
		)

		if err := rows.Scan(&serviceType, &warehouseName, &creditsUsed); err != nil {
			return nil, err
		}

		credits := decimal.NewFromFloat(creditsUsed)
		usage := domain.Round(credits)

		r := &domain.Record{
			BillingDate:      day,
			Provider:         domain.ProviderSnowflake,
			AccountID:        c.cfg.Snowflake.Account,
			AccountName:      c.cfg.Snowflake.Account,
			ProjectID:        c.cfg.Snowflake.Account,
			ServiceName:      friendlyService(serviceType),
			SKU:              serviceType,
			SKUDescription:   serviceType,
			ResourceID:       warehouseName,
			ResourceName:     warehouseName,
			ResourceType:     serviceType,
			Cost:             domain.Round(credits.Mul(c.cfg.Snowflake.CreditPrice)),
			OriginalCost:     usage,
			UsageAmount:      &usage,
			UsageUnit:        "credits",
			Environment:      c.cfg.Snowflake.Environment,
			Region:           c.cfg.Snowflake.Region,
			CollectedAt:      collectedAt,
			ProcessedAt:      collectedAt,
			SourceFile:       sourceFileMetering,
			CollectorVersion: c.cfg.CollectorVersion,
		}

		r.Normalize()
		records = append(records, r)
	}

	return records, rows.Err()
}

var friendlyServices = map[string]string{
	"WAREHOUSE_METERING":   "Warehouse Compute",
	"STORAGE":              "Storage",
	"SERVERLESS_TASK":      "Serverless Tasks",
	"SNOWPIPE":             "Snowpipe",
	"AUTOMATIC_CLUSTERING": "Auto Clustering",
	"MATERIALIZED_VIEW":    "Materialized Views",
	"SEARCH_OPTIMIZATION":  "Search Optimization",
	"DATA_TRANSFER":        "Data Transfer",
	"REPLICATION":          "Replication",
	"CLOUD_SERVICES":       "Cloud Services",
}

func friendlyService(serviceType string) string {
	if name, ok := friendlyServices[serviceType]; ok {
		return name
	}

	words := strings.Fields(strings.ToLower(strings.ReplaceAll(serviceType, "_", " ")))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}

	return strings.Join(words, " ")
}
