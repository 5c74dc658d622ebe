package snowflake

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfdevops/cloudbilling/collector/domain"
	"github.com/kfdevops/cloudbilling/framework/config"
	"github.com/kfdevops/cloudbilling/logger"
)

var testDay = civil.Date{Year: 2026, Month: 2, Day: 25}

func newTestCollector(t *testing.T) (*UsageCollector, sqlmock.Sqlmock) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		Provider: domain.ProviderSnowflake,
		Snowflake: config.Snowflake{
			Account:     "xy12345.us-east-1",
			User:        "COLLECTOR",
			Environment: "production",
			Region:      "us-east-1",
			CreditPrice: decimal.RequireFromString("4.0"),
		},
		CollectorVersion: "1.0.0",
	}

	c := NewUsageCollectorWithDB(cfg, func(ctx context.Context) logger.ILogger {
		return logger.NewNop()
	}, db)
	c.retryer.BaseDelay = time.Millisecond

	return c, dbMock
}

func orgUsageColumns() []string {
	return []string{"ACCOUNT_NAME", "ACCOUNT_LOCATOR", "SERVICE_TYPE", "USAGE", "USAGE_UNIT", "USAGE_IN_CURRENCY", "CURRENCY"}
}

func meteringColumns() []string {
	return []string{"SERVICE_TYPE", "WAREHOUSE_NAME", "CREDITS_USED"}
}

func TestCollectPrefersOrganizationUsage(t *testing.T) {
	c, dbMock := newTestCollector(t)

	dbMock.ExpectQuery("USAGE_IN_CURRENCY_DAILY").
		WithArgs("2026-02-25").
		WillReturnRows(sqlmock.NewRows(orgUsageColumns()).
			AddRow("PROD_ACCOUNT", "AB12345", "WAREHOUSE_METERING", 12.5, "credits", 55.75, "USD").
			AddRow("PROD_ACCOUNT", nil, "STORAGE", nil, nil, 3.25, nil))

	records, err := c.Collect(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "AB12345", first.AccountID)
	assert.Equal(t, "PROD_ACCOUNT", first.AccountName)
	assert.Equal(t, "Warehouse Compute", first.ServiceName)
	assert.Equal(t, "WAREHOUSE_METERING", first.SKU)
	assert.Equal(t, "55.750000", first.Cost.String())
	require.NotNil(t, first.UsageAmount)
	assert.Equal(t, "12.500000", first.UsageAmount.String())
	assert.Equal(t, sourceFileOrgUsage, first.SourceFile)
	assert.Equal(t, "production", first.Environment)

	// null locator falls back to the account name, null currency defaults
	second := records[1]
	assert.Equal(t, "PROD_ACCOUNT", second.AccountID)
	assert.Equal(t, "USD", second.Currency)
	assert.Nil(t, second.UsageAmount)

	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCollectFallsBackWhenOrgUsageFails(t *testing.T) {
	c, dbMock := newTestCollector(t)

	dbMock.ExpectQuery("USAGE_IN_CURRENCY_DAILY").
		WithArgs("2026-02-25").
		WillReturnError(errors.New("SQL compilation error: insufficient privileges"))

	dbMock.ExpectQuery("METERING_DAILY_HISTORY").
		WithArgs("2026-02-25").
		WillReturnRows(sqlmock.NewRows(meteringColumns()).
			AddRow("WAREHOUSE_METERING", "COMPUTE_WH", 10.0))

	records, err := c.Collect(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "40.000000", r.Cost.String()) // 10 credits at 4.0/credit
	assert.Equal(t, "10.000000", r.OriginalCost.String())
	assert.Equal(t, "credits", r.UsageUnit)
	assert.Equal(t, "COMPUTE_WH", r.ResourceID)
	assert.Equal(t, "xy12345.us-east-1", r.AccountID)
	assert.Equal(t, sourceFileMetering, r.SourceFile)

	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCollectFallsBackWhenOrgUsageEmpty(t *testing.T) {
	c, dbMock := newTestCollector(t)

	dbMock.ExpectQuery("USAGE_IN_CURRENCY_DAILY").
		WithArgs("2026-02-25").
		WillReturnRows(sqlmock.NewRows(orgUsageColumns()))

	dbMock.ExpectQuery("METERING_DAILY_HISTORY").
		WithArgs("2026-02-25").
		WillReturnRows(sqlmock.NewRows(meteringColumns()).
			AddRow("SNOWPIPE", "SNOWPIPE", 2.5))

	records, err := c.Collect(context.Background(), testDay)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Snowpipe", records[0].ServiceName)
	assert.Equal(t, "10.000000", records[0].Cost.String())

	require.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCollectBothSourcesFailing(t *testing.T) {
	c, dbMock := newTestCollector(t)

	dbMock.ExpectQuery("USAGE_IN_CURRENCY_DAILY").
		WillReturnError(errors.New("insufficient privileges"))
	dbMock.ExpectQuery("METERING_DAILY_HISTORY").
		WillReturnError(errors.New("insufficient privileges"))

	_, err := c.Collect(context.Background(), testDay)
	assert.Error(t, err)
}

func TestFriendlyService(t *testing.T) {
	assert.Equal(t, "Warehouse Compute", friendlyService("WAREHOUSE_METERING"))
	assert.Equal(t, "Auto Clustering", friendlyService("AUTOMATIC_CLUSTERING"))
	assert.Equal(t, "Query Acceleration", friendlyService("QUERY_ACCELERATION"))
}
