package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfdevops/cloudbilling/collector/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAFAKE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "fake")

	cfg, err := Load("aws")
	require.NoError(t, err)

	assert.Equal(t, domain.ProviderAWS, cfg.Provider)
	assert.Equal(t, "kf-dev-ops-p001.billing.fact_cloud_costs", cfg.Target.FullyQualifiedName())
	assert.Equal(t, "us-east-1", cfg.AWS.Region)
	assert.Equal(t, BackfillHardMax, cfg.BackfillMaxDays)
	assert.Equal(t, "1.0.0", cfg.CollectorVersion)
}

func TestLoadMissingSecretsFailsFast(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")

	_, err := Load("aws")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_SECRET_ACCESS_KEY")
	// the secret value must never appear, only the variable name
	assert.NotContains(t, err.Error(), "AKIA")
}

func TestLoadRejectsInjectionIdentifiers(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAFAKE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "fake")
	t.Setenv("TARGET_TABLE", "fact`; DROP TABLE x;--")

	_, err := Load("aws")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TARGET_TABLE")
}

func TestLoadGCPRequiresSource(t *testing.T) {
	_, err := Load("gcp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOURCE_PROJECT")
	assert.Contains(t, err.Error(), "SOURCE_DATASET")
	assert.Contains(t, err.Error(), "SOURCE_TABLE")
}

func TestLoadGCPValid(t *testing.T) {
	t.Setenv("SOURCE_PROJECT", "billing-src")
	t.Setenv("SOURCE_DATASET", "exports")
	t.Setenv("SOURCE_TABLE", "gcp_billing_export_v1")

	cfg, err := Load("gcp")
	require.NoError(t, err)
	assert.Equal(t, "billing-src.exports.gcp_billing_export_v1", cfg.GCP.SourceFullyQualifiedName())
	assert.Equal(t, int64(defaultMaxScannedBytes), cfg.GCP.MaxScannedBytes)
}

func TestLoadBackfillMaxCannotExceedHardCap(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAFAKE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "fake")
	t.Setenv("BACKFILL_MAX_DAYS", "120")

	_, err := Load("aws")
	assert.Error(t, err)
}

func TestLoadSnowflakeCreditPrice(t *testing.T) {
	t.Setenv("SNOWFLAKE_ACCOUNT", "xy12345.us-east-1")
	t.Setenv("SNOWFLAKE_USER", "collector")
	t.Setenv("SNOWFLAKE_PASSWORD", "hunter2")
	t.Setenv("CREDIT_PRICE_USD", "3.25")

	cfg, err := Load("snowflake")
	require.NoError(t, err)
	assert.Equal(t, "3.25", cfg.Snowflake.CreditPrice.String())
}

func TestLoadUnknownProvider(t *testing.T) {
	_, err := Load("azure")
	assert.Error(t, err)
}
