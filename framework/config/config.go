// Package config builds the immutable collector configuration from the
// environment, once, at process start. Every component receives the value
// explicitly; nothing reads the environment after Load except the secret
// accessors, which resolve credentials at their point of use.
package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/kfdevops/cloudbilling/collector/domain"
	"github.com/kfdevops/cloudbilling/common"
)

const (
	defaultTargetProject = "kf-dev-ops-p001"
	defaultTargetDataset = "billing"
	defaultTargetTable   = "fact_cloud_costs"

	defaultAtlasBaseURL = "https://cloud.mongodb.com/api/atlas/v1.0"
	defaultCreditPrice  = "4.0"

	// BackfillHardMax caps backfills to bound API spend. The environment can
	// lower it, never raise it.
	BackfillHardMax = 90

	// defaultMaxScannedBytes caps every billing-export query at 50 GiB.
	defaultMaxScannedBytes = 50 << 30
)

type Target struct {
	Project string
	Dataset string
	Table   string
}

// FullyQualifiedName returns project.dataset.table. Safe to interpolate into
// query text: every component passed identifier validation at load.
func (t Target) FullyQualifiedName() string {
	return fmt.Sprintf("%s.%s.%s", t.Project, t.Dataset, t.Table)
}

type AWS struct {
	// Region is the API endpoint region and the fallback when Cost Explorer
	// cannot resolve a dominant region for an account.
	Region string
}

type GCP struct {
	SourceProject   string
	SourceDataset   string
	SourceTable     string
	MaxScannedBytes int64
}

func (g GCP) SourceFullyQualifiedName() string {
	return fmt.Sprintf("%s.%s.%s", g.SourceProject, g.SourceDataset, g.SourceTable)
}

type MongoDB struct {
	OrgID       string
	Environment string
	Region      string
	BaseURL     string
	PageSize    int
}

type Snowflake struct {
	Account     string
	User        string
	Role        string
	Warehouse   string
	Environment string
	Region      string
	CreditPrice decimal.Decimal
}

// Config is the immutable per-run configuration.
type Config struct {
	Provider         domain.Provider
	Target           Target
	CollectorVersion string
	BackfillMaxDays  int

	AWS       AWS
	GCP       GCP
	MongoDB   MongoDB
	Snowflake Snowflake
}

// Load reads, defaults and validates the configuration for the selected
// provider. It fails fast, with every problem reported at once, before any
// network call is made.
func Load(providerName string) (*Config, error) {
	provider, err := domain.ParseProvider(providerName)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Provider: provider,
		Target: Target{
			Project: common.GetEnv("TARGET_PROJECT", defaultTargetProject),
			Dataset: common.GetEnv("TARGET_DATASET", defaultTargetDataset),
			Table:   common.GetEnv("TARGET_TABLE", defaultTargetTable),
		},
		CollectorVersion: common.GetEnv("COLLECTOR_VERSION", "1.0.0"),
		AWS: AWS{
			Region: common.GetEnv("AWS_REGION", "us-east-1"),
		},
		GCP: GCP{
			SourceProject:   common.GetEnv("SOURCE_PROJECT", ""),
			SourceDataset:   common.GetEnv("SOURCE_DATASET", ""),
			SourceTable:     common.GetEnv("SOURCE_TABLE", ""),
			MaxScannedBytes: defaultMaxScannedBytes,
		},
		MongoDB: MongoDB{
			OrgID:       common.GetEnv("MONGODB_ORG_ID", ""),
			Environment: common.GetEnv("MONGODB_ENVIRONMENT", domain.Unknown),
			Region:      common.GetEnv("MONGODB_REGION", domain.Unknown),
			BaseURL:     common.GetEnv("MONGODB_BASE_URL", defaultAtlasBaseURL),
			PageSize:    100,
		},
		Snowflake: Snowflake{
			Account:     common.GetEnv("SNOWFLAKE_ACCOUNT", ""),
			User:        common.GetEnv("SNOWFLAKE_USER", ""),
			Role:        common.GetEnv("SNOWFLAKE_ROLE", "ACCOUNTADMIN"),
			Warehouse:   common.GetEnv("SNOWFLAKE_WAREHOUSE", "COMPUTE_WH"),
			Environment: common.GetEnv("SNOWFLAKE_ENVIRONMENT", domain.Unknown),
			Region:      common.GetEnv("SNOWFLAKE_REGION", domain.Unknown),
		},
	}

	creditPrice, err := decimal.NewFromString(common.GetEnv("CREDIT_PRICE_USD", defaultCreditPrice))
	if err != nil {
		return nil, errors.Wrap(err, "CREDIT_PRICE_USD")
	}

	cfg.Snowflake.CreditPrice = creditPrice

	maxBytes, err := parseInt64Env("GCP_MAX_SCANNED_BYTES", defaultMaxScannedBytes)
	if err != nil {
		return nil, err
	}

	cfg.GCP.MaxScannedBytes = maxBytes

	backfillMax, err := parseIntEnv("BACKFILL_MAX_DAYS", BackfillHardMax)
	if err != nil {
		return nil, err
	}

	if backfillMax < 1 || backfillMax > BackfillHardMax {
		return nil, errors.Errorf("BACKFILL_MAX_DAYS must be between 1 and %d", BackfillHardMax)
	}

	cfg.BackfillMaxDays = backfillMax

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var merr *multierror.Error

	merr = multierror.Append(merr,
		common.ValidateIdentifier("TARGET_PROJECT", c.Target.Project),
		common.ValidateIdentifier("TARGET_DATASET", c.Target.Dataset),
		common.ValidateIdentifier("TARGET_TABLE", c.Target.Table),
	)

	switch c.Provider {
	case domain.ProviderAWS:
		merr = multierror.Append(merr, RequireSecrets(SecretAWSAccessKeyID, SecretAWSSecretAccessKey))

	case domain.ProviderGCP:
		merr = multierror.Append(merr,
			common.ValidateIdentifier("SOURCE_PROJECT", c.GCP.SourceProject),
			common.ValidateIdentifier("SOURCE_DATASET", c.GCP.SourceDataset),
			common.ValidateIdentifier("SOURCE_TABLE", c.GCP.SourceTable),
		)

		if c.GCP.MaxScannedBytes <= 0 {
			merr = multierror.Append(merr, errors.New("GCP_MAX_SCANNED_BYTES must be positive"))
		}

	case domain.ProviderMongoDB:
		merr = multierror.Append(merr,
			common.ValidateIdentifier("MONGODB_ORG_ID", c.MongoDB.OrgID),
			RequireSecrets(SecretAtlasPublicKey, SecretAtlasPrivateKey),
		)

	case domain.ProviderSnowflake:
		if c.Snowflake.Account == "" {
			merr = multierror.Append(merr, errors.New("SNOWFLAKE_ACCOUNT is required"))
		}

		if c.Snowflake.User == "" {
			merr = multierror.Append(merr, errors.New("SNOWFLAKE_USER is required"))
		}

		merr = multierror.Append(merr,
			common.ValidateIdentifier("SNOWFLAKE_ROLE", c.Snowflake.Role),
			common.ValidateIdentifier("SNOWFLAKE_WAREHOUSE", c.Snowflake.Warehouse),
			RequireSecrets(SecretSnowflakePassword),
		)

		if !c.Snowflake.CreditPrice.IsPositive() {
			merr = multierror.Append(merr, errors.New("CREDIT_PRICE_USD must be positive"))
		}
	}

	return merr.ErrorOrNil()
}
