// Package aws collects one day of AWS spend from the Cost Explorer API,
// grouped by service and linked account, enriched with cost-allocation tags
// and the per-account dominant region.
package aws

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	awssdk "github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/costexplorer"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/kfdevops/cloudbilling/collector/aws/iface"
	"github.com/kfdevops/cloudbilling/collector/domain"
	"github.com/kfdevops/cloudbilling/framework/config"
	"github.com/kfdevops/cloudbilling/framework/retry"
	"github.com/kfdevops/cloudbilling/logger"
)

const (
	sourceFile = "aws-cost-explorer"

	metricUnblendedCost = "UnblendedCost"
	metricUsageQuantity = "UsageQuantity"

	dimensionService       = "SERVICE"
	dimensionLinkedAccount = "LINKED_ACCOUNT"
	dimensionRegion        = "REGION"

	tagKeyTeam        = "team"
	tagKeyEnvironment = "environment"
)

type CostExplorerCollector struct {
	ceClient       iface.CostExplorerAPI
	cfg            *config.Config
	retryer        *retry.Retryer
	loggerProvider logger.Provider
	now            func() time.Time
}

// NewCostExplorerCollector builds the collector, reading the AWS key pair
// from the environment here, at client-construction time, so the secrets
// never sit on the configuration value.
func NewCostExplorerCollector(cfg *config.Config, loggerProvider logger.Provider) (*CostExplorerCollector, error) {
	accessKeyID, err := config.Secret(config.SecretAWSAccessKeyID)
	if err != nil {
		return nil, err
	}

	secretAccessKey, err := config.Secret(config.SecretAWSSecretAccessKey)
	if err != nil {
		return nil, err
	}

	sess, err := session.NewSession(&awssdk.Config{
		Region:      awssdk.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(accessKeyID, secretAccessKey, ""),
	})
	if err != nil {
		return nil, errors.Wrap(err, "aws session")
	}

	return NewCostExplorerCollectorWithClient(cfg, loggerProvider, costexplorer.New(sess)), nil
}

// NewCostExplorerCollectorWithClient returns a collector using the given
// Cost Explorer client.
func NewCostExplorerCollectorWithClient(cfg *config.Config, loggerProvider logger.Provider, ceClient iface.CostExplorerAPI) *CostExplorerCollector {
	return &CostExplorerCollector{
		ceClient:       ceClient,
		cfg:            cfg,
		retryer:        retry.New(loggerProvider),
		loggerProvider: loggerProvider,
		now:            time.Now,
	}
}

func (c *CostExplorerCollector) Provider() domain.Provider {
	return domain.ProviderAWS
}

func (c *CostExplorerCollector) Collect(ctx context.Context, day civil.Date) ([]*domain.Record, error) {
	log := c.loggerProvider(ctx)

	records, err := c.fetchDailyCosts(ctx, day)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, nil
	}

	teamByAccount := c.fetchTagByAccount(ctx, day, tagKeyTeam)
	envByAccount := c.fetchTagByAccount(ctx, day, tagKeyEnvironment)
	regionByAccount := c.fetchRegionByAccount(ctx, day)

	for _, r := range records {
		r.Team = teamByAccount[r.AccountID]
		r.Environment = envByAccount[r.AccountID]

		if region, ok := regionByAccount[r.AccountID]; ok {
			r.Region = region
		} else {
			r.Region = c.cfg.AWS.Region
		}

		r.Normalize()
	}

	records = domain.DropZeroCost(records)
	log.Infof("AWS %s: %d service/account groups", day, len(records))

	return records, nil
}

// fetchDailyCosts runs the primary SERVICE x LINKED_ACCOUNT query, following
// NextPageToken until the result set is exhausted. Zero-cost groups are
// dropped here, before enrichment.
func (c *CostExplorerCollector) fetchDailyCosts(ctx context.Context, day civil.Date) ([]*domain.Record, error) {
	var records []*domain.Record

	groupBy := []*costexplorer.GroupDefinition{
		dimensionGroup(dimensionService),
		dimensionGroup(dimensionLinkedAccount),
	}

	err := c.retryer.Do(ctx, "aws cost explorer daily costs", func(ctx context.Context) error {
		// a retried attempt replays every page; the batch starts over
		records = nil
		collectedAt := c.now().UTC()

		return c.runGroupedQuery(ctx, day, true, groupBy, func(group *costexplorer.Group) error {
			serviceName := awssdk.StringValue(group.Keys[0])
			accountID := awssdk.StringValue(group.Keys[1])

			cost, err := metricAmount(group, metricUnblendedCost)
			if err != nil {
				return err
			}

			if cost.IsZero() {
				return nil
			}

			usage, err := metricAmount(group, metricUsageQuantity)
			if err != nil {
				return err
			}

			usageUnit := ""
			if mv, ok := group.Metrics[metricUsageQuantity]; ok {
				usageUnit = awssdk.StringValue(mv.Unit)
			}

			usageAmount := domain.Round(usage)

			records = append(records, &domain.Record{
				BillingDate:      day,
				Provider:         domain.ProviderAWS,
				AccountID:        accountID,
				ProjectID:        accountID,
				ServiceName:      serviceName,
				Cost:             domain.Round(cost),
				OriginalCost:     domain.Round(cost),
				UsageAmount:      &usageAmount,
				UsageUnit:        usageUnit,
				CollectedAt:      collectedAt,
				ProcessedAt:      collectedAt,
				SourceFile:       sourceFile,
				CollectorVersion: c.cfg.CollectorVersion,
			})

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// fetchTagByAccount resolves one cost-allocation tag keyed by linked account.
// Grouping by LINKED_ACCOUNT x TAG keeps each account's own tag value and
// avoids cross-account misattribution. Per account the value of the
// highest-cost group wins; ties keep the first-seen value. Failures (tags not
// enabled, permissions) degrade to an empty map.
func (c *CostExplorerCollector) fetchTagByAccount(ctx context.Context, day civil.Date, tagKey string) map[string]string {
	type dominant struct {
		cost  decimal.Decimal
		value string
	}

	best := make(map[string]dominant)

	ok := c.retryer.DoOptional(ctx, "aws cost allocation tag "+tagKey, func(ctx context.Context) error {
		best = make(map[string]dominant)

		return c.pagedQuery(ctx, day,
			[]*costexplorer.GroupDefinition{
				dimensionGroup(dimensionLinkedAccount),
				tagGroup(tagKey),
			},
			func(group *costexplorer.Group) error {
				accountID := awssdk.StringValue(group.Keys[0])
				tagValue := domain.NormalizeLabel(strings.TrimPrefix(awssdk.StringValue(group.Keys[1]), tagKey+"$"))

				if tagValue == domain.Unknown {
					return nil
				}

				cost, err := metricAmount(group, metricUnblendedCost)
				if err != nil {
					return err
				}

				if current, seen := best[accountID]; !seen || cost.GreaterThan(current.cost) {
					best[accountID] = dominant{cost: cost, value: tagValue}
				}

				return nil
			})
	})
	if !ok {
		return map[string]string{}
	}

	values := make(map[string]string, len(best))
	for accountID, d := range best {
		values[accountID] = d.value
	}

	return values
}

// fetchRegionByAccount resolves the dominant region per linked account.
// Cost Explorer caps GroupBy at two dimensions, so this is a separate call
// from the primary fetch. Failures degrade to an empty map.
func (c *CostExplorerCollector) fetchRegionByAccount(ctx context.Context, day civil.Date) map[string]string {
	type dominant struct {
		cost   decimal.Decimal
		region string
	}

	best := make(map[string]dominant)

	ok := c.retryer.DoOptional(ctx, "aws dominant region", func(ctx context.Context) error {
		best = make(map[string]dominant)

		return c.pagedQuery(ctx, day,
			[]*costexplorer.GroupDefinition{
				dimensionGroup(dimensionLinkedAccount),
				dimensionGroup(dimensionRegion),
			},
			func(group *costexplorer.Group) error {
				accountID := awssdk.StringValue(group.Keys[0])
				region := awssdk.StringValue(group.Keys[1])

				if region == "" {
					return nil
				}

				cost, err := metricAmount(group, metricUnblendedCost)
				if err != nil {
					return err
				}

				if current, seen := best[accountID]; !seen || cost.GreaterThan(current.cost) {
					best[accountID] = dominant{cost: cost, region: region}
				}

				return nil
			})
	})
	if !ok {
		return map[string]string{}
	}

	regions := make(map[string]string, len(best))
	for accountID, d := range best {
		regions[accountID] = d.region
	}

	return regions
}

// pagedQuery runs a grouped daily query on the enrichment path, without its
// own retry wrapper (DoOptional owns the policy there).
func (c *CostExplorerCollector) pagedQuery(
	ctx context.Context,
	day civil.Date,
	groupBy []*costexplorer.GroupDefinition,
	fn func(group *costexplorer.Group) error,
) error {
	return c.runGroupedQuery(ctx, day, false, groupBy, fn)
}

func (c *CostExplorerCollector) runGroupedQuery(
	ctx context.Context,
	day civil.Date,
	withUsage bool,
	groupBy []*costexplorer.GroupDefinition,
	fn func(group *costexplorer.Group) error,
) error {
	metrics := []*string{awssdk.String(metricUnblendedCost)}
	if withUsage {
		metrics = append(metrics, awssdk.String(metricUsageQuantity))
	}

	var nextPageToken *string

	for {
		output, err := c.ceClient.GetCostAndUsageWithContext(ctx, &costexplorer.GetCostAndUsageInput{
			TimePeriod: &costexplorer.DateInterval{
				Start: awssdk.String(day.String()),
				End:   awssdk.String(day.AddDays(1).String()),
			},
			Granularity:   awssdk.String(costexplorer.GranularityDaily),
			Metrics:       metrics,
			GroupBy:       groupBy,
			NextPageToken: nextPageToken,
		})
		if err != nil {
			return err
		}

		for _, result := range output.ResultsByTime {
			for _, group := range result.Groups {
				if len(group.Keys) < 2 {
					continue
				}

				if err := fn(group); err != nil {
					return err
				}
			}
		}

		if awssdk.StringValue(output.NextPageToken) == "" {
			return nil
		}

		nextPageToken = output.NextPageToken
	}
}

func metricAmount(group *costexplorer.Group, metric string) (decimal.Decimal, error) {
	mv, ok := group.Metrics[metric]
	if !ok || mv.Amount == nil {
		return decimal.Zero, nil
	}

	amount, err := decimal.NewFromString(*mv.Amount)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s amount", metric)
	}

	return amount, nil
}

func dimensionGroup(key string) *costexplorer.GroupDefinition {
	return &costexplorer.GroupDefinition{
		Type: awssdk.String(costexplorer.GroupDefinitionTypeDimension),
		Key:  awssdk.String(key),
	}
}

func tagGroup(key string) *costexplorer.GroupDefinition {
	return &costexplorer.GroupDefinition{
		Type: awssdk.String(costexplorer.GroupDefinitionTypeTag),
		Key:  awssdk.String(key),
	}
}
