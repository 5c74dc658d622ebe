// The collector binary pulls one provider's daily cloud spend and replaces
// the matching partition of the billing fact table. It is built to run as a
// scheduled job: one provider per invocation, selected by flag, configured
// from the environment.
package main

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	awscollector "github.com/kfdevops/cloudbilling/collector/aws"
	"github.com/kfdevops/cloudbilling/collector/dal"
	"github.com/kfdevops/cloudbilling/collector/domain"
	gcpcollector "github.com/kfdevops/cloudbilling/collector/gcp"
	"github.com/kfdevops/cloudbilling/collector/iface"
	mongodbcollector "github.com/kfdevops/cloudbilling/collector/mongodb"
	"github.com/kfdevops/cloudbilling/collector/service"
	snowflakecollector "github.com/kfdevops/cloudbilling/collector/snowflake"
	"github.com/kfdevops/cloudbilling/framework/config"
	"github.com/kfdevops/cloudbilling/framework/redact"
	"github.com/kfdevops/cloudbilling/logger"
)

func main() {
	// .env is a local-development convenience; in scheduled runs the
	// environment comes from the job definition
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "collector",
		Usage: "collect one provider's daily cloud spend into the billing fact table",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "provider",
				Usage:    "billing source: aws, gcp, mongodb or snowflake",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "date",
				Usage: "collect a specific day (YYYY-MM-DD) instead of yesterday",
			},
			&cli.IntFlag{
				Name:  "backfill",
				Usage: "collect the last N days ending yesterday",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log := logger.NewLogger()
		log.Errorf("collection failed: %s", redact.Message(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("provider"))
	if err != nil {
		return err
	}

	log := logger.NewLogger()
	defer func() { _ = log.Sync() }()

	log.SetLabels(map[string]string{
		"provider": string(cfg.Provider),
		"run_id":   uuid.NewString(),
	})

	ctx := logger.NewContext(c.Context, log)
	loggerProvider := logger.Provider(logger.FromContext)

	collector, err := newCollector(ctx, cfg, loggerProvider)
	if err != nil {
		return err
	}

	if closer, ok := collector.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	writer, err := dal.NewBillingWriter(ctx, loggerProvider, cfg.Target)
	if err != nil {
		return err
	}

	svc := service.NewCollectorService(cfg, loggerProvider, collector, writer)

	summary, err := svc.Run(ctx, service.RunParams{
		Date:         c.String("date"),
		BackfillDays: c.Int("backfill"),
	})
	if err != nil {
		return err
	}

	log.Infof("done: %s, %d days, %d rows", summary.Provider, summary.Days, summary.Rows)

	return nil
}

func newCollector(ctx context.Context, cfg *config.Config, loggerProvider logger.Provider) (iface.Collector, error) {
	switch cfg.Provider {
	case domain.ProviderAWS:
		return awscollector.NewCostExplorerCollector(cfg, loggerProvider)
	case domain.ProviderGCP:
		return gcpcollector.NewBillingExportCollector(ctx, cfg, loggerProvider)
	case domain.ProviderMongoDB:
		return mongodbcollector.NewInvoiceCollector(cfg, loggerProvider)
	case domain.ProviderSnowflake:
		return snowflakecollector.NewUsageCollector(cfg, loggerProvider)
	default:
		return nil, errors.Errorf("no collector for provider %q", cfg.Provider)
	}
}
