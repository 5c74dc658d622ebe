// Package service orchestrates a collection run: resolve the requested days,
// then for each day collect from the provider and replace the target
// partition. Days run strictly sequentially; the writer's partition replace
// is not safe to interleave for the same provider and day.
package service

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"

	dalIface "github.com/kfdevops/cloudbilling/collector/dal/iface"
	"github.com/kfdevops/cloudbilling/collector/domain"
	"github.com/kfdevops/cloudbilling/collector/iface"
	"github.com/kfdevops/cloudbilling/common"
	"github.com/kfdevops/cloudbilling/framework/config"
	"github.com/kfdevops/cloudbilling/logger"
)

// platformEpoch is the earliest date any provider has billing data for.
var platformEpoch = civil.Date{Year: 2015, Month: 1, Day: 1}

type CollectorService struct {
	collector      iface.Collector
	writer         dalIface.Writer
	cfg            *config.Config
	loggerProvider logger.Provider
	now            func() time.Time
}

func NewCollectorService(cfg *config.Config, loggerProvider logger.Provider, collector iface.Collector, writer dalIface.Writer) *CollectorService {
	return &CollectorService{
		collector:      collector,
		writer:         writer,
		cfg:            cfg,
		loggerProvider: loggerProvider,
		now:            time.Now,
	}
}

// RunParams selects the days to collect. Date and BackfillDays are mutually
// exclusive; with neither set the run covers yesterday (UTC).
type RunParams struct {
	Date         string
	BackfillDays int
}

type Summary struct {
	Provider domain.Provider
	Days     int
	Rows     int
	Duration time.Duration
}

// Run collects and writes every resolved day in order, oldest first. The
// first failure aborts the run: a partial backfill is visible in the summary
// log and the remaining days are picked up by rerunning.
func (s *CollectorService) Run(ctx context.Context, params RunParams) (*Summary, error) {
	log := s.loggerProvider(ctx)

	days, err := s.resolveDates(params)
	if err != nil {
		return nil, err
	}

	started := s.now()
	summary := &Summary{Provider: s.collector.Provider()}

	for _, day := range days {
		records, err := s.collector.Collect(ctx, day)
		if err != nil {
			return nil, errors.Wrapf(err, "collect %s", day)
		}

		written, err := s.writer.Replace(ctx, day, s.collector.Provider(), records)
		if err != nil {
			return nil, errors.Wrapf(err, "write %s", day)
		}

		summary.Days++
		summary.Rows += written
		log.Infof("%s %s: %d rows written", s.collector.Provider(), day, written)
	}

	summary.Duration = s.now().Sub(started)
	log.Infof("%s run complete: %d days, %d rows in %s", summary.Provider, summary.Days, summary.Rows, summary.Duration)

	return summary, nil
}

// resolveDates validates the request before any network call is made and
// returns the days oldest first.
func (s *CollectorService) resolveDates(params RunParams) ([]civil.Date, error) {
	if params.Date != "" && params.BackfillDays != 0 {
		return nil, errors.New("date and backfill are mutually exclusive")
	}

	yesterday := civil.DateOf(s.now().UTC()).AddDays(-1)

	if params.BackfillDays != 0 {
		if params.BackfillDays < 1 || params.BackfillDays > s.cfg.BackfillMaxDays {
			return nil, errors.Errorf("backfill must be between 1 and %d days", s.cfg.BackfillMaxDays)
		}

		days := make([]civil.Date, 0, params.BackfillDays)

		for i := params.BackfillDays; i >= 1; i-- {
			day := yesterday.AddDays(1 - i)
			if day.Before(platformEpoch) {
				continue
			}

			days = append(days, day)
		}

		return days, nil
	}

	day := yesterday

	if params.Date != "" {
		parsed, err := time.Parse(common.DateFormat, params.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid date %q", params.Date)
		}

		day = civil.DateOf(parsed)
	}

	if day.After(yesterday) {
		return nil, errors.Errorf("%s is not complete yet; the latest collectible day is %s", day, yesterday)
	}

	if day.Before(platformEpoch) {
		return nil, errors.Errorf("%s predates the billing epoch %s", day, platformEpoch)
	}

	return []civil.Date{day}, nil
}
