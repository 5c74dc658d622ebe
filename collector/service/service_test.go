package service

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	dalMocks "github.com/kfdevops/cloudbilling/collector/dal/mocks"
	"github.com/kfdevops/cloudbilling/collector/domain"
	"github.com/kfdevops/cloudbilling/collector/mocks"
	"github.com/kfdevops/cloudbilling/framework/config"
	"github.com/kfdevops/cloudbilling/logger"
)

// fixed clock: runs resolve against 2026-02-26 UTC, so yesterday is 02-25
var testNow = time.Date(2026, 2, 26, 8, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*CollectorService, *mocks.Collector, *dalMocks.Writer) {
	collector := mocks.NewCollector(t)
	writer := dalMocks.NewWriter(t)

	cfg := &config.Config{
		Provider:        domain.ProviderAWS,
		BackfillMaxDays: config.BackfillHardMax,
	}

	s := NewCollectorService(cfg, func(ctx context.Context) logger.ILogger {
		return logger.NewNop()
	}, collector, writer)
	s.now = func() time.Time { return testNow }

	return s, collector, writer
}

func day(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func records(n int) []*domain.Record {
	out := make([]*domain.Record, n)
	for i := range out {
		out[i] = &domain.Record{Provider: domain.ProviderAWS}
	}

	return out
}

func TestRunDefaultsToYesterday(t *testing.T) {
	s, collector, writer := newTestService(t)

	yesterday := day(2026, 2, 25)

	collector.On("Provider").Return(domain.ProviderAWS)
	collector.On("Collect", mock.Anything, yesterday).Return(records(3), nil).Once()
	writer.On("Replace", mock.Anything, yesterday, domain.ProviderAWS, mock.Anything).Return(3, nil).Once()

	summary, err := s.Run(context.Background(), RunParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Days)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, domain.ProviderAWS, summary.Provider)
}

func TestRunExplicitDate(t *testing.T) {
	s, collector, writer := newTestService(t)

	target := day(2026, 1, 15)

	collector.On("Provider").Return(domain.ProviderAWS)
	collector.On("Collect", mock.Anything, target).Return(records(1), nil).Once()
	writer.On("Replace", mock.Anything, target, domain.ProviderAWS, mock.Anything).Return(1, nil).Once()

	summary, err := s.Run(context.Background(), RunParams{Date: "2026-01-15"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Days)
}

func TestRunBackfillOldestFirst(t *testing.T) {
	s, collector, writer := newTestService(t)

	var collected []civil.Date

	collector.On("Provider").Return(domain.ProviderAWS)
	collector.On("Collect", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			collected = append(collected, args.Get(1).(civil.Date))
		}).
		Return(records(2), nil).Times(3)
	writer.On("Replace", mock.Anything, mock.Anything, domain.ProviderAWS, mock.Anything).Return(2, nil).Times(3)

	summary, err := s.Run(context.Background(), RunParams{BackfillDays: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Days)
	assert.Equal(t, 6, summary.Rows)
	assert.Equal(t, []civil.Date{day(2026, 2, 23), day(2026, 2, 24), day(2026, 2, 25)}, collected)
}

func TestRunCollectFailureAborts(t *testing.T) {
	s, collector, writer := newTestService(t)

	collector.On("Provider").Return(domain.ProviderAWS)
	collector.On("Collect", mock.Anything, day(2026, 2, 23)).Return(records(2), nil).Once()
	writer.On("Replace", mock.Anything, day(2026, 2, 23), domain.ProviderAWS, mock.Anything).Return(2, nil).Once()
	collector.On("Collect", mock.Anything, day(2026, 2, 24)).Return(nil, errors.New("throttled")).Once()

	_, err := s.Run(context.Background(), RunParams{BackfillDays: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collect 2026-02-24")
}

func TestRunWriteFailureAborts(t *testing.T) {
	s, collector, writer := newTestService(t)

	yesterday := day(2026, 2, 25)

	collector.On("Provider").Return(domain.ProviderAWS)
	collector.On("Collect", mock.Anything, yesterday).Return(records(2), nil).Once()
	writer.On("Replace", mock.Anything, yesterday, domain.ProviderAWS, mock.Anything).
		Return(0, errors.New("insert rejected")).Once()

	_, err := s.Run(context.Background(), RunParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write 2026-02-25")
}

func TestResolveDatesValidation(t *testing.T) {
	tests := []struct {
		name    string
		params  RunParams
		wantErr string
	}{
		{"both date and backfill", RunParams{Date: "2026-01-15", BackfillDays: 5}, "mutually exclusive"},
		{"future date", RunParams{Date: "2026-03-01"}, "not complete yet"},
		{"today", RunParams{Date: "2026-02-26"}, "not complete yet"},
		{"before epoch", RunParams{Date: "2014-12-31"}, "predates the billing epoch"},
		{"malformed date", RunParams{Date: "02/26/2026"}, "invalid date"},
		{"backfill over cap", RunParams{BackfillDays: config.BackfillHardMax + 1}, "between 1 and 90"},
		{"negative backfill", RunParams{BackfillDays: -1}, "between 1 and 90"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestService(t)

			_, err := s.resolveDates(tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveDatesBackfillStopsAtEpoch(t *testing.T) {
	s, _, _ := newTestService(t)
	s.now = func() time.Time { return time.Date(2015, 1, 10, 0, 0, 0, 0, time.UTC) }

	days, err := s.resolveDates(RunParams{BackfillDays: 30})
	require.NoError(t, err)

	// only 2015-01-01 .. 2015-01-09 exist
	require.Len(t, days, 9)
	assert.Equal(t, day(2015, 1, 1), days[0])
	assert.Equal(t, day(2015, 1, 9), days[len(days)-1])
}

func TestRunEmptyDayStillReplacesPartition(t *testing.T) {
	s, collector, writer := newTestService(t)

	yesterday := day(2026, 2, 25)

	collector.On("Provider").Return(domain.ProviderAWS)
	collector.On("Collect", mock.Anything, yesterday).Return(nil, nil).Once()
	writer.On("Replace", mock.Anything, yesterday, domain.ProviderAWS, mock.Anything).Return(0, nil).Once()

	summary, err := s.Run(context.Background(), RunParams{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Rows)
	assert.Equal(t, 1, summary.Days)
}
