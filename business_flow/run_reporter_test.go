package businessflow

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	testingutil "github.com/amirphl/outreach-autopilot/testing"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReporter() (*RunReporterImpl, *testingutil.MemRunJobRepo, *testingutil.MemRunEventRepo) {
	jobs := testingutil.NewMemRunJobRepo()
	events := testingutil.NewMemRunEventRepo()
	reporter := NewRunReporter(jobs, events, log.New(io.Discard, "", 0)).(*RunReporterImpl)
	reporter.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return reporter, jobs, events
}

func TestRunReporter(t *testing.T) {
	ctx := context.Background()

	t.Run("StartCreatesRunningJob", func(t *testing.T) {
		reporter, jobs, events := newTestReporter()

		job, err := reporter.Start(ctx, utils.ToPtr(uint(4)), models.RunTypeForced)
		require.NoError(t, err)
		assert.NotZero(t, job.ID)
		assert.Equal(t, models.RunJobStatusRunning, job.Status)
		assert.Equal(t, uint(4), *job.CampaignID)

		require.Len(t, jobs.All(), 1)
		assert.Equal(t, []string{models.RunEventKindStarted}, events.Kinds(job.ID))
	})

	t.Run("ProgressIsMonotonicAndClamped", func(t *testing.T) {
		reporter, jobs, _ := newTestReporter()
		job, err := reporter.Start(ctx, nil, models.RunTypeScheduled)
		require.NoError(t, err)

		for _, pct := range []int{20, 10, 50, -5, 250} {
			reporter.Progress(ctx, job, pct)
		}
		assert.Equal(t, 100, job.Progress)
		assert.Equal(t, 100, jobs.All()[0].Progress)

		reporter2, jobs2, _ := newTestReporter()
		job2, err := reporter2.Start(ctx, nil, models.RunTypeScheduled)
		require.NoError(t, err)
		reporter2.Progress(ctx, job2, 50)
		reporter2.Progress(ctx, job2, 20)
		assert.Equal(t, 50, jobs2.All()[0].Progress)
	})

	t.Run("CompleteStoresSummary", func(t *testing.T) {
		reporter, jobs, events := newTestReporter()
		job, err := reporter.Start(ctx, nil, models.RunTypeScheduled)
		require.NoError(t, err)

		summary := models.RunSummary{Requested: 5, Generated: 4, Sent: 3, Failed: 1}
		require.NoError(t, reporter.Complete(ctx, job, summary))

		stored := jobs.All()[0]
		assert.Equal(t, models.RunJobStatusCompleted, stored.Status)
		assert.Equal(t, 100, stored.Progress)
		assert.Equal(t, summary, stored.Summary)
		require.NotNil(t, stored.FinishedAt)
		assert.Nil(t, stored.ErrorMessage)
		assert.Equal(t, []string{models.RunEventKindStarted, models.RunEventKindCompleted}, events.Kinds(job.ID))
	})

	t.Run("FailKeepsCause", func(t *testing.T) {
		reporter, jobs, events := newTestReporter()
		job, err := reporter.Start(ctx, nil, models.RunTypeForced)
		require.NoError(t, err)

		require.NoError(t, reporter.Fail(ctx, job, models.RunSummary{}, ErrReversedSendWindow))

		stored := jobs.All()[0]
		assert.Equal(t, models.RunJobStatusFailed, stored.Status)
		require.NotNil(t, stored.ErrorMessage)
		assert.Equal(t, ErrReversedSendWindow.Error(), *stored.ErrorMessage)
		assert.Contains(t, events.Kinds(job.ID), models.RunEventKindFailed)
	})

	t.Run("RecordErrorTruncates", func(t *testing.T) {
		reporter, jobs, _ := newTestReporter()
		job, err := reporter.Start(ctx, nil, models.RunTypeScheduled)
		require.NoError(t, err)

		reporter.RecordError(ctx, job, "message 9", errors.New(strings.Repeat("x", 5000)))
		reporter.RecordError(ctx, job, "message 10", nil)

		stored := jobs.All()[0]
		require.Len(t, stored.Errors, 1)
		assert.Len(t, stored.Errors[0], 1000)
		assert.True(t, strings.HasPrefix(stored.Errors[0], "message 9: "))
	})

	t.Run("EventMetadataIsJSON", func(t *testing.T) {
		reporter, _, events := newTestReporter()
		job, err := reporter.Start(ctx, nil, models.RunTypeScheduled)
		require.NoError(t, err)

		reporter.Event(ctx, job, models.RunEventLevelWarn, models.RunEventKindNoIdentity, "no identity", map[string]any{"left_queued": 3})

		list, err := events.ListByRunJob(ctx, job.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, models.RunEventLevelWarn, list[1].Level)
		assert.JSONEq(t, `{"left_queued":3}`, string(list[1].Metadata))
	})

	t.Run("FinishWithoutJob", func(t *testing.T) {
		reporter, _, _ := newTestReporter()
		assert.True(t, IsRunJobNotFound(reporter.Complete(ctx, nil, models.RunSummary{})))
	})
}
