package businessflow

import (
	"bytes"
	"context"
	"testing"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestRunReportFlow(t *testing.T) {
	ctx := context.Background()

	reporter, jobs, events := newTestReporter()
	job, err := reporter.Start(ctx, nil, models.RunTypeScheduled)
	require.NoError(t, err)
	reporter.Event(ctx, job, models.RunEventLevelInfo, models.RunEventKindDelivered, "delivered message 1", map[string]any{"message_id": 1})
	require.NoError(t, reporter.Complete(ctx, job, models.RunSummary{Sent: 1, Generated: 1, Requested: 1}))

	flow := NewRunReportFlow(jobs, events)

	t.Run("GetRun", func(t *testing.T) {
		got, err := flow.GetRun(ctx, job.UUID)
		require.NoError(t, err)
		assert.Equal(t, models.RunJobStatusCompleted, got.Status)
		assert.Equal(t, 1, got.Summary.Sent)
	})

	t.Run("UnknownRun", func(t *testing.T) {
		_, err := flow.GetRun(ctx, uuid.New())
		assert.True(t, IsRunJobNotFound(err))
		_, err = flow.ListEvents(ctx, uuid.New(), 10, 0)
		assert.True(t, IsRunJobNotFound(err))
	})

	t.Run("ListEventsPages", func(t *testing.T) {
		page, err := flow.ListEvents(ctx, job.UUID, 2, 1)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, models.RunEventKindDelivered, page[0].Kind)
		assert.Equal(t, models.RunEventKindCompleted, page[1].Kind)
	})

	t.Run("ExcelReport", func(t *testing.T) {
		name, data, err := flow.DownloadRunReportExcel(ctx, job.UUID)
		require.NoError(t, err)
		assert.Equal(t, "run_"+job.UUID.String()+".xlsx", name)

		xl, err := excelize.OpenReader(bytes.NewReader(data))
		require.NoError(t, err)
		defer func() { _ = xl.Close() }()

		status, err := xl.GetCellValue("summary", "B4")
		require.NoError(t, err)
		assert.Equal(t, "completed", status)

		rows, err := xl.GetRows("events")
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, "kind", rows[0][3])
		assert.Equal(t, models.RunEventKindStarted, rows[1][3])
	})
}
