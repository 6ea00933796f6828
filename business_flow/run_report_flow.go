package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/repository"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const maxReportEvents = 10000

// RunReportFlow serves run jobs and their event log to dashboards
type RunReportFlow interface {
	GetRun(ctx context.Context, id uuid.UUID) (*models.RunJob, error)
	ListEvents(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.RunEvent, error)
	DownloadRunReportExcel(ctx context.Context, id uuid.UUID) (string, []byte, error)
}

type RunReportFlowImpl struct {
	jobRepo   repository.RunJobRepository
	eventRepo repository.RunEventRepository
}

func NewRunReportFlow(jobRepo repository.RunJobRepository, eventRepo repository.RunEventRepository) RunReportFlow {
	return &RunReportFlowImpl{jobRepo: jobRepo, eventRepo: eventRepo}
}

func (f *RunReportFlowImpl) GetRun(ctx context.Context, id uuid.UUID) (*models.RunJob, error) {
	job, err := f.jobRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_RUN_JOB_FAILED", "Failed to load run job", err)
	}
	if job == nil {
		return nil, ErrRunJobNotFound
	}
	return job, nil
}

func (f *RunReportFlowImpl) ListEvents(ctx context.Context, id uuid.UUID, limit, offset int) ([]*models.RunEvent, error) {
	job, err := f.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := f.eventRepo.ListByRunJob(ctx, job.ID, limit, offset)
	if err != nil {
		return nil, NewBusinessError("LIST_RUN_EVENTS_FAILED", "Failed to list run events", err)
	}
	return events, nil
}

// DownloadRunReportExcel builds a workbook with a summary sheet and an events sheet
func (f *RunReportFlowImpl) DownloadRunReportExcel(ctx context.Context, id uuid.UUID) (string, []byte, error) {
	job, err := f.GetRun(ctx, id)
	if err != nil {
		return "", nil, err
	}
	events, err := f.eventRepo.ListByRunJob(ctx, job.ID, maxReportEvents, 0)
	if err != nil {
		return "", nil, NewBusinessError("LIST_RUN_EVENTS_FAILED", "Failed to list run events", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const summarySheet, eventsSheet = "summary", "events"
	xl.SetSheetName(xl.GetSheetName(0), summarySheet)
	if _, err := xl.NewSheet(eventsSheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to create events sheet", err)
	}

	for i, row := range summaryRows(job) {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = xl.SetSheetRow(summarySheet, cellRef, &row)
	}

	header := []string{"id", "created_at", "level", "kind", "message", "metadata"}
	_ = xl.SetSheetRow(eventsSheet, "A1", &header)
	for i, e := range events {
		record := []string{
			strconv.FormatUint(uint64(e.ID), 10),
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Level),
			e.Kind,
			e.Message,
			string(e.Metadata),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(eventsSheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return fmt.Sprintf("run_%s.xlsx", job.UUID), buf.Bytes(), nil
}

func summaryRows(job *models.RunJob) [][]string {
	campaign := ""
	if job.CampaignID != nil {
		campaign = strconv.FormatUint(uint64(*job.CampaignID), 10)
	}
	finished := ""
	if job.FinishedAt != nil {
		finished = job.FinishedAt.UTC().Format(time.RFC3339)
	}
	errMsg := ""
	if job.ErrorMessage != nil {
		errMsg = *job.ErrorMessage
	}
	s := job.Summary
	return [][]string{
		{"run", job.UUID.String()},
		{"campaign_id", campaign},
		{"run_type", string(job.RunType)},
		{"status", string(job.Status)},
		{"progress", strconv.Itoa(job.Progress)},
		{"started_at", job.StartedAt.UTC().Format(time.RFC3339)},
		{"finished_at", finished},
		{"skipped", strconv.FormatBool(s.Skipped)},
		{"skip_reason", s.SkipReason},
		{"sequenced", strconv.Itoa(s.Sequenced)},
		{"completed_sequences", strconv.Itoa(s.Completed)},
		{"requested", strconv.Itoa(s.Requested)},
		{"generated", strconv.Itoa(s.Generated)},
		{"sent", strconv.Itoa(s.Sent)},
		{"failed", strconv.Itoa(s.Failed)},
		{"unsubscribed", strconv.Itoa(s.Unsubscribed)},
		{"skipped_items", strconv.Itoa(s.SkippedItems)},
		{"left_queued", strconv.Itoa(s.LeftQueued)},
		{"identities_exhausted", strconv.FormatBool(s.Exhausted)},
		{"error_items", strconv.Itoa(s.ErrorItems)},
		{"error_message", errMsg},
	}
}
