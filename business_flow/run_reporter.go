package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/repository"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_run_jobs_total",
			Help: "Finished autopilot run jobs by run type and terminal status",
		},
		[]string{"run_type", "status"},
	)

	runJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autopilot_run_job_duration_seconds",
			Help:    "Wall time of autopilot run jobs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
		},
		[]string{"run_type"},
	)

	runEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autopilot_run_events_total",
			Help: "Run events emitted by kind and level",
		},
		[]string{"kind", "level"},
	)
)

// RunReporter records the job status row and the append-only event log of a run.
// Event and progress writes are best effort; a reporting failure never aborts a run.
type RunReporter interface {
	Start(ctx context.Context, campaignID *uint, runType models.RunType) (*models.RunJob, error)
	Event(ctx context.Context, job *models.RunJob, level models.RunEventLevel, kind, message string, metadata map[string]any)
	Progress(ctx context.Context, job *models.RunJob, pct int)
	RecordError(ctx context.Context, job *models.RunJob, item string, err error)
	Complete(ctx context.Context, job *models.RunJob, summary models.RunSummary) error
	Fail(ctx context.Context, job *models.RunJob, summary models.RunSummary, cause error) error
}

type RunReporterImpl struct {
	jobRepo   repository.RunJobRepository
	eventRepo repository.RunEventRepository
	logger    *log.Logger
	now       func() time.Time
}

func NewRunReporter(jobRepo repository.RunJobRepository, eventRepo repository.RunEventRepository, logger *log.Logger) RunReporter {
	if logger == nil {
		logger = log.Default()
	}
	return &RunReporterImpl{
		jobRepo:   jobRepo,
		eventRepo: eventRepo,
		logger:    logger,
		now:       utils.UTCNow,
	}
}

func (r *RunReporterImpl) Start(ctx context.Context, campaignID *uint, runType models.RunType) (*models.RunJob, error) {
	job := &models.RunJob{
		CampaignID: campaignID,
		RunType:    runType,
		Status:     models.RunJobStatusRunning,
		StartedAt:  r.now(),
	}
	if err := r.jobRepo.Save(ctx, job); err != nil {
		return nil, NewBusinessError("CREATE_RUN_JOB_FAILED", "Failed to create run job", err)
	}
	r.Event(ctx, job, models.RunEventLevelInfo, models.RunEventKindStarted, fmt.Sprintf("%s run started", runType), nil)
	return job, nil
}

func (r *RunReporterImpl) Event(ctx context.Context, job *models.RunJob, level models.RunEventLevel, kind, message string, metadata map[string]any) {
	runEventsTotal.WithLabelValues(kind, string(level)).Inc()
	if job == nil {
		return
	}

	event := &models.RunEvent{
		RunJobID: job.ID,
		Level:    level,
		Kind:     kind,
		Message:  message,
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err == nil {
			event.Metadata = raw
		}
	}
	if err := r.eventRepo.Save(ctx, event); err != nil {
		r.logger.Printf("reporter: failed to save event job=%d kind=%s err=%v", job.ID, kind, err)
	}
}

func (r *RunReporterImpl) Progress(ctx context.Context, job *models.RunJob, pct int) {
	if job == nil {
		return
	}
	pct = max(0, min(pct, 100))
	if pct <= job.Progress {
		return
	}
	job.Progress = pct
	if err := r.jobRepo.UpdateProgress(ctx, job.ID, pct); err != nil {
		r.logger.Printf("reporter: failed to update progress job=%d err=%v", job.ID, err)
	}
}

// RecordError appends a per-item failure to the job; the run keeps going
func (r *RunReporterImpl) RecordError(ctx context.Context, job *models.RunJob, item string, err error) {
	if job == nil || err == nil {
		return
	}
	line := utils.Truncate(fmt.Sprintf("%s: %v", item, err), 1000)
	job.Errors = append(job.Errors, line)
	if aerr := r.jobRepo.AppendError(ctx, job.ID, line); aerr != nil {
		r.logger.Printf("reporter: failed to append error job=%d err=%v", job.ID, aerr)
	}
}

func (r *RunReporterImpl) Complete(ctx context.Context, job *models.RunJob, summary models.RunSummary) error {
	return r.finish(ctx, job, models.RunJobStatusCompleted, summary, nil)
}

func (r *RunReporterImpl) Fail(ctx context.Context, job *models.RunJob, summary models.RunSummary, cause error) error {
	return r.finish(ctx, job, models.RunJobStatusFailed, summary, cause)
}

func (r *RunReporterImpl) finish(ctx context.Context, job *models.RunJob, status models.RunJobStatus, summary models.RunSummary, cause error) error {
	if job == nil {
		return ErrRunJobNotFound
	}

	finishedAt := r.now()
	job.Status = status
	job.Summary = summary
	job.FinishedAt = &finishedAt
	if status == models.RunJobStatusCompleted {
		job.Progress = 100
		r.Event(ctx, job, models.RunEventLevelInfo, models.RunEventKindCompleted, completionMessage(summary), nil)
	} else {
		msg := "run failed"
		if cause != nil {
			msg = cause.Error()
		}
		job.ErrorMessage = &msg
		r.Event(ctx, job, models.RunEventLevelError, models.RunEventKindFailed, msg, nil)
	}

	runJobsTotal.WithLabelValues(string(job.RunType), string(status)).Inc()
	runJobDuration.WithLabelValues(string(job.RunType)).Observe(finishedAt.Sub(job.StartedAt).Seconds())

	if err := r.jobRepo.Finish(ctx, job); err != nil {
		return NewBusinessError("FINISH_RUN_JOB_FAILED", "Failed to finish run job", err)
	}
	return nil
}

func completionMessage(s models.RunSummary) string {
	if s.Skipped {
		return fmt.Sprintf("run skipped: %s", s.SkipReason)
	}
	return fmt.Sprintf("generated %d of %d, sent %d, failed %d, sequenced %d",
		s.Generated, s.Requested, s.Sent, s.Failed, s.Sequenced)
}
