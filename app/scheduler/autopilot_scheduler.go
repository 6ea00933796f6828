// Package scheduler runs the outbound autopilot on a timer and on demand
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/outreach-autopilot/app/services"
	businessflow "github.com/amirphl/outreach-autopilot/business_flow"
	"github.com/amirphl/outreach-autopilot/config"
	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/repository"
	"github.com/amirphl/outreach-autopilot/utils"
	"golang.org/x/sync/errgroup"
)

// RunOutcome is the result of one campaign run
type RunOutcome struct {
	CampaignID uint
	Job        *models.RunJob
	Summary    models.RunSummary
	Err        error
}

// AutopilotScheduler periodically sweeps automation-enabled campaigns. Per campaign it gates on the
// send window, advances due sequences, tops up the queue with generated outreach and drains the queue
// through the sending identities.
type AutopilotScheduler struct {
	campaignRepo  repository.CampaignRepository
	recipientRepo repository.RecipientRepository
	messageRepo   repository.OutboundMessageRepository
	tx            repository.TxManager

	sequences  businessflow.SequenceFlow
	identities businessflow.IdentityAllocator
	reporter   businessflow.RunReporter

	ranker       services.RecipientRanker
	generator    services.ContentGenerator
	transport    services.DeliveryTransport
	unsubscribes services.UnsubscribeChecker

	locker RunLocker
	cfg    config.AutopilotConfig
	logger *log.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewAutopilotScheduler(
	campaignRepo repository.CampaignRepository,
	recipientRepo repository.RecipientRepository,
	messageRepo repository.OutboundMessageRepository,
	tx repository.TxManager,
	sequences businessflow.SequenceFlow,
	identities businessflow.IdentityAllocator,
	reporter businessflow.RunReporter,
	ranker services.RecipientRanker,
	generator services.ContentGenerator,
	transport services.DeliveryTransport,
	unsubscribes services.UnsubscribeChecker,
	locker RunLocker,
	cfg config.AutopilotConfig,
	logger *log.Logger,
) *AutopilotScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = utils.DefaultRunInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = utils.DefaultCallTimeout
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = utils.DefaultRunTimeout
	}
	if cfg.CampaignConcurrency < 1 {
		cfg.CampaignConcurrency = 1
	}
	if cfg.DrainBatch <= 0 {
		cfg.DrainBatch = utils.DefaultDrainBatch
	}
	if locker == nil {
		locker = NewLocalRunLocker()
	}
	if logger == nil {
		logger = log.Default()
	}

	return &AutopilotScheduler{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		messageRepo:   messageRepo,
		tx:            tx,
		sequences:     sequences,
		identities:    identities,
		reporter:      reporter,
		ranker:        ranker,
		generator:     generator,
		transport:     transport,
		unsubscribes:  unsubscribes,
		locker:        locker,
		cfg:           cfg,
		logger:        logger,
		now:           utils.UTCNow,
		sleep:         sleepContext,
	}
}

// Start launches the sweep loop in a background goroutine and returns a stop function
func (s *AutopilotScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.sweep(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()

	return cancel
}

func (s *AutopilotScheduler) sweep(ctx context.Context) {
	started := s.now()
	outcomes, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Printf("autopilot: sweep failed: %v", err)
		return
	}
	if len(outcomes) == 0 {
		return
	}
	var sent, failed, errored int
	for _, o := range outcomes {
		sent += o.Summary.Sent
		failed += o.Summary.Failed
		if o.Err != nil {
			errored++
		}
	}
	s.logger.Printf("autopilot: sweep done campaigns=%d sent=%d failed=%d errored=%d took=%s",
		len(outcomes), sent, failed, errored, s.now().Sub(started))
}

// RunOnce runs every automated campaign, CampaignConcurrency at a time.
// Per-campaign failures are reported on the outcomes; the error is only set when the sweep itself fails.
func (s *AutopilotScheduler) RunOnce(ctx context.Context) ([]*RunOutcome, error) {
	campaigns, err := s.campaignRepo.ListAutomated(ctx)
	if err != nil {
		return nil, fmt.Errorf("list automated campaigns: %w", err)
	}
	if len(campaigns) == 0 {
		s.logger.Printf("autopilot: no automated campaigns")
		return nil, nil
	}

	outcomes := make([]*RunOutcome, len(campaigns))
	var g errgroup.Group
	g.SetLimit(s.cfg.CampaignConcurrency)
	for i, campaign := range campaigns {
		g.Go(func() error {
			outcomes[i] = s.runLocked(ctx, campaign.ID, campaign, models.RunTypeScheduled)
			return nil
		})
	}
	_ = g.Wait()

	result := make([]*RunOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o != nil {
			result = append(result, o)
		}
	}
	return result, nil
}

// RunCampaign runs a single campaign now, ignoring the send window.
// It returns ErrRunInProgress when another run of the campaign holds the lock.
func (s *AutopilotScheduler) RunCampaign(ctx context.Context, campaignID uint) (*RunOutcome, error) {
	release, acquired, err := s.locker.Acquire(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, businessflow.ErrRunInProgress
	}
	defer release()

	return s.run(ctx, campaignID, nil, models.RunTypeForced), nil
}

// runLocked is the sweep path: a busy lock skips the campaign silently
func (s *AutopilotScheduler) runLocked(ctx context.Context, campaignID uint, campaign *models.Campaign, runType models.RunType) *RunOutcome {
	release, acquired, err := s.locker.Acquire(ctx, campaignID)
	if err != nil {
		s.logger.Printf("autopilot: run lock failed id=%d err=%v", campaignID, err)
		return &RunOutcome{CampaignID: campaignID, Err: err}
	}
	if !acquired {
		campaignRunsSkipped.WithLabelValues("locked").Inc()
		s.logger.Printf("autopilot: campaign already running id=%d", campaignID)
		return nil
	}
	defer release()

	return s.run(ctx, campaignID, campaign, runType)
}

// run owns the job lifecycle of one campaign. campaign may be nil, in which case it is loaded.
func (s *AutopilotScheduler) run(parent context.Context, campaignID uint, campaign *models.Campaign, runType models.RunType) *RunOutcome {
	ctx, cancel := context.WithTimeout(parent, s.cfg.RunTimeout)
	defer cancel()

	outcome := &RunOutcome{CampaignID: campaignID}

	job, err := s.reporter.Start(ctx, &campaignID, runType)
	if err != nil {
		s.logger.Printf("autopilot: create run job failed id=%d err=%v", campaignID, err)
		outcome.Err = err
		return outcome
	}
	outcome.Job = job

	if campaign == nil {
		campaign, err = s.campaignRepo.ByID(ctx, campaignID)
		if err == nil && campaign == nil {
			err = businessflow.ErrCampaignNotFound
		}
		if err != nil {
			outcome.Err = err
			s.fail(ctx, job, outcome, err)
			return outcome
		}
	}

	summary, err := s.process(ctx, job, campaign, runType == models.RunTypeForced)
	outcome.Summary = summary
	if err != nil {
		outcome.Err = err
		s.fail(ctx, job, outcome, err)
		return outcome
	}

	// The finish write must land even if the run deadline has passed
	finishCtx, finishCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer finishCancel()
	if err := s.reporter.Complete(finishCtx, job, summary); err != nil {
		s.logger.Printf("autopilot: complete run job failed id=%d job=%d err=%v", campaignID, job.ID, err)
		outcome.Err = err
	}
	s.logger.Printf("autopilot: campaign processed id=%d generated=%d sent=%d failed=%d sequenced=%d skipped=%t",
		campaignID, summary.Generated, summary.Sent, summary.Failed, summary.Sequenced, summary.Skipped)
	return outcome
}

func (s *AutopilotScheduler) fail(ctx context.Context, job *models.RunJob, outcome *RunOutcome, cause error) {
	s.logger.Printf("autopilot: campaign run failed id=%d job=%d err=%v", outcome.CampaignID, job.ID, cause)
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.reporter.Fail(finishCtx, job, outcome.Summary, cause); err != nil {
		s.logger.Printf("autopilot: fail run job failed job=%d err=%v", job.ID, err)
	}
}

// process runs the three phases. Only configuration problems are returned as errors;
// everything item-level lands on the summary and the job's error list.
func (s *AutopilotScheduler) process(ctx context.Context, job *models.RunJob, campaign *models.Campaign, forced bool) (models.RunSummary, error) {
	var summary models.RunSummary

	if err := businessflow.ValidateAutomationConfig(campaign.AutomationConfig); err != nil {
		return summary, err
	}
	if campaign.OwnerID == 0 {
		return summary, businessflow.ErrMissingOwnerForSend
	}

	now := s.now()
	allowed, err := businessflow.IsSendAllowed(campaign.AutomationConfig, now)
	if err != nil {
		return summary, err
	}
	if !allowed && !forced {
		summary.Skipped = true
		summary.SkipReason = "outside send window"
		campaignRunsSkipped.WithLabelValues("window_closed").Inc()
		s.reporter.Event(ctx, job, models.RunEventLevelInfo, models.RunEventKindWindowClosed,
			fmt.Sprintf("send window %s-%s %s is closed", campaign.WindowStart, campaign.WindowEnd, campaign.Timezone), nil)
		return summary, nil
	}

	s.advanceSequences(ctx, job, campaign, now, &summary)
	s.reporter.Progress(ctx, job, 20)

	s.generate(ctx, job, campaign, now, &summary)
	s.reporter.Progress(ctx, job, 50)

	s.drain(ctx, job, campaign, &summary)

	stats := repository.RunStats{
		Generated: summary.Generated,
		Sent:      summary.Sent,
		Failed:    summary.Failed,
		RunAt:     s.now(),
	}
	if err := s.campaignRepo.ApplyRunStats(context.WithoutCancel(ctx), campaign.ID, stats); err != nil {
		s.logger.Printf("autopilot: apply run stats failed id=%d err=%v", campaign.ID, err)
		s.recordError(ctx, job, &summary, "campaign stats", err)
	}
	return summary, nil
}

// advanceSequences is phase (a): due follow-up steps become queued messages
func (s *AutopilotScheduler) advanceSequences(ctx context.Context, job *models.RunJob, campaign *models.Campaign, now time.Time, summary *models.RunSummary) {
	result, err := s.sequences.AdvanceDue(ctx, campaign, now)
	if err != nil {
		s.recordError(ctx, job, summary, "sequence", err)
		return
	}
	summary.Sequenced = result.Enqueued
	summary.Completed = result.Completed
	for _, f := range result.Failures {
		s.recordError(ctx, job, summary, fmt.Sprintf("sequence recipient=%d", f.RecipientID), f.Err)
	}
	if result.Due > 0 {
		s.reporter.Event(ctx, job, models.RunEventLevelInfo, models.RunEventKindSequenceAdvanced,
			fmt.Sprintf("advanced %d of %d due sequences, %d completed", result.Enqueued, result.Due, result.Completed),
			map[string]any{"due": result.Due, "skipped": result.Skipped, "conflicts": result.Conflicts})
	}
}

// generate is phase (b): top up the queue with first-touch messages for ranked recipients
func (s *AutopilotScheduler) generate(ctx context.Context, job *models.RunJob, campaign *models.Campaign, now time.Time, summary *models.RunSummary) {
	queued := models.OutboundMessageStatusQueued
	backlog, err := s.messageRepo.Count(ctx, models.OutboundMessageFilter{CampaignID: &campaign.ID, Status: &queued})
	if err != nil {
		s.recordError(ctx, job, summary, "queue backlog", err)
		return
	}
	if backlog >= int64(campaign.MinRecipientThreshold) {
		return
	}

	loc, _, _, err := businessflow.ParseSendWindow(campaign.AutomationConfig)
	if err != nil {
		s.recordError(ctx, job, summary, "send window", err)
		return
	}
	generatedToday, err := s.messageRepo.CountInitialSince(ctx, campaign.ID, utils.StartOfDayIn(now, loc))
	if err != nil {
		s.recordError(ctx, job, summary, "daily count", err)
		return
	}
	remaining := campaign.DailyCap - int(generatedToday)
	if remaining <= 0 {
		return
	}

	var ranked []services.RankedRecipient
	err = s.call(ctx, "ranker", func(callCtx context.Context) error {
		var err error
		ranked, err = s.ranker.Rank(callCtx, campaign.ID, remaining)
		return err
	})
	if err != nil {
		s.recordError(ctx, job, summary, "rank", err)
		s.reporter.Event(ctx, job, models.RunEventLevelWarn, models.RunEventKindGenerationFailed, "recipient ranking failed", nil)
		return
	}
	if len(ranked) > remaining {
		ranked = ranked[:remaining]
	}
	summary.Requested = len(ranked)
	if len(ranked) == 0 {
		return
	}

	ids := make([]uint, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.RecipientID)
	}
	recipients, err := s.recipientRepo.ByIDs(ctx, ids)
	if err != nil {
		s.recordError(ctx, job, summary, "load recipients", err)
		return
	}

	for _, candidate := range ranked {
		if ctx.Err() != nil {
			break
		}
		recipient, ok := recipients[candidate.RecipientID]
		if !ok || recipient.CampaignID != campaign.ID {
			s.recordError(ctx, job, summary, fmt.Sprintf("recipient=%d", candidate.RecipientID), businessflow.ErrRecipientNotFound)
			continue
		}
		if recipient.Status != models.RecipientStatusNew || !recipient.IsReachable() {
			summary.SkippedItems++
			continue
		}
		if err := s.recipientRepo.UpdatePriority(ctx, recipient.ID, candidate.PriorityScore); err != nil {
			s.logger.Printf("autopilot: update priority failed recipient=%d err=%v", recipient.ID, err)
		}

		var content *services.GeneratedContent
		err := s.call(ctx, "content_generator", func(callCtx context.Context) error {
			var err error
			content, err = s.generator.Generate(callCtx, recipient, campaign)
			return err
		})
		if err != nil {
			s.recordError(ctx, job, summary, fmt.Sprintf("generate recipient=%d", recipient.ID), err)
			s.reporter.Event(ctx, job, models.RunEventLevelWarn, models.RunEventKindGenerationFailed,
				fmt.Sprintf("content generation failed for recipient %d", recipient.ID), nil)
			continue
		}

		msg := &models.OutboundMessage{
			CampaignID:  campaign.ID,
			RecipientID: recipient.ID,
			Subject:     content.Subject,
			Body:        content.Body,
			Status:      models.OutboundMessageStatusQueued,
		}
		err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.messageRepo.Save(txCtx, msg); err != nil {
				return err
			}
			_, err := s.sequences.Enroll(txCtx, campaign, recipient.ID, now)
			return err
		})
		if err != nil {
			s.recordError(ctx, job, summary, fmt.Sprintf("queue recipient=%d", recipient.ID), err)
			continue
		}
		summary.Generated++
		messagesGenerated.Inc()
	}

	s.reporter.Event(ctx, job, models.RunEventLevelInfo, models.RunEventKindGenerated,
		fmt.Sprintf("generated %d of %d", summary.Generated, summary.Requested), nil)
}

// drain is phase (c): deliver queued messages oldest first, one at a time, pausing between sends.
// Running out of identities stops the drain and leaves the rest queued. Any other reservation
// error fails only the message at hand.
func (s *AutopilotScheduler) drain(ctx context.Context, job *models.RunJob, campaign *models.Campaign, summary *models.RunSummary) {
	queued, err := s.messageRepo.ListQueued(ctx, campaign.ID, s.cfg.DrainBatch)
	if err != nil {
		s.recordError(ctx, job, summary, "list queued", err)
		return
	}
	if len(queued) == 0 {
		return
	}

	ids := make([]uint, 0, len(queued))
	for _, m := range queued {
		ids = append(ids, m.RecipientID)
	}
	recipients, err := s.recipientRepo.ByIDs(ctx, ids)
	if err != nil {
		s.recordError(ctx, job, summary, "load recipients", err)
		return
	}

	for i, msg := range queued {
		if ctx.Err() != nil {
			summary.LeftQueued = len(queued) - i
			return
		}
		if i > 0 {
			s.reporter.Progress(ctx, job, 50+50*i/len(queued))
		}

		recipient := recipients[msg.RecipientID]
		if recipient == nil {
			s.skip(ctx, msg, "recipient missing", summary)
			continue
		}

		unsubscribed, err := s.unsubscribes.IsUnsubscribed(ctx, recipient.Address)
		if err != nil {
			s.recordError(ctx, job, summary, fmt.Sprintf("unsubscribe check message=%d", msg.ID), err)
			continue
		}
		if unsubscribed {
			s.skip(ctx, msg, "unsubscribed", summary)
			summary.Unsubscribed++
			deliveriesTotal.WithLabelValues("unsubscribed").Inc()
			s.reporter.Event(ctx, job, models.RunEventLevelInfo, models.RunEventKindUnsubscribed,
				fmt.Sprintf("skipped message %d: recipient unsubscribed", msg.ID), nil)
			continue
		}
		if !recipient.IsReachable() {
			s.skip(ctx, msg, fmt.Sprintf("recipient is %s", recipient.Status), summary)
			continue
		}

		identity, err := s.identities.Reserve(ctx, campaign.OwnerID)
		switch {
		case err == nil:
			s.deliver(ctx, job, msg, recipient, identity, summary)
		case businessflow.IsNoIdentityAvailable(err):
			summary.LeftQueued = len(queued) - i
			summary.Exhausted = true
			identityExhausted.Inc()
			s.reporter.Event(ctx, job, models.RunEventLevelWarn, models.RunEventKindNoIdentity,
				fmt.Sprintf("no sending identity available, %d messages left queued", summary.LeftQueued), nil)
			return
		case ctx.Err() != nil:
			summary.LeftQueued = len(queued) - i
			return
		default:
			// Nothing was reserved, so there is no quota to give back
			if _, merr := s.messageRepo.MarkFailed(ctx, msg.ID, utils.Truncate(err.Error(), 1000)); merr != nil {
				s.logger.Printf("autopilot: mark failed failed message=%d err=%v", msg.ID, merr)
			}
			summary.Failed++
			deliveriesTotal.WithLabelValues("failed").Inc()
			s.recordError(ctx, job, summary, fmt.Sprintf("reserve identity message=%d", msg.ID), err)
		}

		if i < len(queued)-1 {
			if err := s.sleep(ctx, s.cfg.InterSendInterval); err != nil {
				summary.LeftQueued = len(queued) - i - 1
				return
			}
		}
	}
}

// deliver sends one message through an identity whose quota is already reserved
func (s *AutopilotScheduler) deliver(ctx context.Context, job *models.RunJob, msg *models.OutboundMessage, recipient *models.Recipient, identity *models.SendingIdentity, summary *models.RunSummary) {
	var providerID string
	err := s.call(ctx, "delivery", func(callCtx context.Context) error {
		var err error
		providerID, err = s.transport.Deliver(callCtx, identity, recipient.Address, msg.Subject, msg.Body)
		return err
	})

	if err != nil {
		if rerr := s.identities.ReleaseQuota(context.WithoutCancel(ctx), identity); rerr != nil {
			s.logger.Printf("autopilot: release quota failed identity=%d err=%v", identity.ID, rerr)
		}
		if _, merr := s.messageRepo.MarkFailed(ctx, msg.ID, utils.Truncate(err.Error(), 1000)); merr != nil {
			s.logger.Printf("autopilot: mark failed failed message=%d err=%v", msg.ID, merr)
		}
		summary.Failed++
		outcome := "failed"
		if errors.Is(err, services.ErrRecipientBounced) {
			outcome = "bounced"
			from := models.StatusesAllowedInto(models.RecipientStatusBounced)
			if _, uerr := s.recipientRepo.UpdateStatus(ctx, recipient.ID, from, models.RecipientStatusBounced); uerr != nil {
				s.logger.Printf("autopilot: mark bounced failed recipient=%d err=%v", recipient.ID, uerr)
			}
		}
		deliveriesTotal.WithLabelValues(outcome).Inc()
		s.recordError(ctx, job, summary, fmt.Sprintf("deliver message=%d", msg.ID), err)
		s.reporter.Event(ctx, job, models.RunEventLevelWarn, models.RunEventKindDeliveryFailed,
			fmt.Sprintf("delivery of message %d failed", msg.ID), map[string]any{"identity_id": identity.ID, "outcome": outcome})
		return
	}

	// The provider accepted the message; record it even if the run deadline just passed
	writeCtx := context.WithoutCancel(ctx)
	ok, err := s.messageRepo.MarkSent(writeCtx, msg.ID, identity.ID, providerID, s.now())
	if err != nil {
		s.recordError(ctx, job, summary, fmt.Sprintf("mark sent message=%d", msg.ID), err)
	} else if !ok {
		s.logger.Printf("autopilot: message left queued state before mark sent message=%d", msg.ID)
	}
	if recipient.CanTransitionTo(models.RecipientStatusContacted) {
		from := models.StatusesAllowedInto(models.RecipientStatusContacted)
		if _, err := s.recipientRepo.UpdateStatus(writeCtx, recipient.ID, from, models.RecipientStatusContacted); err != nil {
			s.logger.Printf("autopilot: mark contacted failed recipient=%d err=%v", recipient.ID, err)
		} else {
			recipient.Status = models.RecipientStatusContacted
		}
	}

	summary.Sent++
	deliveriesTotal.WithLabelValues("sent").Inc()
	s.reporter.Event(ctx, job, models.RunEventLevelInfo, models.RunEventKindDelivered,
		fmt.Sprintf("delivered message %d", msg.ID), map[string]any{"identity_id": identity.ID, "provider_message_id": providerID})
}

func (s *AutopilotScheduler) skip(ctx context.Context, msg *models.OutboundMessage, reason string, summary *models.RunSummary) {
	if _, err := s.messageRepo.MarkSkipped(ctx, msg.ID, reason); err != nil {
		s.logger.Printf("autopilot: mark skipped failed message=%d err=%v", msg.ID, err)
		return
	}
	if reason != "unsubscribed" {
		summary.SkippedItems++
		deliveriesTotal.WithLabelValues("skipped").Inc()
	}
}

func (s *AutopilotScheduler) recordError(ctx context.Context, job *models.RunJob, summary *models.RunSummary, item string, err error) {
	summary.ErrorItems++
	s.logger.Printf("autopilot: item failed job=%d item=%q err=%v", job.ID, item, err)
	s.reporter.RecordError(ctx, job, item, err)
}

// call runs one collaborator request under the per-call timeout
func (s *AutopilotScheduler) call(ctx context.Context, collaborator string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	started := time.Now()
	err := fn(callCtx)
	collaboratorDuration.WithLabelValues(collaborator, resultLabel(err)).Observe(time.Since(started).Seconds())
	return err
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
