package testing

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/repository"
	"github.com/google/uuid"
)

// In-memory repositories for unit tests. Each embeds its interface so calls to methods a test
// does not exercise panic loudly instead of silently returning zero values.

// PassthroughTx runs the unit of work without a real transaction
type PassthroughTx struct{}

func (PassthroughTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// ErrInjected is returned by fakes configured to fail
var ErrInjected = errors.New("injected failure")

// MemCampaignRepo is an in-memory CampaignRepository
type MemCampaignRepo struct {
	repository.CampaignRepository
	mu     sync.Mutex
	rows   map[uint]*models.Campaign
	Stats  map[uint]repository.RunStats
	ListFn func() ([]*models.Campaign, error)
}

func NewMemCampaignRepo(campaigns ...*models.Campaign) *MemCampaignRepo {
	r := &MemCampaignRepo{rows: map[uint]*models.Campaign{}, Stats: map[uint]repository.RunStats{}}
	for _, c := range campaigns {
		r.rows[c.ID] = c
	}
	return r
}

func (r *MemCampaignRepo) ByID(_ context.Context, id uint) (*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *MemCampaignRepo) ListAutomated(_ context.Context) ([]*models.Campaign, error) {
	if r.ListFn != nil {
		return r.ListFn()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.rows {
		if c.IsAutomated() {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemCampaignRepo) ApplyRunStats(_ context.Context, campaignID uint, stats repository.RunStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc := r.Stats[campaignID]
	acc.Generated += stats.Generated
	acc.Sent += stats.Sent
	acc.Failed += stats.Failed
	acc.RunAt = stats.RunAt
	r.Stats[campaignID] = acc
	return nil
}

// MemIdentityRepo is an in-memory SendingIdentityRepository with conditional counter updates
type MemIdentityRepo struct {
	repository.SendingIdentityRepository
	mu   sync.Mutex
	rows map[uint]*models.SendingIdentity
}

func NewMemIdentityRepo(identities ...*models.SendingIdentity) *MemIdentityRepo {
	r := &MemIdentityRepo{rows: map[uint]*models.SendingIdentity{}}
	for _, i := range identities {
		r.rows[i.ID] = i
	}
	return r
}

// Get returns a copy of the stored row
func (r *MemIdentityRepo) Get(id uint) models.SendingIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

func (r *MemIdentityRepo) ByID(_ context.Context, id uint) (*models.SendingIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *MemIdentityRepo) ListActiveByOwner(_ context.Context, ownerID uint) ([]*models.SendingIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SendingIdentity
	for _, row := range r.rows {
		if row.OwnerID == ownerID && (row.IsActive == nil || *row.IsActive) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemIdentityRepo) ResetDailyCount(_ context.Context, id uint, expectedLastReset, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || !row.LastResetAt.Equal(expectedLastReset) {
		return false, nil
	}
	row.SentToday = 0
	row.LastResetAt = now
	return true, nil
}

func (r *MemIdentityRepo) IncrementSentToday(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.SentToday >= row.DailyQuota {
		return false, nil
	}
	row.SentToday++
	return true, nil
}

func (r *MemIdentityRepo) DecrementSentToday(_ context.Context, id uint, lastResetAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok && row.LastResetAt.Equal(lastResetAt) && row.SentToday > 0 {
		row.SentToday--
	}
	return nil
}

// MemRecipientRepo is an in-memory RecipientRepository
type MemRecipientRepo struct {
	repository.RecipientRepository
	mu   sync.Mutex
	rows map[uint]*models.Recipient
}

func NewMemRecipientRepo(recipients ...*models.Recipient) *MemRecipientRepo {
	r := &MemRecipientRepo{rows: map[uint]*models.Recipient{}}
	for _, rec := range recipients {
		r.rows[rec.ID] = rec
	}
	return r
}

// Get returns a copy of the stored row
func (r *MemRecipientRepo) Get(id uint) models.Recipient {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

// Mutate edits a stored row in place
func (r *MemRecipientRepo) Mutate(id uint, fn func(*models.Recipient)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.rows[id])
}

func (r *MemRecipientRepo) ByIDs(_ context.Context, ids []uint) (map[uint]*models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint]*models.Recipient, len(ids))
	for _, id := range ids {
		if row, ok := r.rows[id]; ok {
			cp := *row
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *MemRecipientRepo) ListByAddress(_ context.Context, address string) ([]*models.Recipient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Recipient
	for _, row := range r.rows {
		if row.Address == address {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemRecipientRepo) UpdateStatus(_ context.Context, id uint, from []models.RecipientStatus, to models.RecipientStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || !slices.Contains(from, row.Status) {
		return false, nil
	}
	row.Status = to
	return true, nil
}

func (r *MemRecipientRepo) MarkReplied(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.HasReplied = true
		if slices.Contains(models.StatusesAllowedInto(models.RecipientStatusReplied), row.Status) {
			row.Status = models.RecipientStatusReplied
		}
		if row.RepliedAt == nil {
			row.RepliedAt = &at
		}
	}
	return nil
}

func (r *MemRecipientRepo) UpdatePriority(_ context.Context, id uint, score float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.PriorityScore = &score
	}
	return nil
}

// MemStepRepo is an in-memory SequenceStepRepository
type MemStepRepo struct {
	mu    sync.Mutex
	steps []*models.SequenceStep
}

func NewMemStepRepo(steps ...*models.SequenceStep) *MemStepRepo {
	return &MemStepRepo{steps: steps}
}

func (r *MemStepRepo) Save(_ context.Context, step *models.SequenceStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step.ID = uint(len(r.steps) + 1)
	r.steps = append(r.steps, step)
	return nil
}

func (r *MemStepRepo) ListByCampaign(_ context.Context, campaignID uint) ([]*models.SequenceStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SequenceStep
	for _, s := range r.steps {
		if s.CampaignID == campaignID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out, nil
}

// MemProgressRepo is an in-memory SequenceProgressRepository with version checks
type MemProgressRepo struct {
	repository.SequenceProgressRepository
	mu     sync.Mutex
	rows   map[uint]*models.SequenceProgress
	nextID uint
	// Conflicts makes the next n versioned updates lose the race
	Conflicts int
}

func NewMemProgressRepo(rows ...*models.SequenceProgress) *MemProgressRepo {
	r := &MemProgressRepo{rows: map[uint]*models.SequenceProgress{}}
	for _, p := range rows {
		r.nextID++
		if p.ID == 0 {
			p.ID = r.nextID
		}
		r.rows[p.ID] = p
	}
	return r
}

// Get returns a copy of the stored row
func (r *MemProgressRepo) Get(id uint) models.SequenceProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

// ByRecipient returns a copy of the row of recipientID, if any
func (r *MemProgressRepo) ByRecipient(recipientID uint) (*models.SequenceProgress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.RecipientID == recipientID {
			cp := *row
			return &cp, true
		}
	}
	return nil, false
}

func (r *MemProgressRepo) ListDue(_ context.Context, campaignID uint, now time.Time, limit int) ([]*models.SequenceProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SequenceProgress
	for _, row := range r.rows {
		if row.CampaignID == campaignID && row.IsDue(now) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemProgressRepo) SaveIfAbsent(_ context.Context, progress *models.SequenceProgress) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.RecipientID == progress.RecipientID && row.CampaignID == progress.CampaignID {
			return false, nil
		}
	}
	r.nextID++
	progress.ID = r.nextID
	cp := *progress
	r.rows[cp.ID] = &cp
	return true, nil
}

func (r *MemProgressRepo) UpdateVersioned(_ context.Context, progress *models.SequenceProgress) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Conflicts > 0 {
		r.Conflicts--
		return false, nil
	}
	row, ok := r.rows[progress.ID]
	if !ok || row.Version != progress.Version {
		return false, nil
	}
	row.CurrentStep = progress.CurrentStep
	row.NextSendAt = progress.NextSendAt
	row.CompletedAt = progress.CompletedAt
	row.Version++
	progress.Version = row.Version
	return true, nil
}

func (r *MemProgressRepo) PauseByRecipients(_ context.Context, recipientIDs []uint, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if slices.Contains(recipientIDs, row.RecipientID) && !row.IsPaused {
			row.IsPaused = true
			row.PausedAt = &at
			n++
		}
	}
	return n, nil
}

// MemMessageRepo is an in-memory OutboundMessageRepository
type MemMessageRepo struct {
	repository.OutboundMessageRepository
	mu     sync.Mutex
	rows   []*models.OutboundMessage
	SaveFn func(*models.OutboundMessage) error
	// Clock stamps CreatedAt on save
	Clock func() time.Time
}

func NewMemMessageRepo() *MemMessageRepo {
	return &MemMessageRepo{Clock: func() time.Time { return time.Now().UTC() }}
}

// All returns copies of every stored message in insertion order
func (r *MemMessageRepo) All() []models.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.OutboundMessage, 0, len(r.rows))
	for _, m := range r.rows {
		out = append(out, *m)
	}
	return out
}

// ForRecipient returns copies of the messages addressed to recipientID
func (r *MemMessageRepo) ForRecipient(recipientID uint) []models.OutboundMessage {
	var out []models.OutboundMessage
	for _, m := range r.All() {
		if m.RecipientID == recipientID {
			out = append(out, m)
		}
	}
	return out
}

func (r *MemMessageRepo) Save(_ context.Context, msg *models.OutboundMessage) error {
	if r.SaveFn != nil {
		if err := r.SaveFn(msg); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = uint(len(r.rows) + 1)
	if msg.TrackingID == uuid.Nil {
		msg.TrackingID = uuid.New()
	}
	if msg.Status == "" {
		msg.Status = models.OutboundMessageStatusQueued
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.Clock()
	}
	cp := *msg
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *MemMessageRepo) find(id uint) *models.OutboundMessage {
	for _, m := range r.rows {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (r *MemMessageRepo) ByTrackingID(_ context.Context, trackingID uuid.UUID) (*models.OutboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.TrackingID == trackingID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemMessageRepo) Count(_ context.Context, filter models.OutboundMessageFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.rows {
		if filter.CampaignID != nil && m.CampaignID != *filter.CampaignID {
			continue
		}
		if filter.Status != nil && m.Status != *filter.Status {
			continue
		}
		n++
	}
	return n, nil
}

func (r *MemMessageRepo) ListQueued(_ context.Context, campaignID uint, limit int) ([]*models.OutboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OutboundMessage
	for _, m := range r.rows {
		if m.CampaignID == campaignID && m.Status == models.OutboundMessageStatusQueued {
			cp := *m
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemMessageRepo) CountInitialSince(_ context.Context, campaignID uint, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.rows {
		if m.CampaignID == campaignID && m.StepNumber == nil && !m.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemMessageRepo) transition(id uint, fn func(*models.OutboundMessage)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.find(id)
	if m == nil || m.Status != models.OutboundMessageStatusQueued {
		return false, nil
	}
	fn(m)
	return true, nil
}

func (r *MemMessageRepo) MarkSent(_ context.Context, id, identityID uint, providerMessageID string, at time.Time) (bool, error) {
	return r.transition(id, func(m *models.OutboundMessage) {
		m.Status = models.OutboundMessageStatusSent
		m.SendingIdentityID = &identityID
		m.ProviderMessageID = &providerMessageID
		m.SentAt = &at
	})
}

func (r *MemMessageRepo) MarkFailed(_ context.Context, id uint, detail string) (bool, error) {
	return r.transition(id, func(m *models.OutboundMessage) {
		m.Status = models.OutboundMessageStatusFailed
		m.ErrorDetail = &detail
	})
}

func (r *MemMessageRepo) MarkSkipped(_ context.Context, id uint, detail string) (bool, error) {
	return r.transition(id, func(m *models.OutboundMessage) {
		m.Status = models.OutboundMessageStatusSkipped
		m.ErrorDetail = &detail
	})
}

func (r *MemMessageRepo) MarkOpened(_ context.Context, id uint, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.find(id)
	if m == nil || m.OpenedAt != nil {
		return false, nil
	}
	m.OpenedAt = &at
	return true, nil
}

func (r *MemMessageRepo) MarkReplied(_ context.Context, id uint, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.find(id)
	if m == nil || m.RepliedAt != nil {
		return false, nil
	}
	m.RepliedAt = &at
	return true, nil
}

// MemABTestRepo is an in-memory ABTestRepository
type MemABTestRepo struct {
	repository.ABTestRepository
	mu   sync.Mutex
	rows map[uint]*models.ABTest
}

func NewMemABTestRepo(tests ...*models.ABTest) *MemABTestRepo {
	r := &MemABTestRepo{rows: map[uint]*models.ABTest{}}
	for _, t := range tests {
		r.rows[t.ID] = t
	}
	return r
}

// Get returns a copy of the stored row
func (r *MemABTestRepo) Get(id uint) models.ABTest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

func (r *MemABTestRepo) ByID(_ context.Context, id uint) (*models.ABTest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *MemABTestRepo) ByCampaignAndStep(_ context.Context, campaignID uint, stepNumber int) (*models.ABTest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.CampaignID == campaignID && row.StepNumber == stepNumber {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemABTestRepo) IncrementCounter(_ context.Context, id uint, counter models.ABTestCounter, variant models.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return ErrInjected
	}
	switch counter.Column(variant) {
	case "sends_a":
		row.SendsA++
	case "sends_b":
		row.SendsB++
	case "opens_a":
		row.OpensA++
	case "opens_b":
		row.OpensB++
	case "replies_a":
		row.RepliesA++
	case "replies_b":
		row.RepliesB++
	}
	return nil
}

func (r *MemABTestRepo) LockWinner(_ context.Context, id uint, winner models.Variant, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.Winner != nil {
		return false, nil
	}
	row.Winner = &winner
	row.WinnerSelectedAt = &at
	return true, nil
}

// MemRunJobRepo is an in-memory RunJobRepository
type MemRunJobRepo struct {
	repository.RunJobRepository
	mu   sync.Mutex
	rows []*models.RunJob
}

func NewMemRunJobRepo() *MemRunJobRepo {
	return &MemRunJobRepo{}
}

// All returns copies of every stored job
func (r *MemRunJobRepo) All() []models.RunJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RunJob, 0, len(r.rows))
	for _, j := range r.rows {
		out = append(out, *j)
	}
	return out
}

func (r *MemRunJobRepo) Save(_ context.Context, job *models.RunJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.ID = uint(len(r.rows) + 1)
	if job.UUID == uuid.Nil {
		job.UUID = uuid.New()
	}
	cp := *job
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *MemRunJobRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.RunJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.rows {
		if j.UUID == id {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemRunJobRepo) UpdateProgress(_ context.Context, id uint, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j := r.byID(id); j != nil && progress > j.Progress {
		j.Progress = progress
	}
	return nil
}

func (r *MemRunJobRepo) AppendError(_ context.Context, id uint, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j := r.byID(id); j != nil {
		j.Errors = append(j.Errors, message)
	}
	return nil
}

func (r *MemRunJobRepo) Finish(_ context.Context, job *models.RunJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.byID(job.ID)
	if j == nil {
		return ErrInjected
	}
	j.Status = job.Status
	j.Progress = job.Progress
	j.Summary = job.Summary
	j.ErrorMessage = job.ErrorMessage
	j.FinishedAt = job.FinishedAt
	return nil
}

func (r *MemRunJobRepo) byID(id uint) *models.RunJob {
	for _, j := range r.rows {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// MemRunEventRepo is an in-memory RunEventRepository
type MemRunEventRepo struct {
	mu   sync.Mutex
	rows []*models.RunEvent
}

func NewMemRunEventRepo() *MemRunEventRepo {
	return &MemRunEventRepo{}
}

func (r *MemRunEventRepo) Save(_ context.Context, event *models.RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uint(len(r.rows) + 1)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	cp := *event
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *MemRunEventRepo) ListByRunJob(_ context.Context, runJobID uint, limit, offset int) ([]*models.RunEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.RunEvent
	for _, e := range r.rows {
		if e.RunJobID == runJobID {
			cp := *e
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Kinds returns the kinds of every event of runJobID in order
func (r *MemRunEventRepo) Kinds(runJobID uint) []string {
	events, _ := r.ListByRunJob(context.Background(), runJobID, 0, 0)
	kinds := make([]string, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// MemSuppressionRepo is an in-memory SuppressionRepository
type MemSuppressionRepo struct {
	mu   sync.Mutex
	rows map[string]*string
}

func NewMemSuppressionRepo(addresses ...string) *MemSuppressionRepo {
	r := &MemSuppressionRepo{rows: map[string]*string{}}
	for _, a := range addresses {
		r.rows[a] = nil
	}
	return r
}

func (r *MemSuppressionRepo) Upsert(_ context.Context, address string, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[address] = reason
	return nil
}

func (r *MemSuppressionRepo) ExistsByAddress(_ context.Context, address string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[address]
	return ok, nil
}

// IsUnsubscribed lets the suppression fake stand in for an uncached unsubscribe checker
func (r *MemSuppressionRepo) IsUnsubscribed(ctx context.Context, address string) (bool, error) {
	return r.ExistsByAddress(ctx, address)
}
