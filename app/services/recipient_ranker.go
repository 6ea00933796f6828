package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/amirphl/outreach-autopilot/config"
)

// RankedRecipient is one candidate returned by the ranking collaborator, highest priority first
type RankedRecipient struct {
	RecipientID   uint              `json:"recipient_id"`
	PriorityScore float64           `json:"priority_score"`
	Context       map[string]string `json:"context,omitempty"`
}

// RecipientRanker supplies ordered candidate recipients for a campaign
type RecipientRanker interface {
	Rank(ctx context.Context, campaignID uint, limit int) ([]RankedRecipient, error)
}

// RecipientRankerImpl calls the ranking service over HTTP
type RecipientRankerImpl struct {
	config config.ProviderConfig
	client *http.Client
}

type rankRequest struct {
	CampaignID uint `json:"campaign_id"`
	Limit      int  `json:"limit"`
}

type rankResponse struct {
	Recipients []RankedRecipient `json:"recipients"`
}

// NewRecipientRanker creates a ranking client
func NewRecipientRanker(cfg config.ProviderConfig) RecipientRanker {
	return &RecipientRankerImpl{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Rank returns at most limit candidates in the order the service gave them
func (r *RecipientRankerImpl) Rank(ctx context.Context, campaignID uint, limit int) ([]RankedRecipient, error) {
	if limit <= 0 {
		return nil, nil
	}
	var resp rankResponse
	if err := postJSON(ctx, r.client, joinURL(r.config.BaseURL, "/v1/rank"), r.config.APIKey,
		rankRequest{CampaignID: campaignID, Limit: limit}, &resp); err != nil {
		return nil, fmt.Errorf("rank recipients for campaign %d: %w", campaignID, err)
	}
	if len(resp.Recipients) > limit {
		resp.Recipients = resp.Recipients[:limit]
	}
	return resp.Recipients, nil
}

// MockRecipientRanker serves preloaded rankings for tests and local runs
type MockRecipientRanker struct {
	mu       sync.Mutex
	Rankings map[uint][]RankedRecipient
	Err      error
	Calls    []MockRankCall
}

// MockRankCall records one Rank invocation
type MockRankCall struct {
	CampaignID uint
	Limit      int
}

// NewMockRecipientRanker creates a mock ranker with no rankings
func NewMockRecipientRanker() *MockRecipientRanker {
	return &MockRecipientRanker{Rankings: make(map[uint][]RankedRecipient)}
}

// SetRanking replaces the ranking returned for a campaign
func (m *MockRecipientRanker) SetRanking(campaignID uint, ranked []RankedRecipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rankings[campaignID] = ranked
}

func (m *MockRecipientRanker) Rank(ctx context.Context, campaignID uint, limit int) ([]RankedRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockRankCall{CampaignID: campaignID, Limit: limit})
	if m.Err != nil {
		return nil, m.Err
	}
	ranked := m.Rankings[campaignID]
	if limit < len(ranked) {
		ranked = ranked[:max(limit, 0)]
	}
	out := make([]RankedRecipient, len(ranked))
	copy(out, ranked)
	return out, nil
}
