package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/amirphl/outreach-autopilot/config"
	"github.com/amirphl/outreach-autopilot/models"
)

// ErrEmptyContent is returned when the generator answers without a subject or body
var ErrEmptyContent = errors.New("generated content is empty")

// GeneratedContent is a subject/body pair ready to queue
type GeneratedContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ContentGenerator writes the first outreach message for a recipient
type ContentGenerator interface {
	Generate(ctx context.Context, recipient *models.Recipient, campaign *models.Campaign) (*GeneratedContent, error)
}

// ContentGeneratorImpl calls the content service over HTTP
type ContentGeneratorImpl struct {
	config config.ProviderConfig
	client *http.Client
}

type generateRequest struct {
	CampaignID uint                   `json:"campaign_id"`
	Campaign   models.CampaignContext `json:"campaign_context"`
	Recipient  generateRecipient      `json:"recipient"`
}

type generateRecipient struct {
	ID        uint    `json:"id"`
	Address   string  `json:"address"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Company   *string `json:"company,omitempty"`
	Title     *string `json:"title,omitempty"`
}

// NewContentGenerator creates a content generation client
func NewContentGenerator(cfg config.ProviderConfig) ContentGenerator {
	return &ContentGeneratorImpl{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *ContentGeneratorImpl) Generate(ctx context.Context, recipient *models.Recipient, campaign *models.Campaign) (*GeneratedContent, error) {
	req := generateRequest{
		CampaignID: campaign.ID,
		Campaign:   campaign.Context,
		Recipient: generateRecipient{
			ID:        recipient.ID,
			Address:   recipient.Address,
			FirstName: recipient.FirstName,
			LastName:  recipient.LastName,
			Company:   recipient.Company,
			Title:     recipient.Title,
		},
	}
	var out GeneratedContent
	if err := postJSON(ctx, g.client, joinURL(g.config.BaseURL, "/v1/generate"), g.config.APIKey, req, &out); err != nil {
		return nil, fmt.Errorf("generate content for recipient %d: %w", recipient.ID, err)
	}
	if strings.TrimSpace(out.Subject) == "" || strings.TrimSpace(out.Body) == "" {
		return nil, fmt.Errorf("recipient %d: %w", recipient.ID, ErrEmptyContent)
	}
	return &out, nil
}

// MockContentGenerator produces deterministic content; FailFor makes chosen recipients fail
type MockContentGenerator struct {
	mu        sync.Mutex
	FailFor   map[uint]error
	Generated []MockGeneratedContent
}

// MockGeneratedContent records one generation
type MockGeneratedContent struct {
	RecipientID uint
	CampaignID  uint
	Content     GeneratedContent
}

// NewMockContentGenerator creates a mock generator
func NewMockContentGenerator() *MockContentGenerator {
	return &MockContentGenerator{FailFor: make(map[uint]error)}
}

func (m *MockContentGenerator) Generate(ctx context.Context, recipient *models.Recipient, campaign *models.Campaign) (*GeneratedContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailFor[recipient.ID]; ok {
		return nil, err
	}
	name := recipient.Address
	if recipient.FirstName != nil && *recipient.FirstName != "" {
		name = *recipient.FirstName
	}
	content := GeneratedContent{
		Subject: fmt.Sprintf("Quick question for %s", name),
		Body:    fmt.Sprintf("Hi %s,\n\nI wanted to reach out about %s.", name, campaign.Name),
	}
	m.Generated = append(m.Generated, MockGeneratedContent{RecipientID: recipient.ID, CampaignID: campaign.ID, Content: content})
	return &content, nil
}
