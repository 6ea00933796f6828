package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/amirphl/outreach-autopilot/config"
	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/google/uuid"
)

// ErrRecipientBounced marks a hard bounce; the recipient must not be contacted again
var ErrRecipientBounced = errors.New("recipient address bounced")

// DeliveryTransport hands a rendered message to the mail provider
type DeliveryTransport interface {
	Deliver(ctx context.Context, identity *models.SendingIdentity, to, subject, body string) (string, error)
}

// DeliveryTransportImpl calls the delivery provider over HTTP
type DeliveryTransportImpl struct {
	config config.ProviderConfig
	client *http.Client
}

type deliverRequest struct {
	From     string `json:"from"`
	FromName string `json:"from_name,omitempty"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

type deliverResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

// NewDeliveryTransport creates a delivery client
func NewDeliveryTransport(cfg config.ProviderConfig) DeliveryTransport {
	return &DeliveryTransportImpl{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Deliver returns the provider message id; any non-accepted answer is an error
func (d *DeliveryTransportImpl) Deliver(ctx context.Context, identity *models.SendingIdentity, to, subject, body string) (string, error) {
	req := deliverRequest{
		From:    identity.Address,
		To:      to,
		Subject: subject,
		Body:    body,
	}
	if identity.Name != nil {
		req.FromName = *identity.Name
	}
	var resp deliverResponse
	if err := postJSON(ctx, d.client, joinURL(d.config.BaseURL, "/v1/messages"), d.config.APIKey, req, &resp); err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) && perr.StatusCode == http.StatusUnprocessableEntity {
			return "", fmt.Errorf("%w: %s", ErrRecipientBounced, perr.Body)
		}
		return "", err
	}
	switch resp.Status {
	case "accepted", "queued", "sent":
	case "bounced":
		return "", fmt.Errorf("%w: %s", ErrRecipientBounced, resp.Detail)
	default:
		return "", fmt.Errorf("delivery rejected: status=%q detail=%q", resp.Status, resp.Detail)
	}
	if resp.MessageID == "" {
		return "", errors.New("delivery accepted without a message id")
	}
	return resp.MessageID, nil
}

// MockDeliveryTransport implements DeliveryTransport for testing
type MockDeliveryTransport struct {
	mu           sync.Mutex
	SentMessages []MockDeliveredMessage
	FailFor      map[string]error
}

// MockDeliveredMessage represents a mock delivered message
type MockDeliveredMessage struct {
	ProviderID string
	IdentityID uint
	From       string
	To         string
	Subject    string
	Body       string
	SentAt     time.Time
}

// NewMockDeliveryTransport creates a new mock transport
func NewMockDeliveryTransport() *MockDeliveryTransport {
	return &MockDeliveryTransport{
		SentMessages: make([]MockDeliveredMessage, 0),
		FailFor:      make(map[string]error),
	}
}

func (m *MockDeliveryTransport) Deliver(ctx context.Context, identity *models.SendingIdentity, to, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := m.FailFor[utils.NormalizeAddress(to)]; ok {
		return "", err
	}
	msg := MockDeliveredMessage{
		ProviderID: "mock-" + uuid.NewString(),
		IdentityID: identity.ID,
		From:       identity.Address,
		To:         to,
		Subject:    subject,
		Body:       body,
		SentAt:     utils.UTCNow(),
	}
	m.SentMessages = append(m.SentMessages, msg)
	return msg.ProviderID, nil
}

// GetSentMessages returns all delivered mock messages
func (m *MockDeliveryTransport) GetSentMessages() []MockDeliveredMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockDeliveredMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// ClearSentMessages clears the delivered messages list
func (m *MockDeliveryTransport) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = make([]MockDeliveredMessage, 0)
}
