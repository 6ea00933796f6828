package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCampaign creates an active, automation-enabled campaign with an all-day window
func (tf *TestFixtures) CreateTestCampaign(ownerID uint) (*models.Campaign, error) {
	campaign := &models.Campaign{
		OwnerID: ownerID,
		Name:    fmt.Sprintf("Test Campaign %d", rand.Intn(1000000)),
		Status:  models.CampaignStatusActive,
		Tags:    []string{"test"},
		Context: models.CampaignContext{
			Product:    utils.ToPtr("Widgets"),
			SenderName: utils.ToPtr("Sam"),
		},
		AutomationConfig: models.AutomationConfig{
			AutomationEnabled:     true,
			DailyCap:              50,
			WindowStart:           "00:00",
			WindowEnd:             "23:59",
			Timezone:              "UTC",
			BusinessDaysOnly:      false,
			MinRecipientThreshold: 10,
		},
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestIdentity creates an active sending identity for ownerID
func (tf *TestFixtures) CreateTestIdentity(ownerID uint, dailyQuota, sentToday int, lastResetAt time.Time) (*models.SendingIdentity, error) {
	identity := &models.SendingIdentity{
		OwnerID:     ownerID,
		Name:        utils.ToPtr("Sender"),
		Address:     fmt.Sprintf("sender.%d@example.com", rand.Intn(100000000)),
		DailyQuota:  dailyQuota,
		SentToday:   sentToday,
		LastResetAt: lastResetAt,
		IsActive:    utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(identity).Error; err != nil {
		return nil, fmt.Errorf("failed to create test identity: %w", err)
	}
	return identity, nil
}

// CreateTestRecipient creates a new recipient in campaignID
func (tf *TestFixtures) CreateTestRecipient(campaignID uint, address string) (*models.Recipient, error) {
	recipient := &models.Recipient{
		CampaignID: campaignID,
		Address:    address,
		FirstName:  utils.ToPtr("Ada"),
		LastName:   utils.ToPtr("Lovelace"),
		Company:    utils.ToPtr("Analytical Engines"),
		Status:     models.RecipientStatusNew,
	}

	if err := tf.DB.DB.Create(recipient).Error; err != nil {
		return nil, fmt.Errorf("failed to create test recipient: %w", err)
	}
	return recipient, nil
}

// CreateTestSteps creates steps 1..n for campaignID, each delayed by delayDays
func (tf *TestFixtures) CreateTestSteps(campaignID uint, n, delayDays int) ([]*models.SequenceStep, error) {
	steps := make([]*models.SequenceStep, 0, n)
	for i := 1; i <= n; i++ {
		steps = append(steps, &models.SequenceStep{
			CampaignID:      campaignID,
			StepNumber:      i,
			DelayDays:       delayDays,
			SubjectTemplate: fmt.Sprintf("Step %d for {{first_name}}", i),
			BodyTemplate:    "Hi {{first_name}}, checking in.",
			IsActive:        utils.ToPtr(true),
		})
	}

	if err := tf.DB.DB.Create(&steps).Error; err != nil {
		return nil, fmt.Errorf("failed to create test steps: %w", err)
	}
	return steps, nil
}

// CreateQueuedMessage creates a queued first-touch message
func (tf *TestFixtures) CreateQueuedMessage(campaignID, recipientID uint) (*models.OutboundMessage, error) {
	msg := &models.OutboundMessage{
		CampaignID:  campaignID,
		RecipientID: recipientID,
		Subject:     "Hello",
		Body:        "Hello there",
		Status:      models.OutboundMessageStatusQueued,
	}

	if err := tf.DB.DB.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create queued message: %w", err)
	}
	return msg, nil
}
