package models

import "time"

// Variant identifies one arm of an A/B test
type Variant string

const (
	VariantA Variant = "A"
	VariantB Variant = "B"
)

// Valid checks if the variant is one of the two known arms
func (v Variant) Valid() bool {
	return v == VariantA || v == VariantB
}

func (v Variant) String() string {
	return string(v)
}

// ABTest compares two content variants for one sequence step of a campaign.
// Each campaign owns a single sequence, so (campaign_id, step_number) identifies the step.
// Once Winner is set it is never reassigned; counters only grow.
type ABTest struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	CampaignID uint `gorm:"not null;uniqueIndex:uk_ab_tests_campaign_step,priority:1" json:"campaign_id"`
	StepNumber int  `gorm:"not null;uniqueIndex:uk_ab_tests_campaign_step,priority:2" json:"step_number"`

	VariantASubject string `gorm:"column:variant_a_subject;type:text;not null" json:"variant_a_subject"`
	VariantABody    string `gorm:"column:variant_a_body;type:text;not null" json:"variant_a_body"`
	VariantBSubject string `gorm:"column:variant_b_subject;type:text;not null" json:"variant_b_subject"`
	VariantBBody    string `gorm:"column:variant_b_body;type:text;not null" json:"variant_b_body"`

	SendsA   int `gorm:"column:sends_a;not null;default:0" json:"sends_a"`
	OpensA   int `gorm:"column:opens_a;not null;default:0" json:"opens_a"`
	RepliesA int `gorm:"column:replies_a;not null;default:0" json:"replies_a"`
	SendsB   int `gorm:"column:sends_b;not null;default:0" json:"sends_b"`
	OpensB   int `gorm:"column:opens_b;not null;default:0" json:"opens_b"`
	RepliesB int `gorm:"column:replies_b;not null;default:0" json:"replies_b"`

	Winner              *Variant   `gorm:"size:1" json:"winner,omitempty"`
	WinnerSelectedAt    *time.Time `json:"winner_selected_at,omitempty"`
	ConfidenceThreshold float64    `gorm:"not null;default:0.95" json:"confidence_threshold"`
	MinSampleSize       int        `gorm:"not null;default:50" json:"min_sample_size"`
	IsActive            *bool      `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ABTest) TableName() string { return "ab_tests" }

// Active treats a missing flag as active
func (t *ABTest) Active() bool {
	return t.IsActive == nil || *t.IsActive
}

// HasWinner reports whether the test reached its terminal state
func (t *ABTest) HasWinner() bool {
	return t.Winner != nil
}

// Content returns the subject and body of the given variant
func (t *ABTest) Content(v Variant) (subject, body string) {
	if v == VariantB {
		return t.VariantBSubject, t.VariantBBody
	}
	return t.VariantASubject, t.VariantABody
}

// ABTestCounter names a per-variant counter column family
type ABTestCounter string

const (
	ABTestCounterSends   ABTestCounter = "sends"
	ABTestCounterOpens   ABTestCounter = "opens"
	ABTestCounterReplies ABTestCounter = "replies"
)

// Column returns the counter column for the given variant, e.g. replies_b
func (c ABTestCounter) Column(v Variant) string {
	suffix := "_a"
	if v == VariantB {
		suffix = "_b"
	}
	return string(c) + suffix
}

// ABTestFilter represents filter criteria for A/B test queries
type ABTestFilter struct {
	ID         *uint
	CampaignID *uint
	StepNumber *int
	IsActive   *bool
	HasWinner  *bool
}
