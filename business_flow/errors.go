package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Configuration errors abort the whole run
	ErrInvalidSendWindow   = errors.New("invalid send window")
	ErrReversedSendWindow  = errors.New("send window end is earlier than start")
	ErrInvalidTimezone     = errors.New("invalid timezone")
	ErrInvalidAutomation   = errors.New("invalid automation config")
	ErrMissingOwnerForSend = errors.New("campaign has no owner")

	// Exhaustion conditions halt delivery for the current run only
	ErrNoIdentityAvailable    = errors.New("no sending identity available")
	ErrIdentityQuotaExhausted = errors.New("sending identity quota exhausted")

	// Lookups
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrMessageNotFound   = errors.New("outbound message not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrABTestNotFound    = errors.New("ab test not found")
	ErrRunJobNotFound    = errors.New("run job not found")

	// Concurrency
	ErrConcurrentUpdate = errors.New("entity was modified concurrently")
	ErrRunInProgress    = errors.New("a run for this campaign is already in progress")

	ErrInvalidVariant = errors.New("invalid variant")
	ErrInvalidAddress = errors.New("invalid address")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// IsConfigurationError reports errors that must fail the run instead of a single item
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidSendWindow) ||
		errors.Is(err, ErrReversedSendWindow) ||
		errors.Is(err, ErrInvalidTimezone) ||
		errors.Is(err, ErrInvalidAutomation) ||
		errors.Is(err, ErrMissingOwnerForSend)
}

func IsNoIdentityAvailable(err error) bool {
	return errors.Is(err, ErrNoIdentityAvailable)
}

func IsIdentityQuotaExhausted(err error) bool {
	return errors.Is(err, ErrIdentityQuotaExhausted)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsMessageNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound)
}

func IsABTestNotFound(err error) bool {
	return errors.Is(err, ErrABTestNotFound)
}

func IsRunJobNotFound(err error) bool {
	return errors.Is(err, ErrRunJobNotFound)
}

func IsRunInProgress(err error) bool {
	return errors.Is(err, ErrRunInProgress)
}
