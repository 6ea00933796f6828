// Package businessflow contains the core autopilot logic: gating, allocation, sequencing and A/B decisions.
package businessflow

import (
	"fmt"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/go-playground/validator/v10"
)

var configValidator = validator.New()

// ValidateAutomationConfig checks the struct constraints and the send window of cfg.
// Any error it returns is a configuration error.
func ValidateAutomationConfig(cfg models.AutomationConfig) error {
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAutomation, err)
	}
	if _, _, _, err := ParseSendWindow(cfg); err != nil {
		return err
	}
	return nil
}
