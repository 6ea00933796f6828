package businessflow

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func windowConfig(start, end, tz string, businessDays bool) models.AutomationConfig {
	return models.AutomationConfig{
		AutomationEnabled: true,
		DailyCap:          50,
		WindowStart:       start,
		WindowEnd:         end,
		Timezone:          tz,
		BusinessDaysOnly:  businessDays,
	}
}

func TestIsSendAllowed(t *testing.T) {
	// America/New_York is UTC-4 until 2026-11-01
	nineToFive := windowConfig("09:00", "17:00", "America/New_York", true)
	allDay := windowConfig("00:00", "23:59", "America/New_York", true)

	tests := []struct {
		name string
		cfg  models.AutomationConfig
		now  time.Time
		want bool
	}{
		{"StartIsInclusive", nineToFive, time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC), true},
		{"MinuteBeforeStart", nineToFive, time.Date(2026, 10, 19, 12, 59, 59, 0, time.UTC), false},
		{"EndIsInclusive", nineToFive, time.Date(2026, 10, 19, 21, 0, 0, 0, time.UTC), true},
		{"EndMinuteIsInclusiveToTheLastSecond", nineToFive, time.Date(2026, 10, 19, 21, 0, 59, 0, time.UTC), true},
		{"MinuteAfterEnd", nineToFive, time.Date(2026, 10, 19, 21, 1, 0, 0, time.UTC), false},
		{"SaturdayInsideHours", nineToFive, time.Date(2026, 10, 24, 15, 0, 0, 0, time.UTC), false},
		{"UTCSaturdayIsLocalFriday", allDay, time.Date(2026, 10, 24, 3, 0, 0, 0, time.UTC), true},
		{"UTCMondayIsLocalSunday", allDay, time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC), false},
		{"WeekendAllowedWithoutBusinessDays", windowConfig("09:00", "17:00", "America/New_York", false), time.Date(2026, 10, 24, 15, 0, 0, 0, time.UTC), true},
		{"SingleMinuteWindow", windowConfig("12:00", "12:00", "UTC", false), time.Date(2026, 10, 19, 12, 0, 30, 0, time.UTC), true},
		{"EmptyTimezoneIsUTC", windowConfig("09:00", "17:00", "", false), time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsSendAllowed(tt.cfg, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("Pure", func(t *testing.T) {
		now := time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)
		first, err := IsSendAllowed(nineToFive, now)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := IsSendAllowed(nineToFive, now)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})
}

func TestIsSendAllowedConfigurationErrors(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		cfg     models.AutomationConfig
		wantErr error
	}{
		{"ReversedWindow", windowConfig("17:00", "09:00", "UTC", false), ErrReversedSendWindow},
		{"UnknownTimezone", windowConfig("09:00", "17:00", "Mars/Olympus_Mons", false), ErrInvalidTimezone},
		{"SingleDigitHour", windowConfig("9:00", "17:00", "UTC", false), ErrInvalidSendWindow},
		{"HourOutOfRange", windowConfig("09:00", "24:00", "UTC", false), ErrInvalidSendWindow},
		{"MinuteOutOfRange", windowConfig("09:60", "17:00", "UTC", false), ErrInvalidSendWindow},
		{"NotAClock", windowConfig("ab:cd", "17:00", "UTC", false), ErrInvalidSendWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, err := IsSendAllowed(tt.cfg, now)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsConfigurationError(err))
			assert.False(t, allowed)
		})
	}
}

func TestValidateAutomationConfig(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, ValidateAutomationConfig(windowConfig("09:00", "17:00", "Europe/Berlin", true)))
	})

	t.Run("NegativeDailyCap", func(t *testing.T) {
		cfg := windowConfig("09:00", "17:00", "UTC", true)
		cfg.DailyCap = -1
		err := ValidateAutomationConfig(cfg)
		assert.ErrorIs(t, err, ErrInvalidAutomation)
		assert.True(t, IsConfigurationError(err))
	})

	t.Run("MissingWindow", func(t *testing.T) {
		err := ValidateAutomationConfig(windowConfig("", "17:00", "UTC", true))
		assert.ErrorIs(t, err, ErrInvalidAutomation)
	})

	t.Run("ReversedWindow", func(t *testing.T) {
		err := ValidateAutomationConfig(windowConfig("18:00", "08:00", "UTC", true))
		assert.ErrorIs(t, err, ErrReversedSendWindow)
	})
}
