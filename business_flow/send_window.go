package businessflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
)

// IsSendAllowed reports whether a campaign may send at now.
// now is converted to the campaign timezone; weekends are excluded when BusinessDaysOnly is set,
// otherwise the local time of day must fall inside [WindowStart, WindowEnd], both ends inclusive.
// The comparison is done at minute resolution, so 17:00:59 is still inside a window ending at 17:00.
// A window whose end is before its start is rejected rather than treated as overnight.
func IsSendAllowed(cfg models.AutomationConfig, now time.Time) (bool, error) {
	loc, start, end, err := ParseSendWindow(cfg)
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	if cfg.BusinessDaysOnly {
		switch local.Weekday() {
		case time.Saturday, time.Sunday:
			return false, nil
		}
	}

	minute := local.Hour()*60 + local.Minute()
	return minute >= start && minute <= end, nil
}

// ParseSendWindow validates the window of cfg and returns its location and bounds in minutes of day
func ParseSendWindow(cfg models.AutomationConfig) (*time.Location, int, int, error) {
	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, cfg.Timezone, err)
	}

	start, err := parseClock(cfg.WindowStart)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: window_start: %v", ErrInvalidSendWindow, err)
	}
	end, err := parseClock(cfg.WindowEnd)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: window_end: %v", ErrInvalidSendWindow, err)
	}
	if end < start {
		return nil, 0, 0, fmt.Errorf("%w: %s-%s", ErrReversedSendWindow, cfg.WindowStart, cfg.WindowEnd)
	}

	return loc, start, end, nil
}

// parseClock turns "HH:MM" into minutes since midnight
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
