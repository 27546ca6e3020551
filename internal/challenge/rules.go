package challenge

import (
	"fmt"
	"time"
)

// DayWindow returns the calendar day containing now in loc as [start, end).
func DayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, end
}

// DailyCap returns the number of capped starts allowed per day.
func DailyCap(isPremium bool, freeCap, premiumCap int) int {
	if isPremium {
		return premiumCap
	}
	return freeCap
}

// CapReason explains why a capped start is refused, or returns "" when
// used < limit and the start is allowed.
func CapReason(used, limit int, isPremium bool) string {
	if used < limit {
		return ""
	}
	if isPremium {
		return fmt.Sprintf("daily challenge limit reached (%d/%d)", used, limit)
	}
	return fmt.Sprintf("daily challenge limit reached (%d/%d), upgrade to premium for more", used, limit)
}

// NextStreak returns the streak after an activity at now. An activity on the
// calendar day after the last one extends the streak, one on the same day
// keeps it, anything else starts a new streak of 1.
func NextStreak(streak int, lastActive *time.Time, now time.Time, loc *time.Location) int {
	if lastActive == nil || streak <= 0 {
		return 1
	}
	today, _ := DayWindow(now, loc)
	lastDay, _ := DayWindow(*lastActive, loc)
	switch {
	case lastDay.Equal(today):
		return streak
	case lastDay.Equal(time.Date(today.Year(), today.Month(), today.Day()-1, 0, 0, 0, 0, loc)):
		return streak + 1
	default:
		return 1
	}
}

// InactiveDays returns the number of whole days between lastActive and now.
func InactiveDays(lastActive, now time.Time) int {
	if !now.After(lastActive) {
		return 0
	}
	return int(now.Sub(lastActive) / (24 * time.Hour))
}
