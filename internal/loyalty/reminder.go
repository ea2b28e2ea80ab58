package loyalty

import (
	"fmt"
	"time"

	"loyaltypay/internal/model"
)

// 距上次活跃 [20h, 24h) 时提醒用户保持连续
const (
	ReminderWindowStart = 20 * time.Hour
	ReminderWindowEnd   = 24 * time.Hour
)

type StreakReminder struct {
	Should  bool   `json:"should"`
	Message string `json:"message,omitempty"`
}

func ShouldSendStreakReminder(profile *model.LoyaltyProfile, now time.Time) StreakReminder {
	if profile == nil || profile.LastActivityDate == nil {
		return StreakReminder{}
	}

	elapsed := now.Sub(*profile.LastActivityDate)
	if elapsed < ReminderWindowStart || elapsed >= ReminderWindowEnd {
		return StreakReminder{}
	}

	return StreakReminder{
		Should:  true,
		Message: fmt.Sprintf("Don't lose your %d-day streak! Complete a transaction today.", profile.StreakDays),
	}
}
