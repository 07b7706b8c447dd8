package model

import "time"

// Frequency identifies a digest schedule.
type Frequency string

// The supported digest frequencies.
const (
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// Window returns the length of the period summarized by a digest of this frequency.
func (f Frequency) Window() time.Duration {
	if f == Weekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// Valid returns true if the frequency is supported.
func (f Frequency) Valid() bool {
	return f == Daily || f == Weekly
}

// Preferences holds a user's notification settings. The zero value disables everything, so callers should
// start from DefaultPreferences.
type Preferences struct {
	UserID             string `json:"-"`
	EmailNotifications bool   `json:"emailNotifications"`
	TaskAssigned       bool   `json:"taskAssigned"`
	TaskUpdated        bool   `json:"taskUpdated"`
	TaskCommented      bool   `json:"taskCommented"`
	TaskDueDate        bool   `json:"taskDueDate"`
	ProjectInvitation  bool   `json:"projectInvitation"`
	DailyDigest        bool   `json:"dailyDigest"`
	WeeklyDigest       bool   `json:"weeklyDigest"`
}

// DefaultPreferences returns the settings that apply to a user who has never saved any.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:             userID,
		EmailNotifications: true,
		TaskAssigned:       true,
		TaskUpdated:        true,
		TaskCommented:      true,
		TaskDueDate:        true,
		ProjectInvitation:  true,
		DailyDigest:        true,
		WeeklyDigest:       true,
	}
}

// EmailFlag returns the stored e-mail flag for a category. The second return value is false when the
// category has no flag in the preference schema.
func (p *Preferences) EmailFlag(category Category) (bool, bool) {
	switch category {
	case TaskAssigned:
		return p.TaskAssigned, true
	case TaskUpdated:
		return p.TaskUpdated, true
	case TaskCommented:
		return p.TaskCommented, true
	case TaskDueSoon:
		return p.TaskDueDate, true
	case ProjectInvitation:
		return p.ProjectInvitation, true
	default:
		return false, false
	}
}

// DigestFlag returns the digest flag for the given frequency.
func (p *Preferences) DigestFlag(frequency Frequency) bool {
	switch frequency {
	case Daily:
		return p.DailyDigest
	case Weekly:
		return p.WeeklyDigest
	default:
		return false
	}
}
