package preferences

import (
	"context"

	"github.com/cyverse-de/project-notifications/common"
	"github.com/cyverse-de/project-notifications/model"
	"github.com/pkg/errors"
)

// Store loads and saves notification preferences. GetPreferences returns nil without an error for users who
// have never saved any.
type Store interface {
	GetPreferences(ctx context.Context, userID string) (*model.Preferences, error)
	SavePreferences(ctx context.Context, prefs *model.Preferences) error
}

// Gate resolves per-user notification settings, applying defaults for users without stored preferences.
type Gate struct {
	store Store
}

// NewGate returns a new preference gate.
func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// Get returns the effective preferences for a user. Users without stored preferences get the defaults.
func (g *Gate) Get(ctx context.Context, userID string) (*model.Preferences, error) {
	prefs, err := g.store.GetPreferences(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "unable to look up notification preferences")
	}
	if prefs == nil {
		return model.DefaultPreferences(userID), nil
	}
	return prefs, nil
}

// Set replaces the stored preferences for a user.
func (g *Gate) Set(ctx context.Context, userID string, prefs *model.Preferences) (*model.Preferences, error) {
	if userID == "" {
		return nil, common.NewValidationError("a user is required")
	}
	saved := *prefs
	saved.UserID = userID
	if err := g.store.SavePreferences(ctx, &saved); err != nil {
		return nil, errors.Wrap(err, "unable to save notification preferences")
	}
	return &saved, nil
}

// ShouldEmail returns true if a notification of the given category should be accompanied by an e-mail. A user
// without stored preferences receives e-mail for every category; categories without a flag in the preference
// schema never produce e-mail for users who have stored preferences.
func (g *Gate) ShouldEmail(ctx context.Context, userID string, category model.Category) (bool, error) {
	prefs, err := g.store.GetPreferences(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "unable to look up notification preferences")
	}
	if prefs == nil {
		return true, nil
	}
	if !prefs.EmailNotifications {
		return false, nil
	}
	flag, _ := prefs.EmailFlag(category)
	return flag, nil
}

// DigestEnabled returns true if the user should receive digests of the given frequency. Users without stored
// preferences receive every digest.
func (g *Gate) DigestEnabled(ctx context.Context, userID string, frequency model.Frequency) (bool, error) {
	prefs, err := g.store.GetPreferences(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "unable to look up notification preferences")
	}
	if prefs == nil {
		return frequency.Valid(), nil
	}
	return prefs.DigestFlag(frequency), nil
}
