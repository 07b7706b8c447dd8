package preferences

import (
	"context"
	"errors"
	"testing"

	"github.com/cyverse-de/project-notifications/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockStore keeps preferences in memory.
type MockStore struct {
	prefs map[string]*model.Preferences
	err   error
}

// NewMockStore creates a new, empty mock preference store.
func NewMockStore() *MockStore {
	return &MockStore{prefs: make(map[string]*model.Preferences)}
}

// GetPreferences returns the stored preferences, or nil if there aren't any.
func (s *MockStore) GetPreferences(_ context.Context, userID string) (*model.Preferences, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.prefs[userID], nil
}

// SavePreferences records the preferences.
func (s *MockStore) SavePreferences(_ context.Context, prefs *model.Preferences) error {
	if s.err != nil {
		return s.err
	}
	s.prefs[prefs.UserID] = prefs
	return nil
}

func TestShouldEmailMissingRowAllowsEverything(t *testing.T) {
	gate := NewGate(NewMockStore())

	for _, c := range model.Categories() {
		ok, err := gate.ShouldEmail(context.Background(), "c", c)
		assert.NoError(t, err)
		assert.Truef(t, ok, "category %s should be e-mailed for users without preferences", c)
	}
}

func TestShouldEmailStoredFlags(t *testing.T) {
	assert := assert.New(t)
	store := NewMockStore()
	prefs := model.DefaultPreferences("u")
	prefs.TaskCommented = false
	store.prefs["u"] = prefs
	gate := NewGate(store)
	ctx := context.Background()

	ok, err := gate.ShouldEmail(ctx, "u", model.TaskCommented)
	assert.NoError(err)
	assert.False(ok)

	ok, err = gate.ShouldEmail(ctx, "u", model.TaskAssigned)
	assert.NoError(err)
	assert.True(ok)

	// Categories outside the preference schema fail closed once a row exists.
	ok, err = gate.ShouldEmail(ctx, "u", model.TaskCompleted)
	assert.NoError(err)
	assert.False(ok)
}

func TestShouldEmailMasterSwitch(t *testing.T) {
	store := NewMockStore()
	prefs := model.DefaultPreferences("u")
	prefs.EmailNotifications = false
	store.prefs["u"] = prefs
	gate := NewGate(store)

	for _, c := range model.Categories() {
		ok, err := gate.ShouldEmail(context.Background(), "u", c)
		assert.NoError(t, err)
		assert.False(t, ok, "the master switch should disable category %s", c)
	}
}

func TestShouldEmailStoreFailure(t *testing.T) {
	store := NewMockStore()
	store.err = errors.New("database down")
	gate := NewGate(store)

	ok, err := gate.ShouldEmail(context.Background(), "u", model.TaskAssigned)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestDigestEnabled(t *testing.T) {
	assert := assert.New(t)
	store := NewMockStore()
	prefs := model.DefaultPreferences("u")
	prefs.DailyDigest = false
	store.prefs["u"] = prefs
	gate := NewGate(store)
	ctx := context.Background()

	daily, err := gate.DigestEnabled(ctx, "u", model.Daily)
	assert.NoError(err)
	assert.False(daily)

	weekly, err := gate.DigestEnabled(ctx, "u", model.Weekly)
	assert.NoError(err)
	assert.True(weekly)

	// Digest flags are independent of the e-mail master switch.
	prefs.EmailNotifications = false
	weekly, err = gate.DigestEnabled(ctx, "u", model.Weekly)
	assert.NoError(err)
	assert.True(weekly)

	missing, err := gate.DigestEnabled(ctx, "someone-else", model.Daily)
	assert.NoError(err)
	assert.True(missing)
}

func TestGetAndSet(t *testing.T) {
	assert := assert.New(t)
	gate := NewGate(NewMockStore())
	ctx := context.Background()

	prefs, err := gate.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(model.DefaultPreferences("u"), prefs)

	update := model.DefaultPreferences("ignored")
	update.WeeklyDigest = false
	saved, err := gate.Set(ctx, "u", update)
	require.NoError(t, err)
	assert.Equal("u", saved.UserID, "the caller's identity must win over the request body")

	prefs, err = gate.Get(ctx, "u")
	require.NoError(t, err)
	assert.False(prefs.WeeklyDigest)

	_, err = gate.Set(ctx, "", update)
	assert.Error(err)
}
