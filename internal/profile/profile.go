// Package profile loads user preferences from pluggable stores.
package profile

import (
	"context"
	"errors"
	"fmt"

	"memetrend/internal/domain"
	"memetrend/internal/logging"
)

var (
	// ErrUnknownUser is returned by stores that have no record for a user.
	ErrUnknownUser = errors.New("profile: unknown user")
	// ErrReadOnly is returned when saving to a store that cannot persist.
	ErrReadOnly = errors.New("profile: store is read-only")
)

// Store reads preferences for a user.
type Store interface {
	Load(ctx context.Context, userID string) (domain.UserPreferences, error)
}

// Saver is a Store that can persist preferences.
type Saver interface {
	Store
	Save(ctx context.Context, userID string, prefs domain.UserPreferences) error
}

// SetInterests replaces the interests of userID and keeps the user's other
// categories. An unknown user is created.
func SetInterests(ctx context.Context, store Store, userID string, interests []string) error {
	saver, ok := store.(Saver)
	if !ok {
		return fmt.Errorf("%w: %T", ErrReadOnly, store)
	}
	prefs, err := store.Load(ctx, userID)
	if err != nil && !errors.Is(err, ErrUnknownUser) {
		return err
	}
	prefs = prefs.Clone()
	prefs[domain.InterestsKey] = append([]string(nil), interests...)
	if err := saver.Save(ctx, userID, prefs); err != nil {
		return fmt.Errorf("save preferences for %s: %w", userID, err)
	}
	logging.Ctx(ctx).Info().Str("user", userID).Strs("interests", interests).Msg("user interests saved")
	return nil
}

// Profile holds a user's preferences.
type Profile struct {
	UserID string
	prefs  domain.UserPreferences
}

// New returns a profile with a private copy of prefs.
func New(userID string, prefs domain.UserPreferences) *Profile {
	return &Profile{UserID: userID, prefs: prefs.Clone()}
}

// Load fetches userID from store. Failures are logged and yield a profile
// with empty preferences.
func Load(ctx context.Context, userID string, store Store) *Profile {
	prefs, err := store.Load(ctx, userID)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("op", "load_profile").Str("user", userID).Msg("failed to load user preferences")
		return New(userID, nil)
	}
	logging.Ctx(ctx).Debug().Str("user", userID).Int("interests", len(prefs.Interests())).Msg("user preferences loaded")
	return New(userID, prefs)
}

// Preferences returns a copy; callers may modify it freely.
func (p *Profile) Preferences() domain.UserPreferences {
	return p.prefs.Clone()
}

// StaticStore serves the same preferences to every user.
type StaticStore struct {
	Prefs domain.UserPreferences
}

// DefaultInterests are served by NewStaticStore.
var DefaultInterests = []string{"crypto", "memes", "AI", "gaming", "NFTs"}

// NewStaticStore returns a store with the default demo interests.
func NewStaticStore() StaticStore {
	return StaticStore{Prefs: domain.UserPreferences{
		domain.InterestsKey: append([]string(nil), DefaultInterests...),
	}}
}

func (s StaticStore) Load(context.Context, string) (domain.UserPreferences, error) {
	return s.Prefs.Clone(), nil
}
