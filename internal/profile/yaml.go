package profile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"memetrend/internal/domain"
)

// YAMLStore reads preferences from a file shaped like:
//
//	users:
//	  alice:
//	    interests: [crypto, memes]
type YAMLStore struct {
	Path string
}

type yamlFile struct {
	Users map[string]domain.UserPreferences `yaml:"users"`
}

// Load returns ErrUnknownUser when the file does not exist yet.
func (s YAMLStore) Load(_ context.Context, userID string) (domain.UserPreferences, error) {
	f, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (%s not found)", ErrUnknownUser, userID, s.Path)
	}
	if err != nil {
		return nil, err
	}
	prefs, ok := f.Users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	return prefs.Clone(), nil
}

// Save stores prefs for userID, keeping other users intact.
func (s YAMLStore) Save(_ context.Context, userID string, prefs domain.UserPreferences) error {
	f, err := s.read()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if f.Users == nil {
		f.Users = map[string]domain.UserPreferences{}
	}
	f.Users[userID] = prefs.Clone()

	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o644)
}

func (s YAMLStore) read() (yamlFile, error) {
	var f yamlFile
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return f, nil
}
