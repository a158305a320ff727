package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

type keyFileEntry struct {
	ID       string    `json:"id"`
	Secret   string    `json:"secret"`
	NotAfter time.Time `json:"not_after,omitempty"`
}

type keyFile struct {
	Active   keyFileEntry   `json:"active"`
	Previous []keyFileEntry `json:"previous"`
}

// LoadKeyFile reads a JSON key set. A retired key without not_after is
// returned with a zero NotAfter; the keyring assigns its deadline.
func LoadKeyFile(path string) (SigningKey, []SigningKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SigningKey{}, nil, fmt.Errorf("read key file: %w", err)
	}

	var kf keyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return SigningKey{}, nil, fmt.Errorf("decode key file: %w", err)
	}
	if kf.Active.ID == "" || kf.Active.Secret == "" {
		return SigningKey{}, nil, errors.New("key file has no active key")
	}

	active := SigningKey{ID: kf.Active.ID, Secret: []byte(kf.Active.Secret)}
	prev := make([]SigningKey, 0, len(kf.Previous))
	for _, p := range kf.Previous {
		prev = append(prev, SigningKey{ID: p.ID, Secret: []byte(p.Secret), NotAfter: p.NotAfter})
	}
	return active, prev, nil
}

// ParsePreviousKeys parses "kid=secret[@RFC3339],..." as used by
// JWT_PREVIOUS_KEYS. Entries without a timestamp have a zero NotAfter.
func ParsePreviousKeys(s string) ([]SigningKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var out []SigningKey
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, rest, ok := strings.Cut(part, "=")
		if !ok || id == "" || rest == "" {
			return nil, fmt.Errorf("invalid previous key entry %q", id)
		}

		secret, until, hasUntil := strings.Cut(rest, "@")
		var na time.Time
		if hasUntil {
			t, err := time.Parse(time.RFC3339, until)
			if err != nil {
				return nil, fmt.Errorf("invalid not_after for key %q: %w", id, err)
			}
			na = t
		}
		out = append(out, SigningKey{ID: id, Secret: []byte(secret), NotAfter: na})
	}
	return out, nil
}

/*
KeyFileWatcher
----
Reloads the keyring whenever the key file is written or replaced. A file that
fails to parse is logged and ignored; the last good key set stays in use.
*/
type KeyFileWatcher struct {
	path string
	ring *Keyring
	log  zerolog.Logger
}

// NewKeyFileWatcher reloads into ring, which should come from
// NewKeyringWithGrace when the file lists retired keys without not_after.
func NewKeyFileWatcher(path string, ring *Keyring, lg zerolog.Logger) *KeyFileWatcher {
	return &KeyFileWatcher{path: path, ring: ring, log: lg}
}

// Reload reads the file once and swaps the key set.
func (w *KeyFileWatcher) Reload() error {
	active, prev, err := LoadKeyFile(w.path)
	if err != nil {
		return err
	}
	if err := w.ring.Replace(active, prev...); err != nil {
		return err
	}
	w.log.Info().Str("active_kid", active.ID).Int("retired", len(prev)).Msg("signing keys reloaded")
	return nil
}

// Run blocks until ctx is cancelled. The parent directory is watched so
// atomic renames (editors, k8s secret mounts) are seen.
func (w *KeyFileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.Reload(); err != nil {
				w.log.Error().Err(err).Str("path", w.path).Msg("signing key reload failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("key file watcher error")
		}
	}
}
