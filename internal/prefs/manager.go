package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Key is the kv row holding the preferences blob.
const Key = "preferences"

// Store is a string key-value store.
type Store interface {
	GetKV(ctx context.Context, key string) (string, bool, error)
	PutKV(ctx context.Context, key, value string) error
}

// PersistError means the change is live in memory but could not be written.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "preferences not saved: " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }

type Manager struct {
	store Store
	log   *zap.Logger
	mu    sync.RWMutex
	p     Preferences
}

// Load reads the stored preferences. Missing, unreadable or corrupt data falls back to the
// defaults with a warning; Load itself never fails.
func Load(ctx context.Context, store Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{store: store, log: log, p: Default()}

	raw, ok, err := store.GetKV(ctx, Key)
	switch {
	case err != nil:
		log.Warn("read preferences, using defaults", zap.Error(err))
		return m
	case !ok:
		return m
	}

	p := Default()
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		log.Warn("parse preferences, using defaults", zap.Error(err))
		return m
	}
	p.normalize()
	m.p = p
	return m
}

// NewStatic returns a manager that never persists.
func NewStatic(p Preferences) *Manager {
	return &Manager{log: zap.NewNop(), p: p.Clone()}
}

func (m *Manager) Get() Preferences {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.p.Clone()
}

// Update applies a patch. A validation error leaves the current value untouched. A write
// failure is returned as *PersistError after the new value is already in effect.
func (m *Manager) Update(ctx context.Context, patch Patch) (Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.p.Clone()
	patch.Apply(&p)
	if err := p.Validate(); err != nil {
		return Preferences{}, err
	}
	return m.setLocked(ctx, p)
}

func (m *Manager) Reset(ctx context.Context) (Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setLocked(ctx, Default())
}

// ToggleTheme flips between light and dark. "system" is treated as light.
func (m *Manager) ToggleTheme(ctx context.Context) (Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.p.Clone()
	if p.Theme == ThemeDark {
		p.Theme = ThemeLight
	} else {
		p.Theme = ThemeDark
	}
	return m.setLocked(ctx, p)
}

func (m *Manager) setLocked(ctx context.Context, p Preferences) (Preferences, error) {
	m.p = p
	out := p.Clone()
	if m.store == nil {
		return out, nil
	}

	b, err := json.Marshal(p)
	if err != nil {
		return out, &PersistError{Err: fmt.Errorf("encode: %w", err)}
	}
	if err := m.store.PutKV(ctx, Key, string(b)); err != nil {
		m.log.Warn("persist preferences", zap.Error(err))
		return out, &PersistError{Err: err}
	}
	return out, nil
}
