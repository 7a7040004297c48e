// internal/database/memory/memory.go

// Package memory holds in-process implementations of the sync stores and lock.
// They back the syncer and API tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	custom_errors "portfolio-sync/internal/errors"
	"portfolio-sync/internal/model"
)

// ConfigStore keeps the singleton SyncConfig in memory.
type ConfigStore struct {
	mu              sync.Mutex
	cfg             *model.SyncConfig
	defaultInterval int
}

// NewConfigStore returns an empty store; EnsureExists creates the record with defaultInterval.
func NewConfigStore(defaultInterval int) *ConfigStore {
	return &ConfigStore{defaultInterval: model.CoerceInterval(defaultInterval)}
}

// EnsureExists creates the config with defaults if it is missing.
func (s *ConfigStore) EnsureExists(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()
	return nil
}

func (s *ConfigStore) ensureLocked() {
	if s.cfg == nil {
		s.cfg = &model.SyncConfig{IntervalMinutes: s.defaultInterval, UpdatedAt: time.Now()}
	}
}

// Get returns the stored config or ErrConfigNotFound.
func (s *ConfigStore) Get(_ context.Context) (model.SyncConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return model.SyncConfig{}, custom_errors.ErrConfigNotFound
	}
	return *s.cfg, nil
}

// Upsert applies patch, creating the config first if needed.
func (s *ConfigStore) Upsert(_ context.Context, patch model.SyncConfigPatch) (model.SyncConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked()
	updated := s.cfg.Apply(patch)
	updated.UpdatedAt = time.Now()
	s.cfg = &updated
	return updated, nil
}

// ProjectStore keeps project records in memory and enforces unique slugs and repository URLs.
type ProjectStore struct {
	mu       sync.Mutex
	keys     []model.ProjectKey
	projects []model.DraftProject

	// InsertHook, when set, runs before each insert; a returned error fails that insert.
	InsertHook func(model.DraftProject) error
	inserts    int
}

// NewProjectStore returns a store seeded with existing project keys.
func NewProjectStore(existing ...model.ProjectKey) *ProjectStore {
	return &ProjectStore{keys: append([]model.ProjectKey(nil), existing...)}
}

// ListSlugsAndURLs returns the keys of all stored projects.
func (s *ProjectStore) ListSlugsAndURLs(_ context.Context) ([]model.ProjectKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ProjectKey(nil), s.keys...), nil
}

// InsertDraft stores p unless its slug or repository URL is already taken.
func (s *ProjectStore) InsertDraft(_ context.Context, p model.DraftProject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++

	if s.InsertHook != nil {
		if err := s.InsertHook(p); err != nil {
			return err
		}
	}
	for _, k := range s.keys {
		if strings.EqualFold(k.Slug, p.Slug) || (p.RepoURL != "" && strings.EqualFold(k.RepoURL, p.RepoURL)) {
			return &custom_errors.DuplicateProjectError{Slug: p.Slug, RepoURL: p.RepoURL}
		}
	}

	s.keys = append(s.keys, model.ProjectKey{Slug: p.Slug, RepoURL: p.RepoURL})
	s.projects = append(s.projects, p)
	return nil
}

// Drafts returns the projects inserted through InsertDraft.
func (s *ProjectStore) Drafts() []model.DraftProject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DraftProject(nil), s.projects...)
}

// InsertAttempts counts calls to InsertDraft, successful or not.
func (s *ProjectStore) InsertAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// Locker is a process-local named lock.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]struct{})}
}

// TryAcquire takes key if it is free. It never blocks.
func (l *Locker) TryAcquire(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = struct{}{}
	return true, nil
}

// Release frees key. Releasing a free key is a no-op.
func (l *Locker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// Held reports whether key is currently taken.
func (l *Locker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
