// Package store implements the dataset repository: the registry of uploaded
// file versions and the profile cache that sits in front of the profiler.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"goinsight/domain/core"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
	"goinsight/ports"
)

// MemoryStore keeps everything in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[core.DatasetVersionID]dataset.Version
	profiles map[core.DatasetVersionID]*dataset.DatasetProfile
}

var _ ports.DatasetRepository = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions: make(map[core.DatasetVersionID]dataset.Version),
		profiles: make(map[core.DatasetVersionID]*dataset.DatasetProfile),
	}
}

func (s *MemoryStore) Create(_ context.Context, v *dataset.Version) error {
	if v == nil || v.ID == "" {
		return errors.InvalidInput("dataset version requires an ID")
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.versions[v.ID]; exists {
		return errors.Newf(errors.CodeDatabaseError, "dataset version %s already exists", v.ID)
	}
	s.versions[v.ID] = *v
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id core.DatasetVersionID) (*dataset.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, errors.NotFound("dataset version " + id.String())
	}
	return &v, nil
}

// List returns versions newest first
func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]*dataset.Version, error) {
	s.mu.RLock()
	all := make([]*dataset.Version, 0, len(s.versions))
	for _, v := range s.versions {
		all = append(all, &v)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []*dataset.Version{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id core.DatasetVersionID, status dataset.VersionStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return errors.NotFound("dataset version " + id.String())
	}
	v.Status = status
	v.ErrorMessage = errorMsg
	s.versions[id] = v
	return nil
}

// Delete removes a version and its cached profile
func (s *MemoryStore) Delete(_ context.Context, id core.DatasetVersionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.versions[id]; !ok {
		return errors.NotFound("dataset version " + id.String())
	}
	delete(s.versions, id)
	delete(s.profiles, id)
	return nil
}

// SaveProfile caches a profile. Profiles are never mutated after creation,
// so the pointer is shared rather than copied.
func (s *MemoryStore) SaveProfile(_ context.Context, profile *dataset.DatasetProfile) error {
	if profile == nil {
		return errors.InvalidInput("profile is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.DatasetVersionID] = profile
	return nil
}

func (s *MemoryStore) GetProfile(_ context.Context, id core.DatasetVersionID) (*dataset.DatasetProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[id]
	if !ok {
		return nil, errors.NotFound("profile for dataset version " + id.String())
	}
	return profile, nil
}
