// Package store persists artifacts keyed by (kind, id) and resolves
// references with explicit partial-failure reporting.
package store

import (
	"errors"
	"fmt"

	"constitution/internal/artifact"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Open() creates the parent dir.
const DefaultDBPath = ".constitution/kernel.db"

// ErrNotFound is returned by MustGet when no artifact exists at the key.
var ErrNotFound = errors.New("store: artifact not found")

// ResolveError records one reference that did not resolve.
type ResolveError struct {
	ArtifactType artifact.Kind `json:"artifact_type"`
	ArtifactID   string        `json:"artifact_id"`
}

func (e ResolveError) Error() string {
	return fmt.Sprintf("unresolved %s %q", e.ArtifactType, e.ArtifactID)
}

// Store is the identity-keyed artifact repository. The error results report
// backend failures only; a missing artifact is never an error except from
// MustGet.
type Store interface {
	// Put stores a, overwriting any prior value at (kind, id), and returns the id.
	Put(a artifact.Artifact) (string, error)
	// Get returns the artifact at (kind, id), or nil when absent.
	Get(kind artifact.Kind, id string) (artifact.Artifact, error)
	// Has reports whether (kind, id) is present.
	Has(kind artifact.Kind, id string) (bool, error)
	// ListIDs returns the ids stored under kind in first-insertion order.
	ListIDs(kind artifact.Kind) ([]string, error)
	// ResolveMany returns the artifacts found for ids in input order, plus one
	// ResolveError per missing id.
	ResolveMany(kind artifact.Kind, ids []string) ([]artifact.Artifact, []ResolveError, error)
}

// MustGet returns the artifact at (kind, id) or an error wrapping ErrNotFound.
func MustGet(s Store, kind artifact.Kind, id string) (artifact.Artifact, error) {
	a, err := s.Get(kind, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
	}
	return a, nil
}

// GetAs is Get narrowed to a concrete artifact type. The bool is false when
// the artifact is absent.
func GetAs[T artifact.Artifact](s Store, id string) (T, bool, error) {
	var zero T
	a, err := s.Get(zero.ArtifactKind(), id)
	if err != nil || a == nil {
		return zero, false, err
	}
	v, ok := a.(T)
	if !ok {
		return zero, false, fmt.Errorf("store: %s %q holds %T", zero.ArtifactKind(), id, a)
	}
	return v, true, nil
}

// MustGetAs is MustGet narrowed to a concrete artifact type.
func MustGetAs[T artifact.Artifact](s Store, id string) (T, error) {
	v, ok, err := GetAs[T](s, id)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%w: %s %q", ErrNotFound, v.ArtifactKind(), id)
	}
	return v, nil
}

// Resolve is ResolveMany narrowed to a concrete artifact type.
func Resolve[T artifact.Artifact](s Store, ids []string) ([]T, []ResolveError, error) {
	var zero T
	found, missing, err := s.ResolveMany(zero.ArtifactKind(), ids)
	if err != nil {
		return nil, nil, err
	}
	out := make([]T, 0, len(found))
	for _, a := range found {
		v, ok := a.(T)
		if !ok {
			return nil, nil, fmt.Errorf("store: %s %q holds %T", zero.ArtifactKind(), a.ArtifactID(), a)
		}
		out = append(out, v)
	}
	return out, missing, nil
}

// PutAll stores each artifact in order and stops at the first failure.
func PutAll(s Store, as ...artifact.Artifact) error {
	for _, a := range as {
		if _, err := s.Put(a); err != nil {
			return err
		}
	}
	return nil
}

func checkKey(a artifact.Artifact) error {
	if a == nil {
		return fmt.Errorf("store: put nil artifact")
	}
	if a.ArtifactID() == "" {
		return fmt.Errorf("store: put %s with empty id", a.ArtifactKind())
	}
	return nil
}
