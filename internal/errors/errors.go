// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncInProgress is returned when another run holds the sync lock.
	ErrSyncInProgress = errors.New("a repository sync is already in progress")
	// ErrNoUsername is returned when neither the stored config nor the process default names a GitHub user.
	ErrNoUsername = errors.New("no GitHub username configured for repository sync")
	// ErrSyncDisabled is returned when a manual run is requested while sync is switched off.
	ErrSyncDisabled = errors.New("repository sync is disabled")
	// ErrConfigNotFound is returned when the sync config row has not been created yet.
	ErrConfigNotFound = errors.New("sync config not found")
)

// FetchError is returned when the repository listing call does not succeed.
type FetchError struct {
	Username   string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to list repositories for %q: status %d: %s", e.Username, e.StatusCode, e.Body)
}

// DuplicateProjectError is returned when a draft collides with an existing project's slug or repository URL.
type DuplicateProjectError struct {
	Slug    string
	RepoURL string
}

func (e *DuplicateProjectError) Error() string {
	return fmt.Sprintf("project with slug %q or repository %q already exists", e.Slug, e.RepoURL)
}
