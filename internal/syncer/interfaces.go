// internal/syncer/interfaces.go
package syncer

import (
	"context"

	"portfolio-sync/internal/model"
)

// RepositoryLister lists the public repositories of a GitHub user.
type RepositoryLister interface {
	ListPublicRepositories(ctx context.Context, username string, opts model.FetchOptions) ([]model.RemoteRepository, error)
}

// ProjectStore is the subset of the project table the importer needs.
type ProjectStore interface {
	ListSlugsAndURLs(ctx context.Context) ([]model.ProjectKey, error)
	InsertDraft(ctx context.Context, p model.DraftProject) error
}

// ConfigStore persists the singleton SyncConfig.
type ConfigStore interface {
	Get(ctx context.Context) (model.SyncConfig, error)
	Upsert(ctx context.Context, patch model.SyncConfigPatch) (model.SyncConfig, error)
	EnsureExists(ctx context.Context) error
}

// Locker is a named, non-blocking lock shared by every replica of the service.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// DraftImporter runs one import pass.
type DraftImporter interface {
	SyncNewReposAsDraft(ctx context.Context, req model.SyncRequest) (model.SyncResult, error)
}
