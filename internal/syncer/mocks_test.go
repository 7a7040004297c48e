// internal/syncer/mocks_test.go
package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"portfolio-sync/internal/model"
)

// MockLister is a mock of the RepositoryLister interface.
type MockLister struct {
	mock.Mock
}

func (m *MockLister) ListPublicRepositories(ctx context.Context, username string, opts model.FetchOptions) ([]model.RemoteRepository, error) {
	args := m.Called(ctx, username, opts)
	repos, _ := args.Get(0).([]model.RemoteRepository)
	return repos, args.Error(1)
}

// MockProjectStore is a mock of the ProjectStore interface.
type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) ListSlugsAndURLs(ctx context.Context) ([]model.ProjectKey, error) {
	args := m.Called(ctx)
	keys, _ := args.Get(0).([]model.ProjectKey)
	return keys, args.Error(1)
}

func (m *MockProjectStore) InsertDraft(ctx context.Context, p model.DraftProject) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func repo(owner, name string) model.RemoteRepository {
	return model.RemoteRepository{
		Name:       name,
		Owner:      owner,
		URL:        fmt.Sprintf("https://github.com/%s/%s", owner, name),
		Visibility: "public",
	}
}
