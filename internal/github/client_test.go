// internal/github/client_test.go
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "portfolio-sync/internal/errors"
	"portfolio-sync/internal/model"
)

// setupTestClient creates a httptest server and a client pointing to it.
func setupTestClient(t *testing.T, token string, handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	client := NewClient(token, logger, WithBaseURL(u), WithTimeout(2*time.Second))
	return client, server
}

type repoJSON struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	HTMLURL    string  `json:"html_url"`
	Desc       *string `json:"description"`
	Homepage   *string `json:"homepage"`
	Language   *string `json:"language"`
	Visibility string  `json:"visibility"`
	HasPages   bool    `json:"has_pages"`
	Owner      struct {
		Login string `json:"login"`
	} `json:"owner"`
}

func makeRepos(owner string, names ...string) []repoJSON {
	repos := make([]repoJSON, len(names))
	for i, n := range names {
		repos[i] = repoJSON{
			ID:         int64(i + 1),
			Name:       n,
			HTMLURL:    fmt.Sprintf("https://github.com/%s/%s", owner, n),
			Visibility: "public",
		}
		repos[i].Owner.Login = owner
	}
	return repos
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_ListPublicRepositories(t *testing.T) {
	t.Run("sends listing query and maps fields", func(t *testing.T) {
		lang := "Go"
		home := "https://example.com"
		repos := makeRepos("octocat", "hello-world")
		repos[0].Language = &lang
		repos[0].Homepage = &home
		repos[0].HasPages = true

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/users/octocat/repos", r.URL.Path)
			q := r.URL.Query()
			assert.Equal(t, "100", q.Get("per_page"))
			assert.Equal(t, "public", q.Get("type"))
			assert.Equal(t, "updated", q.Get("sort"))
			assert.Empty(t, r.Header.Get("Authorization"))
			writeJSON(t, w, repos)
		})
		client, server := setupTestClient(t, "", handler)
		defer server.Close()

		got, err := client.ListPublicRepositories(context.Background(), "octocat", model.FetchOptions{})

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "hello-world", got[0].Name)
		assert.Equal(t, "octocat", got[0].Owner)
		assert.Equal(t, "https://github.com/octocat/hello-world", got[0].URL)
		assert.Equal(t, "Go", *got[0].Language)
		assert.Equal(t, "https://example.com", *got[0].Homepage)
		assert.Nil(t, got[0].Description)
		assert.True(t, got[0].HasPages)
		assert.Nil(t, got[0].Topics)
	})

	t.Run("attaches bearer token, per-call token wins", func(t *testing.T) {
		var seen atomic.Value
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen.Store(r.Header.Get("Authorization"))
			writeJSON(t, w, []repoJSON{})
		})
		client, server := setupTestClient(t, "default-token", handler)
		defer server.Close()

		_, err := client.ListPublicRepositories(context.Background(), "octocat", model.FetchOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Bearer default-token", seen.Load())

		_, err = client.ListPublicRepositories(context.Background(), "octocat", model.FetchOptions{AccessToken: "call-token"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer call-token", seen.Load())
	})

	t.Run("filters private repositories", func(t *testing.T) {
		repos := makeRepos("octocat", "open", "secret")
		repos[1].Visibility = "private"
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, repos)
		})
		client, server := setupTestClient(t, "", handler)
		defer server.Close()

		got, err := client.ListPublicRepositories(context.Background(), "octocat", model.FetchOptions{})

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "open", got[0].Name)
	})

	t.Run("returns FetchError on non-success status", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintln(w, `{"message": "Not Found"}`)
		})
		client, server := setupTestClient(t, "", handler)
		defer server.Close()

		_, err := client.ListPublicRepositories(context.Background(), "ghost", model.FetchOptions{})

		require.Error(t, err)
		var fetchErr *custom_errors.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
		assert.JSONEq(t, `{"message": "Not Found"}`, fetchErr.Body)
		assert.Equal(t, "ghost", fetchErr.Username)
	})

	t.Run("keeps a non-JSON error body", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, "<html>upstream down</html>")
		})
		client, server := setupTestClient(t, "", handler)
		defer server.Close()

		_, err := client.ListPublicRepositories(context.Background(), "octocat", model.FetchOptions{})

		var fetchErr *custom_errors.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusBadGateway, fetchErr.StatusCode)
		assert.Equal(t, "<html>upstream down</html>", fetchErr.Body)
		assert.Contains(t, err.Error(), "upstream down")
	})

	t.Run("gives up on a hung request after the timeout", func(t *testing.T) {
		unblock := make(chan struct{})
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-unblock:
			}
		})
		server := httptest.NewServer(handler)
		defer server.Close()
		defer close(unblock)

		u, err := url.Parse(server.URL)
		require.NoError(t, err)
		client := NewClient("", slog.New(slog.NewTextHandler(os.Stderr, nil)), WithBaseURL(u), WithTimeout(100*time.Millisecond))

		start := time.Now()
		_, err = client.ListPublicRepositories(context.Background(), "octocat", model.FetchOptions{})

		require.Error(t, err)
		var fetchErr *custom_errors.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Zero(t, fetchErr.StatusCode)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestClient_ListPublicRepositories_Topics(t *testing.T) {
	t.Run("enriches topics and tolerates failures", func(t *testing.T) {
		repos := makeRepos("octocat", "alpha", "broken", "gamma")
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/users/octocat/repos":
				writeJSON(t, w, repos)
			case r.URL.Path == "/repos/octocat/broken/topics":
				w.WriteHeader(http.StatusInternalServerError)
			case strings.HasSuffix(r.URL.Path, "/topics"):
				name := strings.Split(r.URL.Path, "/")[3]
				writeJSON(t, w, map[string][]string{"names": {name + "-topic", "go"}})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		})
		client, server := setupTestClient(t, "", handler)
		defer server.Close()

		got, err := client.ListPublicRepositories(context.Background(), "octocat", model.FetchOptions{IncludeTopics: true})

		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"alpha-topic", "go"}, got[0].Topics)
		assert.Empty(t, got[1].Topics)
		assert.Equal(t, []string{"gamma-topic", "go"}, got[2].Topics)
	})

	t.Run("caps concurrent topic requests", func(t *testing.T) {
		names := make([]string, 20)
		for i := range names {
			names[i] = fmt.Sprintf("repo-%02d", i)
		}
		repos := makeRepos("octocat", names...)

		var inFlight, maxInFlight, topicCalls int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/users/octocat/repos" {
				writeJSON(t, w, repos)
				return
			}
			atomic.AddInt32(&topicCalls, 1)
			n := atomic.AddInt32(&inFlight, 1)
			for {
				m := atomic.LoadInt32(&maxInFlight)
				if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			writeJSON(t, w, map[string][]string{"names": {}})
		})
		client, server := setupTestClient(t, "", handler)
		defer server.Close()

		_, err := client.ListPublicRepositories(context.Background(), "octocat", model.FetchOptions{IncludeTopics: true})

		require.NoError(t, err)
		assert.Equal(t, int32(20), atomic.LoadInt32(&topicCalls))
		assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(topicConcurrency))
		assert.Greater(t, atomic.LoadInt32(&maxInFlight), int32(1))
	})
}
