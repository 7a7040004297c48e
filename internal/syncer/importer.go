// internal/syncer/importer.go
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"portfolio-sync/internal/model"
)

// Importer turns repositories that are not yet known as projects into draft projects.
type Importer struct {
	lister   RepositoryLister
	projects ProjectStore
	logger   *slog.Logger
}

// NewImporter creates a new Importer instance.
func NewImporter(lister RepositoryLister, projects ProjectStore, logger *slog.Logger) *Importer {
	return &Importer{
		lister:   lister,
		projects: projects,
		logger:   logger,
	}
}

// draftOutcome is the result of importing a single candidate.
type draftOutcome struct {
	Slug string
	Err  error
}

// SyncNewReposAsDraft fetches the user's repositories and inserts every unseen one as a draft.
// It fails only if the repositories or the existing project keys cannot be loaded; a failed
// insert is counted and the remaining candidates are still processed.
func (i *Importer) SyncNewReposAsDraft(ctx context.Context, req model.SyncRequest) (model.SyncResult, error) {
	logger := i.logger.With("username", req.Username)

	repos, err := i.lister.ListPublicRepositories(ctx, req.Username, model.FetchOptions{
		IncludeTopics: req.IncludeTopics,
		AccessToken:   req.AccessToken,
	})
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("fetching repositories: %w", err)
	}

	keys, err := i.projects.ListSlugsAndURLs(ctx)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("loading existing projects: %w", err)
	}

	knownSlugs := make(map[string]struct{}, len(keys))
	knownURLs := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k.Slug != "" {
			knownSlugs[strings.ToLower(k.Slug)] = struct{}{}
		}
		if k.RepoURL != "" {
			knownURLs[normalizeURL(k.RepoURL)] = struct{}{}
		}
	}

	candidates := lo.Filter(repos, func(r model.RemoteRepository, _ int) bool {
		slug := Slugify(r.Name)
		if slug == "" {
			logger.Warn("Ignoring repository whose name has no usable slug", "repo", r.Name)
			return false
		}
		_, slugTaken := knownSlugs[slug]
		_, urlTaken := knownURLs[normalizeURL(r.URL)]
		return !slugTaken && !urlTaken
	})
	logger.Info("Computed import candidates", "remote", len(repos), "known", len(keys), "candidates", len(candidates))

	outcomes := make([]draftOutcome, 0, len(candidates))
	for _, repo := range candidates {
		draft := buildDraft(repo)

		// Two remote repositories can still collide with each other within one run.
		_, slugTaken := knownSlugs[draft.Slug]
		_, urlTaken := knownURLs[normalizeURL(draft.RepoURL)]
		if slugTaken || urlTaken {
			logger.Debug("Skipping repository colliding with a draft created in this run", "repo", repo.Name)
			continue
		}

		outcome := draftOutcome{Slug: draft.Slug, Err: i.projects.InsertDraft(ctx, draft)}
		if outcome.Err != nil {
			logger.Warn("Failed to insert draft project", "repo", repo.Name, "slug", outcome.Slug, "error", outcome.Err)
		} else {
			knownSlugs[draft.Slug] = struct{}{}
			knownURLs[normalizeURL(draft.RepoURL)] = struct{}{}
		}
		outcomes = append(outcomes, outcome)
	}

	result := tally(outcomes)
	logger.Info("Draft import finished", "created", result.Created, "failed", result.Failed)
	return result, nil
}

func tally(outcomes []draftOutcome) model.SyncResult {
	failed := lo.CountBy(outcomes, func(o draftOutcome) bool { return o.Err != nil })
	return model.SyncResult{Created: len(outcomes) - failed, Failed: failed}
}

// buildDraft maps a remote repository onto a new draft project.
func buildDraft(r model.RemoteRepository) model.DraftProject {
	tags := []string{}
	if r.Language != nil {
		tags = append(tags, *r.Language)
	}

	return model.DraftProject{
		Title:       r.Name,
		Slug:        Slugify(r.Name),
		Category:    model.CategoryOpenSource,
		Description: r.Description,
		ImageURL:    fmt.Sprintf("https://opengraph.githubassets.com/1/%s/%s", r.Owner, r.Name),
		LiveURL:     liveURL(r),
		RepoURL:     r.URL,
		Tags:        tags,
		Status:      model.StatusDraft,
	}
}

// liveURL prefers the repository homepage, then its GitHub Pages site.
func liveURL(r model.RemoteRepository) *string {
	if r.Homepage != nil {
		return r.Homepage
	}
	if !r.HasPages || r.Owner == "" {
		return nil
	}

	owner := strings.ToLower(r.Owner)
	u := fmt.Sprintf("https://%s.github.io/%s/", owner, r.Name)
	if strings.EqualFold(r.Name, owner+".github.io") {
		u = fmt.Sprintf("https://%s.github.io/", owner)
	}
	return &u
}
