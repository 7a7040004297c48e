// internal/model/models.go
package model

import (
	"time"
)

const (
	// StatusDraft is the status every imported project starts with.
	StatusDraft = "draft"
	// CategoryOpenSource is the category assigned to imported repositories.
	CategoryOpenSource = "Open Source"
)

// SyncResult is the outcome of one import run.
type SyncResult struct {
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// SyncConfig is the singleton record that drives the scheduler.
type SyncConfig struct {
	Enabled         bool        `json:"enabled"`
	Username        *string     `json:"username"`
	IncludeTopics   *bool       `json:"includeTopics"`
	IntervalMinutes int         `json:"intervalMinutes"`
	LastRunAt       *time.Time  `json:"lastRunAt"`
	LastResult      *SyncResult `json:"lastResult"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// SyncConfigPatch is a partial update of SyncConfig. Nil fields are left as they are.
// A non-nil empty Username clears the stored username.
type SyncConfigPatch struct {
	Enabled         *bool       `json:"enabled,omitempty"`
	Username        *string     `json:"username,omitempty"`
	IncludeTopics   *bool       `json:"includeTopics,omitempty"`
	IntervalMinutes *int        `json:"intervalMinutes,omitempty"`
	LastRunAt       *time.Time  `json:"-"`
	LastResult      *SyncResult `json:"-"`
}

// Apply returns a copy of c with the patch applied and the interval coerced to at least one minute.
func (c SyncConfig) Apply(p SyncConfigPatch) SyncConfig {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.Username != nil {
		if *p.Username == "" {
			c.Username = nil
		} else {
			u := *p.Username
			c.Username = &u
		}
	}
	if p.IncludeTopics != nil {
		v := *p.IncludeTopics
		c.IncludeTopics = &v
	}
	if p.IntervalMinutes != nil {
		c.IntervalMinutes = *p.IntervalMinutes
	}
	if p.LastRunAt != nil {
		t := *p.LastRunAt
		c.LastRunAt = &t
	}
	if p.LastResult != nil {
		r := *p.LastResult
		c.LastResult = &r
	}
	c.IntervalMinutes = CoerceInterval(c.IntervalMinutes)
	return c
}

// CoerceInterval clamps an interval in minutes to the minimum of 1.
func CoerceInterval(minutes int) int {
	if minutes < 1 {
		return 1
	}
	return minutes
}

// RemoteRepository is a repository as listed by the GitHub API. It is never persisted.
type RemoteRepository struct {
	ID          int64
	Name        string
	URL         string
	Description *string
	Homepage    *string
	Language    *string
	Topics      []string
	Owner       string
	Visibility  string
	HasPages    bool
}

// DraftProject is a project record created from a repository, pending review in the admin UI.
type DraftProject struct {
	Title       string
	Slug        string
	Category    string
	Description *string
	ImageURL    string
	LiveURL     *string
	RepoURL     string
	Tags        []string
	Status      string
}

// ProjectKey holds the fields used to recognise an already imported repository.
type ProjectKey struct {
	Slug    string
	RepoURL string
}

// FetchOptions controls how repositories are listed.
type FetchOptions struct {
	IncludeTopics bool
	// AccessToken overrides the client's default token when set.
	AccessToken string
}

// SyncRequest is the input of one import run.
type SyncRequest struct {
	Username      string
	IncludeTopics bool
	AccessToken   string
}
