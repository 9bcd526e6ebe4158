// internal/model/models.go
package model

import "time"

// Repository is the metadata of a GitHub repository as fetched from the API.
// Size is measured in kilobytes by GitHub; a size of zero means the repository
// has no content and therefore no commits worth fetching.
type Repository struct {
	ID        int64
	Owner     string
	Name      string
	URL       string
	Size      int
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// RepositorySnapshot is the persisted point-in-time representation of one
// repository and its full commit history. ID is the GitHub repository ID and
// is the reconciliation key across sync runs.
//
// Optional timestamps are pointers without omitempty so a missing upstream
// value is persisted as an explicit JSON null, keeping the stored shape
// uniform across records.
type RepositorySnapshot struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	URL       string         `json:"url"`
	CreatedAt *time.Time     `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at"`
	Commits   []CommitRecord `json:"commits"`
}

// CommitRecord is one commit inside a RepositorySnapshot. Commits are owned
// by their snapshot and have no independent persistence identity. Order
// mirrors the API's page order, typically reverse chronological.
type CommitRecord struct {
	SHA        string     `json:"sha"`
	Message    string     `json:"message"`
	URL        string     `json:"url"`
	AuthoredAt *time.Time `json:"authored_at"`
}
