package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PullRequestStore = (*PullRequestRepo)(nil)

// PullRequestRepo is the SQLite implementation of the PullRequestStore port.
type PullRequestRepo struct {
	db *DB
}

// NewPullRequestRepo creates a new PullRequestRepo backed by the given DB.
func NewPullRequestRepo(db *DB) *PullRequestRepo {
	return &PullRequestRepo{db: db}
}

const pullRequestColumns = `key, repository_key, source_id, source_display_id, title, description,
	       source_state, state, source_created_at, source_last_updated, source_merge_status,
	       source_merged_at, source_closed_at, end_date, source_branch, target_branch,
	       source_repository_source_id, target_repository_source_id, web_url`

// Upsert inserts the pull request or overwrites every mapped field when a
// row already exists for (repository_key, source_id). The most recently
// reconciled vendor snapshot always wins; the stored key never changes.
func (r *PullRequestRepo) Upsert(ctx context.Context, pr model.PullRequest) error {
	const query = `
		INSERT INTO pull_requests (
			key, repository_key, source_id, source_display_id, title, description,
			source_state, state, source_created_at, source_last_updated, source_merge_status,
			source_merged_at, source_closed_at, end_date, source_branch, target_branch,
			source_repository_source_id, target_repository_source_id, web_url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository_key, source_id) DO UPDATE SET
			source_display_id = excluded.source_display_id,
			title = excluded.title,
			description = excluded.description,
			source_state = excluded.source_state,
			state = excluded.state,
			source_created_at = excluded.source_created_at,
			source_last_updated = excluded.source_last_updated,
			source_merge_status = excluded.source_merge_status,
			source_merged_at = excluded.source_merged_at,
			source_closed_at = excluded.source_closed_at,
			end_date = excluded.end_date,
			source_branch = excluded.source_branch,
			target_branch = excluded.target_branch,
			source_repository_source_id = excluded.source_repository_source_id,
			target_repository_source_id = excluded.target_repository_source_id,
			web_url = excluded.web_url
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		pr.Key, pr.RepositoryKey, pr.SourceID, pr.SourceDisplayID, pr.Title, pr.Description,
		pr.SourceState, string(pr.State), nullableTime(pr.SourceCreatedAt), nullableTime(pr.SourceLastUpdated),
		pr.SourceMergeStatus, nullableTime(pr.SourceMergedAt), nullableTime(pr.SourceClosedAt),
		nullableTime(pr.EndDate), pr.SourceBranch, pr.TargetBranch,
		pr.SourceRepositorySourceID, pr.TargetRepositorySourceID, pr.WebURL,
	)
	if err != nil {
		return fmt.Errorf("upsert pull request %s/%s: %w", pr.RepositoryKey, pr.SourceID, err)
	}

	return nil
}

// GetBySource retrieves a pull request by (repository_key, source_id).
// Returns nil, nil if no such pull request exists.
func (r *PullRequestRepo) GetBySource(ctx context.Context, repositoryKey, sourceID string) (*model.PullRequest, error) {
	query := `SELECT ` + pullRequestColumns + ` FROM pull_requests WHERE repository_key = ? AND source_id = ?`

	pr, err := scanPullRequest(r.db.Reader.QueryRowContext(ctx, query, repositoryKey, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pull request %s/%s: %w", repositoryKey, sourceID, err)
	}

	return pr, nil
}

// ListByRepository returns all pull requests of one repository, most
// recently updated first.
func (r *PullRequestRepo) ListByRepository(ctx context.Context, repositoryKey string) ([]model.PullRequest, error) {
	query := `SELECT ` + pullRequestColumns + `
		FROM pull_requests
		WHERE repository_key = ?
		ORDER BY source_last_updated DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, repositoryKey)
	if err != nil {
		return nil, fmt.Errorf("list pull requests for %s: %w", repositoryKey, err)
	}
	defer rows.Close()

	var prs []model.PullRequest
	for rows.Next() {
		pr, err := scanPullRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull request: %w", err)
		}
		prs = append(prs, *pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull requests: %w", err)
	}

	return prs, nil
}

func scanPullRequest(s scanner) (*model.PullRequest, error) {
	var pr model.PullRequest
	var state string
	var createdAt, lastUpdated, mergedAt, closedAt, endDate sql.NullString

	err := s.Scan(
		&pr.Key, &pr.RepositoryKey, &pr.SourceID, &pr.SourceDisplayID, &pr.Title, &pr.Description,
		&pr.SourceState, &state, &createdAt, &lastUpdated, &pr.SourceMergeStatus,
		&mergedAt, &closedAt, &endDate, &pr.SourceBranch, &pr.TargetBranch,
		&pr.SourceRepositorySourceID, &pr.TargetRepositorySourceID, &pr.WebURL,
	)
	if err != nil {
		return nil, err
	}

	pr.State = model.PRState(state)

	if pr.SourceCreatedAt, err = parseNullableTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse source_created_at: %w", err)
	}
	if pr.SourceLastUpdated, err = parseNullableTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("parse source_last_updated: %w", err)
	}
	if pr.SourceMergedAt, err = parseNullableTime(mergedAt); err != nil {
		return nil, fmt.Errorf("parse source_merged_at: %w", err)
	}
	if pr.SourceClosedAt, err = parseNullableTime(closedAt); err != nil {
		return nil, fmt.Errorf("parse source_closed_at: %w", err)
	}
	if pr.EndDate, err = parseNullableTime(endDate); err != nil {
		return nil, fmt.Errorf("parse end_date: %w", err)
	}

	return &pr, nil
}
