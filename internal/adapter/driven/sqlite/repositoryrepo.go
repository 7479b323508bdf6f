package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepositoryStore = (*RepositoryRepo)(nil)

// RepositoryRepo is the SQLite implementation of the RepositoryStore port.
type RepositoryRepo struct {
	db *DB
}

// NewRepositoryRepo creates a new RepositoryRepo backed by the given DB.
func NewRepositoryRepo(db *DB) *RepositoryRepo {
	return &RepositoryRepo{db: db}
}

const repositoryColumns = `key, connector_key, organization_key, source_id, integration_type,
	       name, url, description, public, polling, import_state, webhook_info,
	       commit_count, last_checked, last_imported`

// Upsert inserts the repository or refreshes its display fields when a row
// already exists for (connector_key, source_id). Import state, polling,
// webhook bookkeeping, commit count and last_imported are preserved on
// conflict, as is the stored key.
func (r *RepositoryRepo) Upsert(ctx context.Context, repo model.Repository) error {
	const query = `
		INSERT INTO repositories (
			key, connector_key, organization_key, source_id, integration_type,
			name, url, description, public, polling, import_state, webhook_info,
			commit_count, last_checked, last_imported
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(connector_key, source_id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			description = excluded.description,
			public = excluded.public,
			last_checked = excluded.last_checked
	`

	webhookJSON, err := json.Marshal(repo.Webhooks)
	if err != nil {
		return fmt.Errorf("marshal webhook info: %w", err)
	}

	_, err = r.db.Writer.ExecContext(ctx, query,
		repo.Key, repo.ConnectorKey, repo.OrganizationKey, repo.SourceID, string(repo.IntegrationType),
		repo.Name, repo.URL, repo.Description, boolToInt(repo.Public), boolToInt(repo.Polling),
		string(repo.ImportState), string(webhookJSON),
		repo.CommitCount, nullableTime(repo.LastChecked), nullableTime(repo.LastImported),
	)
	if err != nil {
		return fmt.Errorf("upsert repository %s/%s: %w", repo.ConnectorKey, repo.SourceID, err)
	}

	return nil
}

// GetByKey retrieves a repository by its stable key. Returns nil, nil if no
// such repository exists.
func (r *RepositoryRepo) GetByKey(ctx context.Context, key string) (*model.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE key = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", key, err)
	}

	return repo, nil
}

// GetBySource retrieves a repository by (connector_key, source_id). Returns
// nil, nil if no such repository exists.
func (r *RepositoryRepo) GetBySource(ctx context.Context, connectorKey, sourceID string) (*model.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE connector_key = ? AND source_id = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, connectorKey, sourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s/%s: %w", connectorKey, sourceID, err)
	}

	return repo, nil
}

// FindInOrganization looks up a repository by (organization_key, source_id)
// under any connector other than excludeConnectorKey. Returns nil, nil when
// no such row exists.
func (r *RepositoryRepo) FindInOrganization(ctx context.Context, organizationKey, sourceID, excludeConnectorKey string) (*model.Repository, error) {
	query := `SELECT ` + repositoryColumns + `
		FROM repositories
		WHERE organization_key = ? AND source_id = ? AND connector_key != ?
		LIMIT 1`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, organizationKey, sourceID, excludeConnectorKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find repository %s in organization %s: %w", sourceID, organizationKey, err)
	}

	return repo, nil
}

// TransitionImportState applies a guarded import-state change. The UPDATE
// only matches when the row is currently in the from state, which is what
// makes the webhook push nudge race-free without application-level locks.
func (r *RepositoryRepo) TransitionImportState(ctx context.Context, key string, from, to model.ImportState) (bool, error) {
	const query = `UPDATE repositories SET import_state = ? WHERE key = ? AND import_state = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(to), key, string(from))
	if err != nil {
		return false, fmt.Errorf("transition repository %s to %s: %w", key, to, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows > 0, nil
}

// UpdateWebhookInfo replaces the webhook registration bookkeeping for the
// given repository.
func (r *RepositoryRepo) UpdateWebhookInfo(ctx context.Context, key string, info model.WebhookInfo) error {
	const query = `UPDATE repositories SET webhook_info = ? WHERE key = ?`

	webhookJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal webhook info: %w", err)
	}

	result, err := r.db.Writer.ExecContext(ctx, query, string(webhookJSON), key)
	if err != nil {
		return fmt.Errorf("update webhook info for %s: %w", key, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update webhook info for %s: %w", key, driven.ErrRepositoryNotFound)
	}

	return nil
}

// ListByConnector returns all repositories held by one connector, ordered by
// source id.
func (r *RepositoryRepo) ListByConnector(ctx context.Context, connectorKey string) ([]model.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE connector_key = ? ORDER BY source_id`

	rows, err := r.db.Reader.QueryContext(ctx, query, connectorKey)
	if err != nil {
		return nil, fmt.Errorf("list repositories for %s: %w", connectorKey, err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var integrationType, importState, webhookJSON string
	var public, polling int
	var lastChecked, lastImported sql.NullString

	err := s.Scan(
		&repo.Key, &repo.ConnectorKey, &repo.OrganizationKey, &repo.SourceID, &integrationType,
		&repo.Name, &repo.URL, &repo.Description, &public, &polling, &importState, &webhookJSON,
		&repo.CommitCount, &lastChecked, &lastImported,
	)
	if err != nil {
		return nil, err
	}

	repo.IntegrationType = model.IntegrationType(integrationType)
	repo.ImportState = model.ImportState(importState)
	repo.Public = public != 0
	repo.Polling = polling != 0

	if err := json.Unmarshal([]byte(webhookJSON), &repo.Webhooks); err != nil {
		return nil, fmt.Errorf("parse webhook info: %w", err)
	}

	if repo.LastChecked, err = parseNullableTime(lastChecked); err != nil {
		return nil, fmt.Errorf("parse last_checked: %w", err)
	}
	if repo.LastImported, err = parseNullableTime(lastImported); err != nil {
		return nil, fmt.Errorf("parse last_imported: %w", err)
	}

	return &repo, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableTime maps the zero time to NULL so absent timestamps round-trip.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func parseNullableTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return parseTime(s.String)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999 -0700 MST",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
