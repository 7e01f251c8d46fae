package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvimport/internal/mapping"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const templateSchema = `
CREATE TABLE IF NOT EXISTS import_templates (
    id             UUID PRIMARY KEY,
    target_key     TEXT NOT NULL,
    name           TEXT NOT NULL,
    column_mapping JSONB NOT NULL,
    csv_headers    JSONB NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT import_templates_target_name_unique UNIQUE (target_key, name)
)`

const templateColumns = `id::text, target_key, name, column_mapping, csv_headers, created_at, updated_at`

// PgTemplateStore stores templates in PostgreSQL.
type PgTemplateStore struct {
	pool *pgxpool.Pool
}

// NewPgTemplateStore returns a store backed by pool. Call EnsureSchema once
// before use.
func NewPgTemplateStore(pool *pgxpool.Pool) *PgTemplateStore {
	return &PgTemplateStore{pool: pool}
}

// EnsureSchema creates the templates table if it does not exist.
func (p *PgTemplateStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, templateSchema); err != nil {
		return fmt.Errorf("create import_templates: %w", err)
	}
	return nil
}

func (p *PgTemplateStore) Create(ctx context.Context, t ImportTemplate) (ImportTemplate, error) {
	mappingJSON, err := json.Marshal(t.Mapping)
	if err != nil {
		return ImportTemplate{}, fmt.Errorf("marshal mapping: %w", err)
	}
	headersJSON, err := json.Marshal(t.Headers)
	if err != nil {
		return ImportTemplate{}, fmt.Errorf("marshal headers: %w", err)
	}

	row := p.pool.QueryRow(ctx,
		`INSERT INTO import_templates (id, target_key, name, column_mapping, csv_headers)
		 VALUES ($1::uuid, $2, $3, $4, $5)
		 RETURNING `+templateColumns,
		uuid.NewString(), t.TargetKey, t.Name, mappingJSON, headersJSON,
	)

	created, err := scanTemplate(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ImportTemplate{}, fmt.Errorf("%w: %s", ErrTemplateExists, t.Name)
		}
		return ImportTemplate{}, fmt.Errorf("create template: %w", err)
	}
	return created, nil
}

func (p *PgTemplateStore) Get(ctx context.Context, id string) (ImportTemplate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ImportTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	row := p.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM import_templates WHERE id = $1::uuid`, id)

	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ImportTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return ImportTemplate{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (p *PgTemplateStore) List(ctx context.Context, targetKey string) ([]ImportTemplate, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM import_templates WHERE target_key = $1 ORDER BY name`, targetKey)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	templates := make([]ImportTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

func (p *PgTemplateStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	tag, err := p.pool.Exec(ctx, `DELETE FROM import_templates WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return nil
}

// scanTemplate reads one row selected with templateColumns.
func scanTemplate(row pgx.Row) (ImportTemplate, error) {
	var (
		t           ImportTemplate
		mappingJSON []byte
		headersJSON []byte
		createdAt   time.Time
		updatedAt   time.Time
	)

	if err := row.Scan(&t.ID, &t.TargetKey, &t.Name, &mappingJSON, &headersJSON, &createdAt, &updatedAt); err != nil {
		return ImportTemplate{}, err
	}

	t.Mapping = make(mapping.Mapping)
	if err := json.Unmarshal(mappingJSON, &t.Mapping); err != nil {
		return ImportTemplate{}, fmt.Errorf("unmarshal mapping: %w", err)
	}
	if err := json.Unmarshal(headersJSON, &t.Headers); err != nil {
		return ImportTemplate{}, fmt.Errorf("unmarshal headers: %w", err)
	}
	t.CreatedAt = createdAt.UTC()
	t.UpdatedAt = updatedAt.UTC()

	return t, nil
}
