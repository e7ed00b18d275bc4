package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/assessx/internal/assessment"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS assessment_templates (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	kbs        TEXT[] NOT NULL DEFAULT '{}',
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS assessment_templates_name_key
	ON assessment_templates (lower(name));
`

const selectColumns = `id, name, tags, kbs, body, created_at`

// PostgresCatalog stores templates in PostgreSQL.
type PostgresCatalog struct {
	db DBTX
}

// NewPostgresCatalog wraps db. Call EnsureSchema once before use.
func NewPostgresCatalog(db DBTX) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// EnsureSchema creates the templates table and its name index.
func (c *PostgresCatalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE metacharacters so partial is matched literally.
func escapeLike(partial string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(partial)
}

// SearchByName returns records whose name contains partial, ignoring case.
func (c *PostgresCatalog) SearchByName(ctx context.Context, partial string) ([]Record, error) {
	query := `SELECT ` + selectColumns + ` FROM assessment_templates
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY length(name), name`

	rows, err := c.db.Query(ctx, query, escapeLike(partial))
	if err != nil {
		return nil, fmt.Errorf("search templates: %w", err)
	}
	return collectRecords(rows)
}

// Create inserts t with a new id.
func (c *PostgresCatalog) Create(ctx context.Context, t assessment.Template) (Record, error) {
	id := uuid.New()
	t.ID = id.String()
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.KBs == nil {
		t.KBs = []string{}
	}

	body, err := json.Marshal(t)
	if err != nil {
		return Record{}, fmt.Errorf("encode template: %w", err)
	}

	query := `INSERT INTO assessment_templates (id, name, tags, kbs, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	var createdAt pgtype.Timestamptz
	err = c.db.QueryRow(ctx, query,
		pgtype.UUID{Bytes: id, Valid: true}, t.Name, t.Tags, t.KBs, body,
	).Scan(&createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Record{}, ErrNameTaken
		}
		return Record{}, fmt.Errorf("create template: %w", err)
	}

	return newRecord(t.ID, t, createdAt.Time), nil
}

// Get returns the record with id.
func (c *PostgresCatalog) Get(ctx context.Context, id string) (Record, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Record{}, ErrNotFound
	}

	query := `SELECT ` + selectColumns + ` FROM assessment_templates WHERE id = $1`
	rows, err := c.db.Query(ctx, query, pgtype.UUID{Bytes: parsed, Valid: true})
	if err != nil {
		return Record{}, fmt.Errorf("get template: %w", err)
	}
	records, err := collectRecords(rows)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, ErrNotFound
	}
	return records[0], nil
}

// List returns every record, oldest first.
func (c *PostgresCatalog) List(ctx context.Context) ([]Record, error) {
	query := `SELECT ` + selectColumns + ` FROM assessment_templates ORDER BY created_at, name`
	rows, err := c.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return out, nil
}

func scanRecord(rows pgx.Rows) (Record, error) {
	var (
		id        pgtype.UUID
		name      string
		tags      []string
		kbs       []string
		body      []byte
		createdAt pgtype.Timestamptz
	)
	if err := rows.Scan(&id, &name, &tags, &kbs, &body, &createdAt); err != nil {
		return Record{}, fmt.Errorf("scan template: %w", err)
	}

	var t assessment.Template
	if err := json.Unmarshal(body, &t); err != nil {
		return Record{}, fmt.Errorf("decode template %s: %w", name, err)
	}
	t.Name = name
	t.Tags = tags
	t.KBs = kbs

	return newRecord(uuid.UUID(id.Bytes).String(), t, createdAt.Time), nil
}
