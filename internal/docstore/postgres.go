package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"hazard-reporter/internal/common/logger"
)

// Schema creates the single JSONB table Postgres keeps documents in.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT  NOT NULL,
	id         TEXT  NOT NULL,
	fields     JSONB NOT NULL,
	PRIMARY KEY (collection, id)
)`

// Postgres stores documents as JSONB rows keyed by (collection, id).
type Postgres struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgres(db *sql.DB, log logger.Logger) *Postgres {
	return &Postgres{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "docstore", "driver": "postgres"}),
	}
}

// Migrate creates the documents table when it is missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate documents table: %w", err)
	}
	return nil
}

func (p *Postgres) GetDoc(ctx context.Context, collection, id string) (map[string]interface{}, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s/%s: %w", collection, id, err)
	}
	return decodeFields(raw)
}

func (p *Postgres) SetDoc(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields`,
		collection, id, string(body),
	)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *Postgres) UpdateDoc(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return p.exec(ctx, collection, id,
		`UPDATE documents SET fields = fields || $3::jsonb WHERE collection = $1 AND id = $2`,
		collection, id, string(body),
	)
}

func (p *Postgres) Increment(ctx context.Context, collection, id, field string, delta int) error {
	return p.exec(ctx, collection, id,
		`UPDATE documents
		 SET fields = jsonb_set(fields, $3::text[], to_jsonb(COALESCE((fields->>$4)::int, 0) + $5))
		 WHERE collection = $1 AND id = $2`,
		collection, id, pq.Array([]string{field}), field, delta,
	)
}

func (p *Postgres) exec(ctx context.Context, collection, id, query string, args ...interface{}) error {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, collection string, filters []Filter) ([]Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	query, args := buildQuery(collection, filters)
	p.logger.Debug("query", map[string]interface{}{"collection": collection, "sql": query})

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

// buildQuery renders filters as positional parameters; field names are
// bound as values, never spliced into the SQL text.
func buildQuery(collection string, filters []Filter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, fields FROM documents WHERE collection = $1`)
	args := []interface{}{collection}
	for _, f := range filters {
		args = append(args, f.Field)
		field := len(args)
		switch f.Op {
		case OpEqual:
			args = append(args, fmt.Sprint(f.Value))
			fmt.Fprintf(&sb, " AND fields->>$%d = $%d", field, len(args))
		case OpGreaterEqual, OpLessEqual:
			v, _ := toFloat(f.Value)
			args = append(args, v)
			fmt.Fprintf(&sb, " AND (fields->>$%d)::double precision %s $%d", field, f.Op, len(args))
		}
	}
	sb.WriteString(" ORDER BY id")
	return sb.String(), args
}

func decodeFields(raw []byte) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}
