package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"marbitz-battlebot/internal/model"
)

// DefaultQueryTimeout bounds every PostgresGateway round trip.
const DefaultQueryTimeout = 5 * time.Second

// PostgresGateway stores each document as one JSONB row.
type PostgresGateway struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresGateway creates a gateway on an existing pool.
func NewPostgresGateway(pool *pgxpool.Pool) *PostgresGateway {
	return &PostgresGateway{pool: pool, timeout: DefaultQueryTimeout}
}

// Migrate creates the documents table.
func (g *PostgresGateway) Migrate(ctx context.Context) error {
	_, err := g.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			name VARCHAR(255) PRIMARY KEY,
			body JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	return nil
}

// Load reads a document row. Missing rows, query errors and non-object
// bodies all yield an empty document.
func (g *PostgresGateway) Load(name string) Document {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	var body []byte
	err := g.pool.QueryRow(ctx, `SELECT body FROM documents WHERE name = $1`, name).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Info().Str("document", name).Msg("Document not found, starting empty")
		} else {
			log.Error().Err(err).Str("document", name).Msg("Failed to read document")
		}
		return Document{}
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		log.Error().Err(err).Str("document", name).Msg("Document is not a JSON object, starting empty")
		return Document{}
	}
	return doc
}

// Save upserts the whole document in one statement.
func (g *PostgresGateway) Save(name string, doc Document) error {
	if err := validateSave(name, doc); err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", model.ErrInvalidArgument, name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	const query = `
		INSERT INTO documents (name, body, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
	`
	if _, err := g.pool.Exec(ctx, query, name, string(body)); err != nil {
		log.Error().Err(err).Str("document", name).Msg("Failed to save document")
		return fmt.Errorf("%w: save %s: %v", model.ErrPersistence, name, err)
	}
	return nil
}
