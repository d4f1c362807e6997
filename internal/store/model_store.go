package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/framefoundry/media-studio/gen-orchestrator/internal/generation"
)

// Model is a catalog row: a generation.ModelConfig plus admin metadata
type Model struct {
	Config     generation.ModelConfig `json:"config"`
	UsageCount int64                  `json:"usage_count"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// ModelStore resolves logical models to adapter bindings
type ModelStore interface {
	GetModel(ctx context.Context, id string) (*Model, error)
	GetModelBySlug(ctx context.Context, slug string) (*Model, error)
	ListModels(ctx context.Context) ([]*Model, error)
}

const modelColumns = `id, slug, name, output_type, adapter_name,
	       provider_id, provider_slug, provider_name,
	       api_key, api_endpoint, api_key_id, api_key_secret,
	       usage_count, created_at, updated_at`

// PostgresModelStore implements ModelStore on a pgx connection pool
type PostgresModelStore struct {
	pool *pgxpool.Pool
}

// NewPostgresModelStore creates a model store backed by PostgreSQL
func NewPostgresModelStore(pool *pgxpool.Pool) *PostgresModelStore {
	return &PostgresModelStore{pool: pool}
}

// GetModel retrieves a model by id
func (s *PostgresModelStore) GetModel(ctx context.Context, id string) (*Model, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+modelColumns+` FROM generation_models WHERE id = $1`, id)
	return s.scanModel(row)
}

// GetModelBySlug retrieves a model by its slug
func (s *PostgresModelStore) GetModelBySlug(ctx context.Context, slug string) (*Model, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+modelColumns+` FROM generation_models WHERE slug = $1`, slug)
	return s.scanModel(row)
}

// ListModels returns the full model catalog ordered by name
func (s *PostgresModelStore) ListModels(ctx context.Context) ([]*Model, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+modelColumns+` FROM generation_models ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var models []*Model
	for rows.Next() {
		model, err := s.scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}
	return models, nil
}

func (s *PostgresModelStore) scanModel(row pgx.Row) (*Model, error) {
	var model Model
	var apiKey, apiEndpoint, apiKeyID, apiKeySecret *string

	err := row.Scan(
		&model.Config.ID, &model.Config.Slug, &model.Config.Name,
		&model.Config.OutputType, &model.Config.AdapterName,
		&model.Config.Provider.ID, &model.Config.Provider.Slug, &model.Config.Provider.Name,
		&apiKey, &apiEndpoint, &apiKeyID, &apiKeySecret,
		&model.UsageCount, &model.CreatedAt, &model.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to scan model: %w", err)
	}

	if apiKey != nil {
		model.Config.Provider.APIKey = *apiKey
	}
	if apiEndpoint != nil {
		model.Config.Provider.APIEndpoint = *apiEndpoint
	}
	if apiKeyID != nil {
		model.Config.Provider.APIKeyID = *apiKeyID
	}
	if apiKeySecret != nil {
		model.Config.Provider.APIKeySecret = *apiKeySecret
	}

	return &model, nil
}
