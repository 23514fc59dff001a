package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/churchpay-reconciliation/internal/domain/church"
	"github.com/churchpay-reconciliation/internal/platform/cache"
	"github.com/churchpay-reconciliation/internal/platform/persistence"
)

// ChurchRepository implements the church.Repository interface for PostgreSQL
type ChurchRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewChurchRepository creates a new PostgreSQL church repository
func NewChurchRepository(logger *slog.Logger, db *persistence.PostgresDB) church.Repository {
	return &ChurchRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// GetByID retrieves a church by its ID
func (r *ChurchRepository) GetByID(ctx context.Context, id uuid.UUID) (*church.Church, error) {
	query := `
		SELECT id, name, processor_account_id, created_at, updated_at
		FROM churches
		WHERE id = $1
	`

	var c church.Church
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.ProcessorAccountID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, church.ErrChurchNotFound{ChurchID: id}
		}
		r.logger.Error("Failed to get church", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get church: %w", err)
	}

	return &c, nil
}

// ListConnected returns every church with a linked processor account
func (r *ChurchRepository) ListConnected(ctx context.Context) ([]*church.Church, error) {
	query := `
		SELECT id, name, processor_account_id, created_at, updated_at
		FROM churches
		WHERE processor_account_id IS NOT NULL
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list connected churches", "error", err)
		return nil, fmt.Errorf("failed to list connected churches: %w", err)
	}
	defer rows.Close()

	var churches []*church.Church
	for rows.Next() {
		var c church.Church
		if err := rows.Scan(&c.ID, &c.Name, &c.ProcessorAccountID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			r.logger.Error("Failed to scan church row", "error", err)
			return nil, fmt.Errorf("failed to scan church row: %w", err)
		}
		churches = append(churches, &c)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over church rows", "error", err)
		return nil, fmt.Errorf("error iterating over church rows: %w", err)
	}

	return churches, nil
}

// CachedChurchRepository decorates a church.Repository with a TTL cache for
// GetByID. Tenant rows change rarely (only during onboarding), so a short
// cache removes the hottest lookup from every reconciliation request.
type CachedChurchRepository struct {
	inner church.Repository
	cache *cache.TTLCache[*church.Church]
}

// NewCachedChurchRepository wraps inner with the given cache.
func NewCachedChurchRepository(inner church.Repository, c *cache.TTLCache[*church.Church]) church.Repository {
	return &CachedChurchRepository{inner: inner, cache: c}
}

func (r *CachedChurchRepository) GetByID(ctx context.Context, id uuid.UUID) (*church.Church, error) {
	key := id.String()
	if c, ok := r.cache.Get(key); ok {
		return c, nil
	}

	c, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, c)
	return c, nil
}

// ListConnected is not cached: it runs once per scheduled sync, not per request.
func (r *CachedChurchRepository) ListConnected(ctx context.Context) ([]*church.Church, error) {
	return r.inner.ListConnected(ctx)
}
