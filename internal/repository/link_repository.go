package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hopnet-labs/hoplink/internal/model"
)

var (
	ErrNotFound     = errors.New("link not found")
	ErrCodeConflict = errors.New("short code already exists")
)

var tracer = otel.Tracer("github.com/hopnet-labs/hoplink/internal/repository")

// LinkRepository is the authoritative directory of short codes. It handles
// all database operations for links.
type LinkRepository struct {
	db *pgxpool.Pool
}

// NewLinkRepository creates a new link repository
func NewLinkRepository(db *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create inserts a new link record into the database
func (r *LinkRepository) Create(ctx context.Context, link *model.Link) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "INSERT"),
			attribute.String("db.sql.table", "links"),
			attribute.String("short_code", link.ShortCode),
		),
	)
	defer span.End()

	// If the short code already exists the database returns a
	// unique-constraint error which we map to ErrCodeConflict so callers
	// can retry generation.
	query := `
		INSERT INTO links (id, short_code, target_url, owner_id, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRow(
		ctx,
		query,
		link.ID,
		link.ShortCode,
		link.TargetURL,
		link.OwnerID,
		link.Active,
		link.ExpiresAt,
	).Scan(&link.CreatedAt)

	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCodeConflict
		}
		return err
	}

	return nil
}

// GetByCode retrieves a link by its short code. The match is exact and
// case-sensitive.
func (r *LinkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "links"),
			attribute.String("short_code", code),
		),
	)
	defer span.End()

	query := `
		SELECT id, short_code, target_url, owner_id, active, created_at, expires_at, click_count
		FROM links
		WHERE short_code = $1
	`
	var link model.Link
	err := r.db.QueryRow(ctx, query, code).Scan(
		&link.ID,
		&link.ShortCode,
		&link.TargetURL,
		&link.OwnerID,
		&link.Active,
		&link.CreatedAt,
		&link.ExpiresAt,
		&link.ClickCount,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}
	return &link, nil
}

// SetActive updates the active flag of a link by id
func (r *LinkRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	ctx, span := tracer.Start(ctx, "db.update",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "UPDATE"),
			attribute.String("db.sql.table", "links"),
			attribute.Bool("active", active),
		),
	)
	defer span.End()

	query := `UPDATE links SET active = $2 WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a link by id. Click events referencing the link are
// removed by the database cascade.
func (r *LinkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "db.delete",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "DELETE"),
			attribute.String("db.sql.table", "links"),
		),
	)
	defer span.End()

	query := `DELETE FROM links WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementClickCount adds one click to a link's counter. The counter is
// monotonic; concurrent increments may be lossy at the caller's level but
// the UPDATE itself never decreases the value.
func (r *LinkRepository) IncrementClickCount(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "db.update",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "UPDATE"),
			attribute.String("db.sql.table", "links"),
		),
	)
	defer span.End()

	query := `UPDATE links SET click_count = click_count + 1 WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
