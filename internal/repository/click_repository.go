package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hopnet-labs/hoplink/internal/model"
)

// ClickEventRepository handles database operations for click events
type ClickEventRepository struct {
	db *pgxpool.Pool
}

// NewClickEventRepository creates a new click event repository
func NewClickEventRepository(db *pgxpool.Pool) *ClickEventRepository {
	return &ClickEventRepository{db: db}
}

// Insert writes one click event. Events are append-only.
func (r *ClickEventRepository) Insert(ctx context.Context, event *model.ClickEvent) error {
	ctx, span := tracer.Start(ctx, "db.insert",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "INSERT"),
			attribute.String("db.sql.table", "click_events"),
		),
	)
	defer span.End()

	query := `
		INSERT INTO click_events (id, link_id, occurred_at, user_agent, referrer, source_ip)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
	`
	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.LinkID,
		event.OccurredAt,
		event.UserAgent,
		event.Referrer,
		event.SourceIP,
	)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// CountByLink returns the number of events recorded for a link.
func (r *ClickEventRepository) CountByLink(ctx context.Context, linkID uuid.UUID) (int64, error) {
	ctx, span := tracer.Start(ctx, "db.select",
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", "SELECT"),
			attribute.String("db.sql.table", "click_events"),
		),
	)
	defer span.End()

	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM click_events WHERE link_id = $1`, linkID,
	).Scan(&count)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return count, nil
}
