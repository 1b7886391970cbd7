package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
)

var repoTracer = otel.Tracer("healthbook.internal.appointments")

// ErrStoreUnavailable indicates no persistence store is configured.
var ErrStoreUnavailable = errors.New("appointments: store unavailable")

// ErrSlotTaken indicates a concurrent writer already claimed the exact
// (specialty, scheduled_at) pair. Backed by the unique index on the table,
// so the no-double-booking invariant holds across sessions.
var ErrSlotTaken = errors.New("appointments: slot already taken")

const uniqueViolationCode = "23505"

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides persistence for appointment records.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool. A nil pool is the
// explicit "database not connected" operating mode.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		return nil
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

// Available reports whether a store is configured.
func (r *Repository) Available() bool {
	return r != nil && r.db != nil
}

// ListUpcoming returns all records scheduled at or after the given instant.
// Used for the warm read at session start and the post-booking refresh.
func (r *Repository) ListUpcoming(ctx context.Context, from time.Time) ([]Record, error) {
	if !r.Available() {
		return nil, ErrStoreUnavailable
	}

	ctx, span := repoTracer.Start(ctx, "appointments.list_upcoming")
	defer span.End()

	rows, err := r.db.Query(ctx, `
		SELECT id, specialty, patient_name, phone_number, scheduled_at, created_at
		FROM appointments
		WHERE scheduled_at >= $1
		ORDER BY scheduled_at ASC
	`, from)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: list upcoming: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var specialty string
		if err := rows.Scan(&rec.ID, &specialty, &rec.PatientName, &rec.PhoneNumber, &rec.ScheduledAt, &rec.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("appointments: scan record: %w", err)
		}
		rec.Specialty = clinic.Specialty(specialty)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: iterate records: %w", err)
	}

	span.SetAttributes(attribute.Int("healthbook.record_count", len(records)))
	return records, nil
}

// Create inserts a new appointment record and returns it with its ID set.
func (r *Repository) Create(ctx context.Context, rec Record) (*Record, error) {
	if !r.Available() {
		return nil, ErrStoreUnavailable
	}

	ctx, span := repoTracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("healthbook.specialty", string(rec.Specialty)),
		attribute.String("healthbook.scheduled_at", rec.ScheduledAt.Format(time.RFC3339)),
	)

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (id, specialty, patient_name, phone_number, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, string(rec.Specialty), rec.PatientName, rec.PhoneNumber, rec.ScheduledAt, rec.CreatedAt)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}

	return &rec, nil
}

// CountForDay returns the number of records for a specialty on the given
// clinic-local day. Exposed for capacity dashboards; the availability
// aggregator itself works from the warm-read record set.
func (r *Repository) CountForDay(ctx context.Context, specialty clinic.Specialty, dayStart, dayEnd time.Time) (int, error) {
	if !r.Available() {
		return 0, ErrStoreUnavailable
	}

	ctx, span := repoTracer.Start(ctx, "appointments.count_for_day")
	defer span.End()

	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE specialty = $1 AND scheduled_at >= $2 AND scheduled_at < $3
	`, string(specialty), dayStart, dayEnd).Scan(&count)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("appointments: count for day: %w", err)
	}
	return count, nil
}
