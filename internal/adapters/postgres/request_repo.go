package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campusaid/aidmap/internal/core/domain"
)

const requestColumns = `
	id::text, title, description, types,
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	location_name, status, start_time, expiration_time,
	people, tags, creator_id, created_at`

const upsertRequestSQL = `
	INSERT INTO requests (id, title, description, types, location, location_name,
	                      status, start_time, expiration_time, people, tags, creator_id, created_at)
	VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7,
	        $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (id) DO UPDATE
	SET title = EXCLUDED.title, description = EXCLUDED.description,
	    types = EXCLUDED.types, location = EXCLUDED.location,
	    location_name = EXCLUDED.location_name, status = EXCLUDED.status,
	    start_time = EXCLUDED.start_time, expiration_time = EXCLUDED.expiration_time,
	    people = EXCLUDED.people, tags = EXCLUDED.tags, updated_at = now()`

// RequestRepo implements ports.RequestRepository with pgx and PostGIS.
type RequestRepo struct {
	db *DB
}

// NewRequestRepo creates a new RequestRepo.
func NewRequestRepo(db *DB) *RequestRepo {
	return &RequestRepo{db: db}
}

func upsertArgs(r *domain.Request) []any {
	return []any{
		r.ID, r.Title, r.Description, typesToText(r.Types),
		r.Location.Lon, r.Location.Lat, r.LocationName,
		string(r.Status), r.StartTime, r.ExpirationTime,
		nonNil(r.People), tagsToText(r.Tags), r.CreatorID, r.CreatedAt,
	}
}

// Upsert inserts or updates a single request.
func (r *RequestRepo) Upsert(ctx context.Context, req *domain.Request) error {
	if _, err := r.db.Pool.Exec(ctx, upsertRequestSQL, upsertArgs(req)...); err != nil {
		return fmt.Errorf("upsert request %s: %w", req.ID, err)
	}
	return nil
}

// UpsertBatch inserts many requests using pgx.Batch.
func (r *RequestRepo) UpsertBatch(ctx context.Context, reqs []domain.Request) error {
	batch := &pgx.Batch{}
	for i := range reqs {
		batch.Queue(upsertRequestSQL, upsertArgs(&reqs[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range reqs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a request by UUID.
func (r *RequestRepo) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	req, err := pgx.CollectExactlyOneRow(rows, scanRequest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching filter ordered by creation time.
func (r *RequestRepo) List(ctx context.Context, filter domain.RequestFilter) ([]domain.Request, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if b := filter.Bounds; b != nil {
		where = append(where, boundsClause(*b, arg))
	}
	if filter.ActiveAt != nil {
		where = append(where,
			"status IN ('OPEN', 'IN_PROGRESS')",
			"expiration_time > "+arg(*filter.ActiveAt))
	}
	if filter.CreatorID != "" {
		where = append(where, "creator_id = "+arg(filter.CreatorID))
	}

	q := `SELECT ` + requestColumns + ` FROM requests`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		q += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		q += " OFFSET " + arg(filter.Offset)
	}

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return pgx.CollectRows(rows, scanRequest)
}

// InBounds returns every request inside b.
func (r *RequestRepo) InBounds(ctx context.Context, b domain.Bounds) ([]domain.Request, error) {
	return r.List(ctx, domain.RequestFilter{Bounds: &b})
}

// MarkStatus sets the status of a request.
func (r *RequestRepo) MarkStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE requests SET status = $2, updated_at = now() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("mark request %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListExpired returns open or in-progress requests whose window has closed.
func (r *RequestRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Request, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE status IN ('OPEN', 'IN_PROGRESS') AND expiration_time <= $1
		ORDER BY expiration_time, id
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}
	return pgx.CollectRows(rows, scanRequest)
}

// boundsClause matches points inside b, splitting boxes that cross the
// antimeridian in two.
func boundsClause(b domain.Bounds, arg func(any) string) string {
	envelope := func(minLon, maxLon float64) string {
		return fmt.Sprintf("location::geometry && ST_MakeEnvelope(%s, %s, %s, %s, 4326)",
			arg(minLon), arg(b.MinLat), arg(maxLon), arg(b.MaxLat))
	}
	if b.MinLon <= b.MaxLon {
		return envelope(b.MinLon, b.MaxLon)
	}
	return "(" + envelope(b.MinLon, 180) + " OR " + envelope(-180, b.MaxLon) + ")"
}

func scanRequest(row pgx.CollectableRow) (domain.Request, error) {
	var (
		req         domain.Request
		types, tags []string
		status      string
	)
	err := row.Scan(
		&req.ID, &req.Title, &req.Description, &types,
		&req.Location.Lat, &req.Location.Lon,
		&req.LocationName, &status, &req.StartTime, &req.ExpirationTime,
		&req.People, &tags, &req.CreatorID, &req.CreatedAt,
	)
	if err != nil {
		return req, err
	}
	req.Status = domain.RequestStatus(status)
	for _, t := range types {
		req.Types = append(req.Types, domain.RequestType(t))
	}
	for _, t := range tags {
		req.Tags = append(req.Tags, domain.Tag(t))
	}
	return req, nil
}

func typesToText(types []domain.RequestType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func tagsToText(tags []domain.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
