// Package events stores organizer event listings in PostgreSQL.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ticketkeeper/internal/common"
	"github.com/dmitrijs2005/ticketkeeper/internal/dbx"
	"github.com/dmitrijs2005/ticketkeeper/internal/server/models"
)

const selectColumns = `id, organizer_id, name, description, event_date, location, event_type, image_key, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.Event) (*models.Event, error) {
	query :=
		`INSERT INTO events (organizer_id, name, description, event_date, location, event_type)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		e.OrganizerID, e.Name, e.Description, e.Date, e.Location, e.Type).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + selectColumns + ` FROM events WHERE id = $1`

	e := &models.Event{}
	err := scanEvent(r.db.QueryRowContext(ctx, query, id), e)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Event, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM events ORDER BY event_date`)
}

func (r *PostgresRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]*models.Event, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM events WHERE organizer_id = $1 ORDER BY event_date`, organizerID)
}

func (r *PostgresRepository) Update(ctx context.Context, e *models.Event) error {
	query :=
		`UPDATE events SET name = $2, description = $3, event_date = $4, location = $5, event_type = $6
		 WHERE id = $1
		 `
	return r.exec(ctx, query, e.ID, e.Name, e.Description, e.Date, e.Location, e.Type)
}

func (r *PostgresRepository) SetImageKey(ctx context.Context, id, key string) error {
	return r.exec(ctx, `UPDATE events SET image_key = $2 WHERE id = $1`, id, key)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM events WHERE id = $1`, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner, e *models.Event) error {
	return row.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Description, &e.Date,
		&e.Location, &e.Type, &e.ImageKey, &e.CreatedAt)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Event
	for rows.Next() {
		e := &models.Event{}
		if err := scanEvent(rows, e); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// exec runs a single-row write; no affected row means the event is gone.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
