package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intdb "campusride/internal/db"
	"campusride/internal/domain/models"
)

func (r MySQLStore) InsertRequest(ctx context.Context, req models.ReservationRequest) error {
	_, err := r.db().ExecContext(ctx, `
		INSERT INTO reservation_requests (id, ride_id, passenger_email, status, note, created_at)
		VALUES (?,?,?,?,?,?)`,
		req.ID, req.RideID, req.PassengerEmail, string(req.Status), req.Note, req.CreatedAt)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert reservation request: %w", err)
	}
	return nil
}

func (r MySQLStore) GetRequest(ctx context.Context, id string) (models.ReservationRequest, error) {
	var (
		req    models.ReservationRequest
		status string
	)
	err := r.db().QueryRowContext(ctx, `
		SELECT id, ride_id, passenger_email, status, note, created_at
		FROM reservation_requests WHERE id=? LIMIT 1`, id,
	).Scan(&req.ID, &req.RideID, &req.PassengerEmail, &status, &req.Note, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ReservationRequest{}, ErrNotFound
		}
		return models.ReservationRequest{}, fmt.Errorf("get reservation request: %w", err)
	}
	req.Status = models.RequestStatus(status)
	return req, nil
}

func (r MySQLStore) UpdateRequest(ctx context.Context, req models.ReservationRequest) error {
	res, err := r.db().ExecContext(ctx,
		`UPDATE reservation_requests SET status=?, note=? WHERE id=?`,
		string(req.Status), req.Note, req.ID)
	if err != nil {
		return fmt.Errorf("update reservation request: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetRequest(ctx, req.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r MySQLStore) DeleteRequest(ctx context.Context, id string) error {
	if _, err := r.db().ExecContext(ctx, `DELETE FROM reservation_requests WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete reservation request: %w", err)
	}
	return nil
}

func (r MySQLStore) ListRequestsByPassenger(ctx context.Context, passenger string) ([]models.ReservationRequest, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT id, ride_id, passenger_email, status, note, created_at
		FROM reservation_requests WHERE passenger_email=? ORDER BY created_at, id`, passenger)
	if err != nil {
		return nil, fmt.Errorf("list reservation requests: %w", err)
	}
	defer rows.Close()
	out := []models.ReservationRequest{}
	for rows.Next() {
		var (
			req    models.ReservationRequest
			status string
		)
		if err := rows.Scan(&req.ID, &req.RideID, &req.PassengerEmail, &status, &req.Note, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation request: %w", err)
		}
		req.Status = models.RequestStatus(status)
		out = append(out, req)
	}
	return out, rows.Err()
}
