package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	intdb "campusride/internal/db"
	"campusride/internal/domain/models"

	"github.com/shopspring/decimal"
)

const bookingColumns = `id, ride_id, passenger_email, owner_email, status, paid, payment_method, payment_status,
	amount, amount_paid, price_paid, created_at, accepted_at, paid_at, depart, destination, departure_at,
	meeting_point, meeting_point_address, meeting_point_lat, meeting_point_lng, plate, driver_plate, masked_plate`

func bookingArgs(b models.Booking) []any {
	var lat, lng any
	if b.MeetingPointLatLng != nil {
		lat, lng = b.MeetingPointLatLng.Lat, b.MeetingPointLatLng.Lng
	}
	return []any{
		b.ID, b.RideID, b.PassengerEmail, b.OwnerEmail, string(b.Status), b.Paid,
		string(b.PaymentMethod), string(b.PaymentStatus), b.Amount,
		nullDecimal(b.AmountPaid), nullDecimal(b.PricePaid), b.CreatedAt,
		nullTime(b.AcceptedAt), nullTime(b.PaidAt), b.Depart, b.Destination, nullTimeValue(b.DepartureAt),
		b.MeetingPoint, b.MeetingPointAddress, lat, lng, b.Plate, b.DriverPlate, b.MaskedPlate,
	}
}

func (r MySQLStore) InsertBooking(ctx context.Context, b models.Booking) error {
	_, err := r.db().ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, bookingArgs(b)...)
	if err != nil {
		if intdb.IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r MySQLStore) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	row := r.db().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=? LIMIT 1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Booking{}, ErrNotFound
		}
		return models.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// UpdateBooking rewrites every mutable column; id, ride, passenger, amount
// and created_at are never touched.
func (r MySQLStore) UpdateBooking(ctx context.Context, b models.Booking) error {
	var lat, lng any
	if b.MeetingPointLatLng != nil {
		lat, lng = b.MeetingPointLatLng.Lat, b.MeetingPointLatLng.Lng
	}
	res, err := r.db().ExecContext(ctx, `
		UPDATE bookings SET
			status=?, paid=?, payment_method=?, payment_status=?, amount_paid=?, price_paid=?,
			accepted_at=?, paid_at=?, meeting_point=?, meeting_point_address=?,
			meeting_point_lat=?, meeting_point_lng=?, plate=?, driver_plate=?, masked_plate=?
		WHERE id=?`,
		string(b.Status), b.Paid, string(b.PaymentMethod), string(b.PaymentStatus),
		nullDecimal(b.AmountPaid), nullDecimal(b.PricePaid), nullTime(b.AcceptedAt), nullTime(b.PaidAt),
		b.MeetingPoint, b.MeetingPointAddress, lat, lng, b.Plate, b.DriverPlate, b.MaskedPlate,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update booking: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for unchanged rows too, so confirm existence.
		if _, err := r.GetBooking(ctx, b.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r MySQLStore) ListBookingsByPassenger(ctx context.Context, passenger string) ([]models.Booking, error) {
	rows, err := r.db().QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE passenger_email=? ORDER BY created_at, id`, passenger)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (models.Booking, error) {
	var (
		b                     models.Booking
		status, method, payst string
		amountPaid, pricePaid decimal.NullDecimal
		acceptedAt, paidAt    sql.NullTime
		departureAt           sql.NullTime
		lat, lng              sql.NullFloat64
	)
	if err := row.Scan(
		&b.ID, &b.RideID, &b.PassengerEmail, &b.OwnerEmail, &status, &b.Paid, &method, &payst,
		&b.Amount, &amountPaid, &pricePaid, &b.CreatedAt, &acceptedAt, &paidAt,
		&b.Depart, &b.Destination, &departureAt,
		&b.MeetingPoint, &b.MeetingPointAddress, &lat, &lng, &b.Plate, &b.DriverPlate, &b.MaskedPlate,
	); err != nil {
		return models.Booking{}, err
	}
	b.Status = models.BookingStatus(status)
	b.PaymentMethod = models.PaymentMethod(method)
	b.PaymentStatus = models.PaymentStatus(payst)
	if amountPaid.Valid {
		v := amountPaid.Decimal
		b.AmountPaid = &v
	}
	if pricePaid.Valid {
		v := pricePaid.Decimal
		b.PricePaid = &v
	}
	if acceptedAt.Valid {
		v := acceptedAt.Time
		b.AcceptedAt = &v
	}
	if paidAt.Valid {
		v := paidAt.Time
		b.PaidAt = &v
	}
	if departureAt.Valid {
		b.DepartureAt = departureAt.Time
	}
	if lat.Valid && lng.Valid {
		b.MeetingPointLatLng = &models.LatLng{Lat: lat.Float64, Lng: lng.Float64}
	}
	return b, nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return *d
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullTimeValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
