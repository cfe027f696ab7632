package repositories

import (
	"context"
	"errors"

	"campusride/internal/domain/models"
)

// ErrNotFound is returned by stores when a lookup-by-id misses.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by stores when an insert hits an existing id.
var ErrDuplicate = errors.New("duplicate id")

// WalletStore persists wallet snapshots. Owners are already normalized.
type WalletStore interface {
	// LoadWallet returns an empty snapshot for unknown owners.
	LoadWallet(ctx context.Context, owner string) (models.WalletSnapshot, error)
	// AppendTransaction stores txn and moves the balance to txn.BalanceAfter.
	AppendTransaction(ctx context.Context, owner string, txn models.WalletTransaction) error
	// TransactionsByKey lists every transaction carrying key, oldest first.
	TransactionsByKey(ctx context.Context, owner, key string) ([]models.WalletTransaction, error)
	DeleteWallet(ctx context.Context, owner string) error
}

type BookingStore interface {
	InsertBooking(ctx context.Context, b models.Booking) error
	GetBooking(ctx context.Context, id string) (models.Booking, error)
	UpdateBooking(ctx context.Context, b models.Booking) error
	ListBookingsByPassenger(ctx context.Context, passenger string) ([]models.Booking, error)
}

type ReservationStore interface {
	InsertRequest(ctx context.Context, r models.ReservationRequest) error
	GetRequest(ctx context.Context, id string) (models.ReservationRequest, error)
	UpdateRequest(ctx context.Context, r models.ReservationRequest) error
	DeleteRequest(ctx context.Context, id string) error
	ListRequestsByPassenger(ctx context.Context, passenger string) ([]models.ReservationRequest, error)
}
