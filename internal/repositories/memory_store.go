package repositories

import (
	"context"
	"sort"
	"sync"

	"campusride/internal/domain/models"
)

// MemoryStore keeps wallets, bookings and reservation requests in process
// memory. It satisfies WalletStore, BookingStore and ReservationStore.
type MemoryStore struct {
	mu       sync.RWMutex
	wallets  map[string]models.WalletSnapshot
	bookings map[string]models.Booking
	requests map[string]models.ReservationRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:  map[string]models.WalletSnapshot{},
		bookings: map[string]models.Booking{},
		requests: map[string]models.ReservationRequest{},
	}
}

func (s *MemoryStore) LoadWallet(_ context.Context, owner string) (models.WalletSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[owner]
	if !ok {
		return models.WalletSnapshot{Owner: owner, Transactions: []models.WalletTransaction{}}, nil
	}
	return w.Clone(), nil
}

func (s *MemoryStore) AppendTransaction(_ context.Context, owner string, txn models.WalletTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[owner]
	if !ok {
		w = models.WalletSnapshot{Owner: owner}
	}
	for _, existing := range w.Transactions {
		if existing.ID == txn.ID {
			return ErrDuplicate
		}
	}
	w.Transactions = append(w.Transactions, txn)
	w.Balance = txn.BalanceAfter
	s.wallets[owner] = w
	return nil
}

func (s *MemoryStore) TransactionsByKey(_ context.Context, owner, key string) ([]models.WalletTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.WalletTransaction{}
	if key == "" {
		return out, nil
	}
	for _, t := range s.wallets[owner].Transactions {
		if t.IdempotencyKey == key {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteWallet(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wallets, owner)
	return nil
}

func (s *MemoryStore) InsertBooking(_ context.Context, b models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return ErrDuplicate
	}
	s.bookings[b.ID] = b.Clone()
	return nil
}

func (s *MemoryStore) GetBooking(_ context.Context, id string) (models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, ErrNotFound
	}
	return b.Clone(), nil
}

func (s *MemoryStore) UpdateBooking(_ context.Context, b models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	s.bookings[b.ID] = b.Clone()
	return nil
}

func (s *MemoryStore) ListBookingsByPassenger(_ context.Context, passenger string) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Booking{}
	for _, b := range s.bookings {
		if b.PassengerEmail == passenger {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) InsertRequest(_ context.Context, r models.ReservationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return ErrDuplicate
	}
	s.requests[r.ID] = r
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (models.ReservationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return models.ReservationRequest{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) UpdateRequest(_ context.Context, r models.ReservationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; !ok {
		return ErrNotFound
	}
	s.requests[r.ID] = r
	return nil
}

func (s *MemoryStore) DeleteRequest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, id)
	return nil
}

func (s *MemoryStore) ListRequestsByPassenger(_ context.Context, passenger string) ([]models.ReservationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.ReservationRequest{}
	for _, r := range s.requests {
		if r.PassengerEmail == passenger {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
