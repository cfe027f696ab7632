package handlers

import (
	"campusride/internal/services"

	"go.uber.org/zap"
)

// API bundles the services behind the HTTP routes.
type API struct {
	Wallet     *services.WalletLedger
	Bookings   *services.BookingLedger
	Requests   *services.ReservationRegistry
	Payments   *services.PaymentOrchestrator
	Rides      *services.StaticRideDirectory
	Commission services.CommissionCalculator
	Logger     *zap.Logger
}

func (a *API) receipts(requestID string) services.ReceiptService {
	return services.ReceiptService{
		Bookings:   a.Bookings,
		Wallet:     a.Wallet,
		Commission: a.Commission,
		RequestID:  requestID,
	}
}
