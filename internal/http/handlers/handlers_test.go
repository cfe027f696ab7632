package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"campusride/internal/domain"
	"campusride/internal/domain/models"
	"campusride/internal/events"
	"campusride/internal/http/middleware"
	"campusride/internal/repositories"
	"campusride/internal/scheduler"
	"campusride/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const testSecret = "test-secret"

type apiFixture struct {
	engine *gin.Engine
	api    *API
	sched  *scheduler.Manual
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repositories.NewMemoryStore()
	rec := &events.Recorder{}
	wallet := services.NewWalletLedger(store, rec, nil)
	bookings := services.NewBookingLedger(store, nil)
	sched := scheduler.NewManual()
	requests := services.NewReservationRegistry(store, bookings, sched, rec, nil)
	sched.Handle(requests.AcceptIfPending)
	commission, _ := services.NewCommissionCalculator(decimal.RequireFromString("0.20"))
	rides := services.NewStaticRideDirectory(models.Ride{
		ID:                  "ride-1",
		OwnerEmail:          "driver@campus.edu",
		Depart:              "Gare Centrale",
		Destination:         "Campus Nord",
		DepartureAt:         time.Now().Add(24 * time.Hour),
		Price:               decimal.RequireFromString("37.50"),
		Seats:               3,
		MeetingPointAddress: "Parking P2",
		Plate:               "AB-123-CD",
	})
	requests.Rides = rides

	a := &API{
		Wallet:     wallet,
		Bookings:   bookings,
		Requests:   requests,
		Payments:   services.NewPaymentOrchestrator(wallet, bookings, requests, commission, rec, nil),
		Rides:      rides,
		Commission: commission,
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	g := r.Group("/api", middleware.Auth(testSecret))
	g.GET("/commission", a.CommissionPreview)
	g.POST("/rides", a.CreateRide)
	g.GET("/rides/:id", a.GetRide)
	g.GET("/rides/:id/meeting-point", a.RideMeetingPoint)
	g.POST("/rides/:id/reservations", a.RequestReservation)
	g.DELETE("/rides/:id/reservations", a.RemoveReservation)
	g.POST("/rides/:id/reservations/cancel", a.CancelReservation)
	g.POST("/rides/:id/payment/proceed", a.ProceedToPayment)
	g.POST("/rides/:id/payment/confirm", a.ConfirmPayment)
	g.GET("/reservations", a.ListReservations)
	g.GET("/bookings", a.ListBookings)
	g.GET("/bookings/:id", a.GetBooking)
	g.PATCH("/bookings/:id", a.PatchBooking)
	g.POST("/bookings/:id/cancel", a.CancelBooking)
	g.GET("/bookings/:id/receipt", a.BookingReceipt)
	g.GET("/wallet", a.GetWallet)
	g.DELETE("/wallet", a.DeleteWallet)
	g.POST("/wallet/recharge", a.RechargeWallet)
	g.GET("/wallet/statement", a.WalletStatement)
	g.GET("/admin/wallets/:owner/verify", middleware.RequireRoles(middleware.RoleAdmin), a.VerifyWalletChain)

	return apiFixture{engine: r, api: a, sched: sched}
}

func token(t *testing.T, email, role string) string {
	t.Helper()
	tok, err := middleware.IssueToken(testSecret, email, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (f apiFixture) do(t *testing.T, method, path, tok, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

// reserveAccepted logs a reservation for ride-1 and fires its auto-accept.
func (f apiFixture) reserveAccepted(t *testing.T, tok string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/rides/ride-1/reservations", tok, `{"note":"front seat"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("reserve: expected 201, got %d %s", w.Code, w.Body.String())
	}
	out := decodeBody[struct {
		Created bool                      `json:"created"`
		Request models.ReservationRequest `json:"request"`
	}](t, w)
	if !out.Created || out.Request.ID == "" {
		t.Fatalf("unexpected reservation payload %s", w.Body.String())
	}
	if ok, err := f.sched.Fire(context.Background(), out.Request.ID); !ok || err != nil {
		t.Fatalf("auto-accept: ok=%v err=%v", ok, err)
	}
	return out.Request.ID
}

func TestAuthRejectsMissingAndForeignTokens(t *testing.T) {
	f := newAPIFixture(t)
	if w := f.do(t, http.MethodGet, "/api/wallet", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}
	forged, _ := middleware.IssueToken("other-secret", "ana@campus.edu", "", time.Hour)
	if w := f.do(t, http.MethodGet, "/api/wallet", forged, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("foreign secret: expected 401, got %d", w.Code)
	}
	expired, _ := middleware.IssueToken(testSecret, "ana@campus.edu", "", -time.Minute)
	w := f.do(t, http.MethodGet, "/api/wallet", expired, "")
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "token expired") {
		t.Fatalf("expired: got %d %s", w.Code, w.Body.String())
	}
}

func TestWalletRechargeAndSnapshot(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "Ana@Campus.edu", "")

	if w := f.do(t, http.MethodPost, "/api/wallet/recharge", tok, `{"amount":"-5","method":"card"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("negative recharge: expected 400, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/wallet/recharge", tok, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("empty body: expected 400, got %d", w.Code)
	}
	w := f.do(t, http.MethodPost, "/api/wallet/recharge", tok, `{"amount":50,"method":"card"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("recharge: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/wallet", tok, "")
	snap := decodeBody[models.WalletSnapshot](t, w)
	if snap.Owner != "ana@campus.edu" || !snap.Balance.Equal(decimal.NewFromInt(50)) || len(snap.Transactions) != 1 {
		t.Fatalf("unexpected snapshot %s", w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/wallet/statement", tok, "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("statement: %d %s", w.Code, w.Header().Get("Content-Type"))
	}

	if w := f.do(t, http.MethodDelete, "/api/wallet", tok, ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	snap = decodeBody[models.WalletSnapshot](t, f.do(t, http.MethodGet, "/api/wallet", tok, ""))
	if !snap.Balance.IsZero() || len(snap.Transactions) != 0 {
		t.Fatalf("wallet should be empty after delete, got %+v", snap)
	}
}

func TestReservationToPaymentFlow(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "ana@campus.edu", "")

	if w := f.do(t, http.MethodPost, "/api/rides/ride-1/payment/proceed", tok, ""); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("proceed without reservation: expected 422, got %d", w.Code)
	}

	id := f.reserveAccepted(t, tok)

	w := f.do(t, http.MethodPost, "/api/rides/ride-1/reservations", tok, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"created":false`) {
		t.Fatalf("duplicate reservation: got %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/api/rides/ride-1/payment/proceed", tok, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"fee":"7.5"`) {
		t.Fatalf("proceed: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/api/rides/ride-1/payment/confirm", tok, `{"amount":"37.50"}`)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("unfunded confirm: expected 402, got %d %s", w.Code, w.Body.String())
	}
	if reason := decodeBody[ErrorResponse](t, w).Reason; reason != domain.ReasonInsufficientFunds {
		t.Fatalf("unexpected reason %q", reason)
	}

	f.do(t, http.MethodPost, "/api/wallet/recharge", tok, `{"amount":"50","method":"card"}`)
	w = f.do(t, http.MethodPost, "/api/rides/ride-1/payment/confirm", tok, `{"amount":"37.50"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", w.Code, w.Body.String())
	}
	res := decodeBody[services.PaymentResult](t, w)
	if res.Booking.ID != id || res.Booking.Status != models.BookingPaid || !res.Balance.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("unexpected result %s", w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/api/rides/ride-1/payment/confirm", tok, `{"amount":"37.50"}`)
	if res := decodeBody[services.PaymentResult](t, w); w.Code != http.StatusOK || !res.Replayed || !res.Balance.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("replay: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/bookings/"+id+"/receipt", tok, "")
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Disposition"), `inline; filename="RECU_`) {
		t.Fatalf("receipt: %d %s", w.Code, w.Header().Get("Content-Disposition"))
	}

	if w := f.do(t, http.MethodPost, "/api/rides/ride-1/reservations/cancel", tok, ""); w.Code != http.StatusConflict {
		t.Fatalf("cancel after payment: expected 409, got %d", w.Code)
	}
}

func TestConfirmPaymentRequiresAmount(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "ana@campus.edu", "")
	f.reserveAccepted(t, tok)
	w := f.do(t, http.MethodPost, "/api/rides/ride-1/payment/confirm", tok, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestConfirmPaymentRejectsAmountBelowPrice(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "ana@campus.edu", "")
	id := f.reserveAccepted(t, tok)
	f.do(t, http.MethodPost, "/api/wallet/recharge", tok, `{"amount":"50","method":"card"}`)

	w := f.do(t, http.MethodPost, "/api/rides/ride-1/payment/confirm", tok, `{"amount":"0.01"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", w.Code, w.Body.String())
	}
	snap := decodeBody[models.WalletSnapshot](t, f.do(t, http.MethodGet, "/api/wallet", tok, ""))
	if !snap.Balance.Equal(decimal.NewFromInt(50)) || len(snap.Transactions) != 1 {
		t.Fatalf("wallet charged: %+v", snap)
	}
	b := decodeBody[models.Booking](t, f.do(t, http.MethodGet, "/api/bookings/"+id, tok, ""))
	if b.Status != models.BookingAccepted || b.Paid {
		t.Fatalf("booking should stay unpaid: %+v", b)
	}
}

func TestWalletRechargeRejectsSubCentAmount(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "ana@campus.edu", "")
	for _, body := range []string{`{"amount":"0.005","method":"card"}`, `{"amount":"12.345","method":"card"}`} {
		if w := f.do(t, http.MethodPost, "/api/wallet/recharge", tok, body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, w.Code)
		}
	}
	snap := decodeBody[models.WalletSnapshot](t, f.do(t, http.MethodGet, "/api/wallet", tok, ""))
	if !snap.Balance.IsZero() || len(snap.Transactions) != 0 {
		t.Fatalf("wallet should be untouched, got %+v", snap)
	}
}

func TestOfferLatestKeepsNewestSnapshot(t *testing.T) {
	ch := make(chan models.WalletSnapshot, 1)
	for _, bal := range []int64{10, 20, 30} {
		offerLatest(ch, models.WalletSnapshot{Balance: decimal.NewFromInt(bal)})
	}
	if len(ch) != 1 {
		t.Fatalf("expected one buffered snapshot, got %d", len(ch))
	}
	if got := <-ch; !got.Balance.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected the newest snapshot, got %s", got.Balance)
	}
}

func TestReserveOwnRideAndUnknownRide(t *testing.T) {
	f := newAPIFixture(t)
	if w := f.do(t, http.MethodPost, "/api/rides/ride-1/reservations", token(t, "driver@campus.edu", ""), ""); w.Code != http.StatusBadRequest {
		t.Fatalf("own ride: expected 400, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/rides/nope/reservations", token(t, "ana@campus.edu", ""), ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown ride: expected 404, got %d", w.Code)
	}
}

func TestCancelAndRemoveReservation(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "ana@campus.edu", "")
	f.do(t, http.MethodPost, "/api/rides/ride-1/reservations", tok, "")

	if w := f.do(t, http.MethodPost, "/api/rides/ride-1/reservations/cancel", tok, ""); w.Code != http.StatusNoContent {
		t.Fatalf("cancel: expected 204, got %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/rides/ride-1/reservations/cancel", tok, ""); w.Code != http.StatusNoContent {
		t.Fatalf("second cancel: expected 204, got %d", w.Code)
	}

	f.do(t, http.MethodPost, "/api/rides/ride-1/reservations", tok, "")
	if w := f.do(t, http.MethodDelete, "/api/rides/ride-1/reservations", tok, ""); w.Code != http.StatusNoContent {
		t.Fatalf("remove: expected 204, got %d", w.Code)
	}

	list := decodeBody[struct {
		Data []models.ReservationRequest `json:"data"`
	}](t, f.do(t, http.MethodGet, "/api/reservations", tok, ""))
	if len(list.Data) != 1 || list.Data[0].Status != models.RequestCancelled {
		t.Fatalf("expected one cancelled request, got %+v", list.Data)
	}
}

func TestPatchBookingForbidsPaymentFields(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "ana@campus.edu", "")
	id := f.reserveAccepted(t, tok)

	if w := f.do(t, http.MethodPatch, "/api/bookings/"+id, tok, `{"status":"paid","paymentStatus":"paid"}`); w.Code != http.StatusForbidden {
		t.Fatalf("passenger paid patch: expected 403, got %d", w.Code)
	}

	w := f.do(t, http.MethodPatch, "/api/bookings/"+id, tok, `{"meetingPointAddress":"Hall B"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("meeting patch: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/bookings/"+id, tok, "")
	detail := decodeBody[bookingDetail](t, w)
	if detail.ResolvedMeetingPoint.Address != "Hall B" {
		t.Fatalf("resolved meeting point %+v", detail.ResolvedMeetingPoint)
	}

	w = f.do(t, http.MethodGet, "/api/rides/ride-1/meeting-point", tok, "")
	if mp := decodeBody[models.MeetingPoint](t, w); mp.Address != "Hall B" {
		t.Fatalf("ride meeting point %+v", mp)
	}

	w = f.do(t, http.MethodPatch, "/api/bookings/"+id, tok, `{"status":"pending"}`)
	if w.Code != http.StatusConflict || decodeBody[ErrorResponse](t, w).Reason != domain.ReasonInvalidTransition {
		t.Fatalf("backwards transition: %d %s", w.Code, w.Body.String())
	}

	admin := token(t, "ana@campus.edu", middleware.RoleAdmin)
	if w := f.do(t, http.MethodPatch, "/api/bookings/"+id, admin, `{"status":"paid","paymentStatus":"paid"}`); w.Code != http.StatusOK {
		t.Fatalf("admin repair: %d %s", w.Code, w.Body.String())
	}
}

func TestCancelBookingCancelsRequest(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "ana@campus.edu", "")
	id := f.reserveAccepted(t, tok)

	w := f.do(t, http.MethodPost, "/api/bookings/"+id+"/cancel", tok, "")
	if b := decodeBody[models.Booking](t, w); w.Code != http.StatusOK || b.Status != models.BookingCancelled {
		t.Fatalf("cancel booking: %d %s", w.Code, w.Body.String())
	}
	live, _ := f.api.Requests.ActiveRequest(context.Background(), "ana@campus.edu", "ride-1")
	if live != nil {
		t.Fatalf("request should no longer be live, got %+v", live)
	}
	if w := f.do(t, http.MethodGet, "/api/bookings/"+id, token(t, "bob@campus.edu", ""), ""); w.Code != http.StatusNotFound {
		t.Fatalf("other passenger: expected 404, got %d", w.Code)
	}
}

func TestCreateRideOwnedByCaller(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "Driver2@Campus.edu", "")
	w := f.do(t, http.MethodPost, "/api/rides", tok, `{"ownerEmail":"someone@else.edu","depart":"A","destination":"B","price":"12.345","seats":2}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create ride: %d %s", w.Code, w.Body.String())
	}
	ride := decodeBody[models.Ride](t, w)
	if ride.ID == "" || ride.OwnerEmail != "driver2@campus.edu" || !ride.Price.Equal(decimal.RequireFromString("12.35")) {
		t.Fatalf("unexpected ride %+v", ride)
	}
	if w := f.do(t, http.MethodGet, "/api/rides/"+ride.ID, tok, ""); w.Code != http.StatusOK {
		t.Fatalf("get ride: %d", w.Code)
	}
}

func TestCommissionEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "ana@campus.edu", "")

	split := decodeBody[services.CommissionSplit](t, f.do(t, http.MethodGet, "/api/commission?price=37.50", tok, ""))
	if !split.Fee.Equal(decimal.RequireFromString("7.50")) || !split.DriverNet.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected split %+v", split)
	}
	split = decodeBody[services.CommissionSplit](t, f.do(t, http.MethodGet, "/api/commission?price=10&rate=0.15", tok, ""))
	if !split.Fee.Equal(decimal.RequireFromString("1.50")) {
		t.Fatalf("unexpected split with rate %+v", split)
	}
	for _, q := range []string{"price=abc", "price=-1", "price=10&rate=2", ""} {
		if w := f.do(t, http.MethodGet, "/api/commission?"+q, tok, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", q, w.Code)
		}
	}
}

func TestRespondDomainErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		reason string
	}{
		{domain.ValidationError{Field: "amount", Msg: "bad"}, http.StatusBadRequest, domain.ReasonValidation},
		{domain.NotFoundError{Resource: "booking", ID: "x"}, http.StatusNotFound, domain.ReasonNotFound},
		{domain.ConflictError{Resource: "booking", Reason: domain.ReasonActiveBookingExists}, http.StatusConflict, domain.ReasonActiveBookingExists},
		{domain.InsufficientFundsError{Owner: "a"}, http.StatusPaymentRequired, domain.ReasonInsufficientFunds},
		{domain.NotPayableError{BookingID: "x"}, http.StatusUnprocessableEntity, domain.ReasonNotPayable},
		{domain.PaymentFailedError{BookingID: "x", Compensated: true}, http.StatusServiceUnavailable, domain.ReasonPaymentFailed},
		{domain.InternalError{Msg: "boom"}, http.StatusInternalServerError, domain.ReasonInternal},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		RespondDomainError(c, tc.err)
		if w.Code != tc.status {
			t.Fatalf("%T: expected %d, got %d", tc.err, tc.status, w.Code)
		}
		if got := decodeBody[ErrorResponse](t, w).Reason; got != tc.reason {
			t.Fatalf("%T: expected reason %q, got %q", tc.err, tc.reason, got)
		}
	}
}

func TestVerifyWalletChainIsAdminOnly(t *testing.T) {
	f := newAPIFixture(t)
	tok := token(t, "ana@campus.edu", "")
	f.do(t, http.MethodPost, "/api/wallet/recharge", tok, `{"amount":"20","method":"card"}`)

	if w := f.do(t, http.MethodGet, "/api/admin/wallets/ana@campus.edu/verify", tok, ""); w.Code != http.StatusForbidden {
		t.Fatalf("passenger: expected 403, got %d", w.Code)
	}
	w := f.do(t, http.MethodGet, "/api/admin/wallets/ana@campus.edu/verify", token(t, "ops@campus.edu", "Admin"), "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"consistent":true`) {
		t.Fatalf("admin: %d %s", w.Code, w.Body.String())
	}
}
