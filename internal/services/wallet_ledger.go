package services

import (
	"context"
	"fmt"

	"campusride/internal/domain"
	"campusride/internal/domain/models"
	"campusride/internal/events"
	"campusride/internal/repositories"
	"campusride/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	RechargeDescription = "recharge réussie"
	RollbackReason      = "rollback"

	metaDescription = "description"
	metaReason      = "reason"
)

// WalletLedger owns every wallet balance. All mutations for one owner run
// under that owner's lock, and subscribers see the new snapshot before the
// mutating call returns.
type WalletLedger struct {
	Store  repositories.WalletStore
	Clock  utils.Clock
	NewID  func() string
	Logger *zap.Logger
	Events events.Publisher

	locks keyedMutex
	subs  subscribers[models.WalletSnapshot]
}

func NewWalletLedger(store repositories.WalletStore, publisher events.Publisher, logger *zap.Logger) *WalletLedger {
	return &WalletLedger{
		Store:  store,
		Logger: utils.OrNop(logger),
		Events: publisher,
	}
}

// Balance is zero for owners that never transacted.
func (w *WalletLedger) Balance(ctx context.Context, owner string) (decimal.Decimal, error) {
	snap, err := w.Snapshot(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Balance, nil
}

func (w *WalletLedger) Snapshot(ctx context.Context, owner string) (models.WalletSnapshot, error) {
	owner = domain.NormalizeEmail(owner)
	if owner == "" {
		return models.WalletSnapshot{Transactions: []models.WalletTransaction{}}, nil
	}
	snap, err := w.Store.LoadWallet(ctx, owner)
	if err != nil {
		return models.WalletSnapshot{}, domain.InternalError{Msg: "failed to load wallet", Err: err}
	}
	snap.Owner = owner
	return snap, nil
}

// Credit adds amount and returns the new balance.
func (w *WalletLedger) Credit(ctx context.Context, owner string, amount decimal.Decimal, meta map[string]string) (decimal.Decimal, error) {
	return w.credit(ctx, owner, amount, meta)
}

// Compensate credits back the uncompensated debit recorded under key. The
// credit carries the same key so the debit no longer counts as already
// charged. amount must equal that debit; with no debit left to offset the
// call is refused and nothing is credited.
func (w *WalletLedger) Compensate(ctx context.Context, owner string, amount decimal.Decimal, key string, meta map[string]string) (decimal.Decimal, error) {
	if key == "" {
		return decimal.Zero, domain.ValidationError{Field: "idempotencyKey", Msg: "required for compensation"}
	}
	owner, amount, err := validateMutation(owner, amount)
	if err != nil {
		return decimal.Zero, err
	}
	m := copyMeta(meta)
	m[metaReason] = RollbackReason
	if _, ok := m[metaDescription]; !ok {
		m[metaDescription] = "remboursement"
	}

	unlock := w.locks.Lock(owner)
	defer unlock()

	prior, found, err := w.priorDebit(ctx, owner, key)
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, domain.ConflictError{Resource: "wallet", Reason: domain.ReasonInvalidTransition, Msg: "no debit to compensate under this key"}
	}
	if !prior.Amount.Equal(amount) {
		return decimal.Zero, domain.ValidationError{
			Field: "amount",
			Msg:   fmt.Sprintf("%s does not match the %s debited under this key", amount.StringFixed(2), prior.Amount.StringFixed(2)),
		}
	}

	snap, err := w.Snapshot(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	snap, err = w.appendLocked(ctx, snap, models.TransactionCredit, amount, key, m)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Balance, nil
}

// Recharge is a user top-up: a credit followed by a recharge event.
func (w *WalletLedger) Recharge(ctx context.Context, owner string, amount decimal.Decimal, method string) (decimal.Decimal, error) {
	meta := map[string]string{metaDescription: RechargeDescription}
	if method = utils.TrimOrEmpty(method); method != "" {
		meta["method"] = method
	}
	balance, err := w.Credit(ctx, owner, amount, meta)
	if err != nil {
		return decimal.Zero, err
	}
	events.Emit(ctx, w.Events, w.log(), events.Event{
		Type:    events.WalletRecharged,
		User:    domain.NormalizeEmail(owner),
		Message: RechargeDescription,
		Amount:  utils.FormatMoney(amount),
	})
	return balance, nil
}

func (w *WalletLedger) credit(ctx context.Context, owner string, amount decimal.Decimal, meta map[string]string) (decimal.Decimal, error) {
	owner, amount, err := validateMutation(owner, amount)
	if err != nil {
		return decimal.Zero, err
	}

	unlock := w.locks.Lock(owner)
	defer unlock()

	snap, err := w.Snapshot(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	snap, err = w.appendLocked(ctx, snap, models.TransactionCredit, amount, "", meta)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Balance, nil
}

// Debit removes amount when the balance covers it. A non-empty key that
// already carries an uncompensated debit of the same amount returns that
// debit's result and appends nothing; a different amount under the key is
// refused.
func (w *WalletLedger) Debit(ctx context.Context, owner string, amount decimal.Decimal, meta map[string]string, key string) (decimal.Decimal, error) {
	owner, amount, err := validateMutation(owner, amount)
	if err != nil {
		return decimal.Zero, err
	}

	unlock := w.locks.Lock(owner)
	defer unlock()

	if key != "" {
		prior, found, err := w.priorDebit(ctx, owner, key)
		if err != nil {
			return decimal.Zero, err
		}
		if found {
			if !prior.Amount.Equal(amount) {
				return decimal.Zero, domain.ValidationError{
					Field: "amount",
					Msg:   fmt.Sprintf("%s does not match the %s already debited under this key", amount.StringFixed(2), prior.Amount.StringFixed(2)),
				}
			}
			w.log().Info("debit replayed",
				zap.String("owner", owner),
				zap.String("idempotency_key", key),
				zap.String("transaction_id", prior.ID),
			)
			return prior.BalanceAfter, nil
		}
	}

	snap, err := w.Snapshot(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	if snap.Balance.LessThan(amount) {
		return decimal.Zero, domain.InsufficientFundsError{Owner: owner, Balance: snap.Balance, Requested: amount}
	}
	snap, err = w.appendLocked(ctx, snap, models.TransactionDebit, amount, key, meta)
	if err != nil {
		return decimal.Zero, err
	}

	events.Emit(ctx, w.Events, w.log(), events.Event{
		Type:      events.WalletDebited,
		User:      owner,
		BookingID: meta["booking_id"],
		RideID:    meta["ride_id"],
		Amount:    utils.FormatMoney(amount),
	})
	return snap.Balance, nil
}

// PriorDebit returns the uncompensated debit recorded under key, if any.
func (w *WalletLedger) PriorDebit(ctx context.Context, owner, key string) (models.WalletTransaction, bool, error) {
	owner = domain.NormalizeEmail(owner)
	if owner == "" || key == "" {
		return models.WalletTransaction{}, false, nil
	}
	unlock := w.locks.Lock(owner)
	defer unlock()
	return w.priorDebit(ctx, owner, key)
}

// priorDebit finds the latest debit under key that no compensating credit
// has offset yet.
func (w *WalletLedger) priorDebit(ctx context.Context, owner, key string) (models.WalletTransaction, bool, error) {
	txns, err := w.Store.TransactionsByKey(ctx, owner, key)
	if err != nil {
		return models.WalletTransaction{}, false, domain.InternalError{Msg: "failed to read idempotency history", Err: err}
	}
	var last models.WalletTransaction
	debits, credits := 0, 0
	for _, t := range txns {
		switch t.Type {
		case models.TransactionDebit:
			debits++
			last = t
		case models.TransactionCredit:
			credits++
		}
	}
	return last, debits > credits, nil
}

func (w *WalletLedger) appendLocked(ctx context.Context, snap models.WalletSnapshot, typ models.TransactionType, amount decimal.Decimal, key string, meta map[string]string) (models.WalletSnapshot, error) {
	meta = copyMeta(meta)
	desc := meta[metaDescription]
	if desc == "" {
		desc = string(typ)
	}
	delete(meta, metaDescription)
	if len(meta) == 0 {
		meta = nil
	}

	txn := models.WalletTransaction{
		ID:             w.newID(),
		Type:           typ,
		Amount:         amount,
		Description:    desc,
		CreatedAt:      w.Clock.Now(),
		IdempotencyKey: key,
		Metadata:       meta,
	}
	txn.BalanceAfter = snap.Balance.Add(txn.SignedAmount())

	if err := w.Store.AppendTransaction(ctx, snap.Owner, txn); err != nil {
		return snap, domain.InternalError{Msg: "failed to append wallet transaction", Err: err}
	}
	snap.Balance = txn.BalanceAfter
	snap.Transactions = append(snap.Transactions, txn)

	w.log().Info("wallet transaction appended",
		zap.String("owner", snap.Owner),
		zap.String("type", string(typ)),
		zap.String("amount", utils.FormatMoney(amount)),
		zap.String("balance_after", utils.FormatMoney(txn.BalanceAfter)),
	)
	w.subs.notify(snap.Owner, snap, cloneSnapshot)
	return snap, nil
}

// Subscribe registers cb for every committed mutation of owner's wallet.
// cb runs while the owner's lock is held and must not mutate that wallet.
func (w *WalletLedger) Subscribe(owner string, cb func(models.WalletSnapshot)) func() {
	return w.subs.add(domain.NormalizeEmail(owner), cb)
}

// DeleteAccount clears the wallet and its history.
func (w *WalletLedger) DeleteAccount(ctx context.Context, owner string) error {
	owner = domain.NormalizeEmail(owner)
	if owner == "" {
		return domain.ValidationError{Field: "owner", Msg: "required"}
	}
	unlock := w.locks.Lock(owner)
	defer unlock()

	if err := w.Store.DeleteWallet(ctx, owner); err != nil {
		return domain.InternalError{Msg: "failed to delete wallet", Err: err}
	}
	w.log().Info("wallet deleted", zap.String("owner", owner))
	w.subs.notify(owner, models.WalletSnapshot{Owner: owner, Balance: decimal.Zero, Transactions: []models.WalletTransaction{}}, cloneSnapshot)
	return nil
}

// VerifyWallet checks that every balanceAfter follows from the previous one
// and that the balance equals the sum of signed amounts.
func VerifyWallet(snap models.WalletSnapshot) error {
	running := decimal.Zero
	for i, t := range snap.Transactions {
		if !t.Amount.IsPositive() {
			return fmt.Errorf("transaction %d (%s): amount must be positive", i, t.ID)
		}
		running = running.Add(t.SignedAmount())
		if !running.Equal(t.BalanceAfter) {
			return fmt.Errorf("transaction %d (%s): balanceAfter %s, expected %s", i, t.ID, t.BalanceAfter.StringFixed(2), running.StringFixed(2))
		}
	}
	if !running.Equal(snap.Balance) {
		return fmt.Errorf("balance %s does not match history total %s", snap.Balance.StringFixed(2), running.StringFixed(2))
	}
	if running.IsNegative() {
		return fmt.Errorf("balance is negative")
	}
	return nil
}

func validateMutation(owner string, amount decimal.Decimal) (string, decimal.Decimal, error) {
	owner = domain.NormalizeEmail(owner)
	if owner == "" {
		return "", decimal.Zero, domain.ValidationError{Field: "owner", Msg: "required"}
	}
	amount, err := ValidateAmount(amount)
	if err != nil {
		return "", decimal.Zero, err
	}
	return owner, amount, nil
}

// ValidateAmount accepts positive amounts in whole cents and returns them
// with a two-place representation. Sub-cent amounts are refused, never
// rounded.
func ValidateAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, domain.ValidationError{Field: "amount", Msg: "must be greater than 0"}
	}
	cents := utils.Round2(amount)
	if !cents.Equal(amount) {
		return decimal.Zero, domain.ValidationError{Field: "amount", Msg: "must not have more than two decimal places"}
	}
	return cents, nil
}

func (w *WalletLedger) newID() string {
	if w.NewID != nil {
		return w.NewID()
	}
	return uuid.NewString()
}

func copyMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func cloneSnapshot(s models.WalletSnapshot) models.WalletSnapshot { return s.Clone() }

func (w *WalletLedger) log() *zap.Logger { return utils.OrNop(w.Logger) }
