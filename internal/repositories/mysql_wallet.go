package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	intdb "campusride/internal/db"
	"campusride/internal/domain/models"

	"github.com/shopspring/decimal"
)

const txnColumns = `id, type, amount, description, created_at, balance_after, COALESCE(idempotency_key,''), COALESCE(metadata,'')`

func (r MySQLStore) LoadWallet(ctx context.Context, owner string) (models.WalletSnapshot, error) {
	db := r.db()
	out := models.WalletSnapshot{Owner: owner, Transactions: []models.WalletTransaction{}}

	var balance decimal.Decimal
	err := db.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE owner=? LIMIT 1`, owner).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, nil
		}
		return out, fmt.Errorf("load wallet: %w", err)
	}
	out.Balance = balance

	rows, err := db.QueryContext(ctx, `SELECT `+txnColumns+` FROM wallet_transactions WHERE owner=? ORDER BY seq`, owner)
	if err != nil {
		return out, fmt.Errorf("load wallet transactions: %w", err)
	}
	defer rows.Close()
	txns, err := scanTransactions(rows)
	if err != nil {
		return out, err
	}
	out.Transactions = txns
	return out, nil
}

// AppendTransaction inserts the row and moves the balance in one SQL
// transaction so the two never disagree.
func (r MySQLStore) AppendTransaction(ctx context.Context, owner string, txn models.WalletTransaction) error {
	db := r.db()
	meta := ""
	if len(txn.Metadata) > 0 {
		b, err := json.Marshal(txn.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(b)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, owner, type, amount, description, created_at, balance_after, idempotency_key, metadata)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		txn.ID, owner, string(txn.Type), txn.Amount, txn.Description, txn.CreatedAt,
		txn.BalanceAfter, intdb.NullIfEmpty(txn.IdempotencyKey), intdb.NullIfEmpty(meta),
	); err != nil {
		if intdb.IsDuplicateKey(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (owner, balance) VALUES (?,?)
		ON DUPLICATE KEY UPDATE balance=VALUES(balance)`,
		owner, txn.BalanceAfter,
	); err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	return tx.Commit()
}

func (r MySQLStore) TransactionsByKey(ctx context.Context, owner, key string) ([]models.WalletTransaction, error) {
	if key == "" {
		return []models.WalletTransaction{}, nil
	}
	rows, err := r.db().QueryContext(ctx,
		`SELECT `+txnColumns+` FROM wallet_transactions WHERE owner=? AND idempotency_key=? ORDER BY seq`,
		owner, key)
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r MySQLStore) DeleteWallet(ctx context.Context, owner string) error {
	tx, err := r.db().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM wallet_transactions WHERE owner=?`, owner); err != nil {
		return fmt.Errorf("delete wallet transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM wallets WHERE owner=?`, owner); err != nil {
		return fmt.Errorf("delete wallet: %w", err)
	}
	return tx.Commit()
}

func scanTransactions(rows *sql.Rows) ([]models.WalletTransaction, error) {
	out := []models.WalletTransaction{}
	for rows.Next() {
		var (
			t    models.WalletTransaction
			typ  string
			meta string
		)
		if err := rows.Scan(&t.ID, &typ, &t.Amount, &t.Description, &t.CreatedAt, &t.BalanceAfter, &t.IdempotencyKey, &meta); err != nil {
			return nil, fmt.Errorf("scan wallet transaction: %w", err)
		}
		t.Type = models.TransactionType(typ)
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", t.ID, err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
