package repositories

import (
	"context"
	"database/sql"
	"fmt"

	intconfig "campusride/internal/config"
	intdb "campusride/internal/db"
)

// MySQLStore persists the three ledgers in MySQL. It satisfies WalletStore,
// BookingStore and ReservationStore over one connection pool.
type MySQLStore struct {
	DB *sql.DB
}

func (r MySQLStore) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

var schema = []struct {
	table string
	ddl   string
}{
	{"wallets", `
CREATE TABLE IF NOT EXISTS wallets (
	owner VARCHAR(255) NOT NULL PRIMARY KEY,
	balance DECIMAL(14,2) NOT NULL DEFAULT 0,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"wallet_transactions", `
CREATE TABLE IF NOT EXISTS wallet_transactions (
	seq BIGINT AUTO_INCREMENT PRIMARY KEY,
	id VARCHAR(64) NOT NULL,
	owner VARCHAR(255) NOT NULL,
	type VARCHAR(16) NOT NULL,
	amount DECIMAL(14,2) NOT NULL,
	description VARCHAR(255) NOT NULL DEFAULT '',
	created_at DATETIME(6) NOT NULL,
	balance_after DECIMAL(14,2) NOT NULL,
	idempotency_key VARCHAR(128) NULL,
	metadata TEXT NULL,
	UNIQUE KEY uniq_txn_id (id),
	KEY idx_owner_key (owner, idempotency_key)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"bookings", `
CREATE TABLE IF NOT EXISTS bookings (
	id VARCHAR(64) NOT NULL PRIMARY KEY,
	ride_id VARCHAR(64) NOT NULL,
	passenger_email VARCHAR(255) NOT NULL,
	owner_email VARCHAR(255) NOT NULL DEFAULT '',
	status VARCHAR(16) NOT NULL,
	paid TINYINT(1) NOT NULL DEFAULT 0,
	payment_method VARCHAR(16) NOT NULL DEFAULT 'none',
	payment_status VARCHAR(16) NOT NULL DEFAULT 'unpaid',
	amount DECIMAL(14,2) NOT NULL,
	amount_paid DECIMAL(14,2) NULL,
	price_paid DECIMAL(14,2) NULL,
	created_at DATETIME(6) NOT NULL,
	accepted_at DATETIME(6) NULL,
	paid_at DATETIME(6) NULL,
	depart VARCHAR(255) NOT NULL DEFAULT '',
	destination VARCHAR(255) NOT NULL DEFAULT '',
	departure_at DATETIME(6) NULL,
	meeting_point VARCHAR(255) NOT NULL DEFAULT '',
	meeting_point_address VARCHAR(255) NOT NULL DEFAULT '',
	meeting_point_lat DOUBLE NULL,
	meeting_point_lng DOUBLE NULL,
	plate VARCHAR(32) NOT NULL DEFAULT '',
	driver_plate VARCHAR(32) NOT NULL DEFAULT '',
	masked_plate VARCHAR(32) NOT NULL DEFAULT '',
	KEY idx_passenger (passenger_email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"reservation_requests", `
CREATE TABLE IF NOT EXISTS reservation_requests (
	id VARCHAR(64) NOT NULL PRIMARY KEY,
	ride_id VARCHAR(64) NOT NULL,
	passenger_email VARCHAR(255) NOT NULL,
	status VARCHAR(16) NOT NULL,
	note VARCHAR(500) NOT NULL DEFAULT '',
	created_at DATETIME(6) NOT NULL,
	KEY idx_passenger_ride (passenger_email, ride_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
}

// EnsureSchema creates any missing table.
func (r MySQLStore) EnsureSchema(ctx context.Context) error {
	db := r.db()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	for _, t := range schema {
		if intdb.HasTable(ctx, db, t.table) {
			continue
		}
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.table, err)
		}
	}
	return nil
}
