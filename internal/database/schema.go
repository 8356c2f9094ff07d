package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schema is written once for MySQL and SQLite. SQLite only needs the
// AUTO_INCREMENT keyword removed: an INTEGER PRIMARY KEY already is the
// rowid.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS establishments (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		name VARCHAR(160) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		establishment_id INTEGER NOT NULL,
		name VARCHAR(160) NOT NULL,
		event_date VARCHAR(10) NOT NULL,
		start_time VARCHAR(8) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS table_reservations (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		event_id INTEGER NULL,
		establishment_id INTEGER NOT NULL,
		client_name VARCHAR(160) NOT NULL,
		phone VARCHAR(40) NOT NULL DEFAULT '',
		email VARCHAR(160) NOT NULL DEFAULT '',
		reservation_date VARCHAR(10) NOT NULL,
		reservation_time VARCHAR(8) NOT NULL DEFAULT '',
		table_number VARCHAR(20) NOT NULL DEFAULT '',
		area_name VARCHAR(80) NOT NULL DEFAULT '',
		number_of_people INTEGER NOT NULL DEFAULT 1,
		status VARCHAR(20) NOT NULL DEFAULT 'confirmed',
		origin VARCHAR(40) NOT NULL DEFAULT '',
		notes TEXT NULL,
		checked_in TINYINT(1) NOT NULL DEFAULT 0,
		checkin_time DATETIME NULL,
		checked_out TINYINT(1) NOT NULL DEFAULT 0,
		checkout_time DATETIME NULL
	)`,
	`CREATE TABLE IF NOT EXISTS guest_lists (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		event_id INTEGER NOT NULL,
		reservation_id INTEGER NULL,
		owner_name VARCHAR(160) NOT NULL,
		owner_phone VARCHAR(40) NOT NULL DEFAULT '',
		reservation_date VARCHAR(10) NOT NULL DEFAULT '',
		reservation_time VARCHAR(8) NOT NULL DEFAULT '',
		table_number VARCHAR(20) NOT NULL DEFAULT '',
		area_name VARCHAR(80) NOT NULL DEFAULT '',
		origin VARCHAR(40) NOT NULL DEFAULT '',
		is_valid TINYINT(1) NOT NULL DEFAULT 1,
		expires_at DATETIME NULL,
		total_guests INTEGER NOT NULL DEFAULT 0,
		owner_checked_in TINYINT(1) NOT NULL DEFAULT 0,
		owner_checkin_time DATETIME NULL,
		owner_checked_out TINYINT(1) NOT NULL DEFAULT 0,
		owner_checkout_time DATETIME NULL
	)`,
	`CREATE TABLE IF NOT EXISTS guest_list_guests (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		guest_list_id INTEGER NOT NULL,
		name VARCHAR(160) NOT NULL,
		phone VARCHAR(40) NOT NULL DEFAULT '',
		email VARCHAR(160) NOT NULL DEFAULT '',
		checked_in TINYINT(1) NOT NULL DEFAULT 0,
		checkin_time DATETIME NULL,
		checked_out TINYINT(1) NOT NULL DEFAULT 0,
		checkout_time DATETIME NULL,
		entry_fee_kind VARCHAR(24) NULL,
		entry_fee_amount DECIMAL(10,2) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS promoters (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		name VARCHAR(160) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS promoter_guests (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		event_id INTEGER NOT NULL,
		promoter_id INTEGER NOT NULL,
		name VARCHAR(160) NOT NULL,
		phone VARCHAR(40) NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL DEFAULT 'pendente',
		list_name VARCHAR(80) NOT NULL DEFAULT '',
		checkin_time DATETIME NULL,
		checkout_time DATETIME NULL,
		entry_fee_kind VARCHAR(24) NULL,
		entry_fee_amount DECIMAL(10,2) NULL,
		notes TEXT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS booth_reservations (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		event_id INTEGER NOT NULL,
		client_name VARCHAR(160) NOT NULL,
		phone VARCHAR(40) NOT NULL DEFAULT '',
		reservation_date VARCHAR(10) NOT NULL DEFAULT '',
		reservation_time VARCHAR(8) NOT NULL DEFAULT '',
		booth_name VARCHAR(40) NOT NULL DEFAULT '',
		area_name VARCHAR(80) NOT NULL DEFAULT '',
		number_of_people INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL DEFAULT 'confirmed',
		notes TEXT NULL,
		checked_in TINYINT(1) NOT NULL DEFAULT 0,
		checkin_time DATETIME NULL,
		checked_out TINYINT(1) NOT NULL DEFAULT 0,
		checkout_time DATETIME NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gift_rules (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		establishment_id INTEGER NOT NULL,
		event_id INTEGER NULL,
		description VARCHAR(160) NOT NULL,
		required_checkins INTEGER NOT NULL,
		active TINYINT(1) NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS gift_awards (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		guest_list_id INTEGER NOT NULL,
		rule_id INTEGER NOT NULL,
		awarded_at DATETIME NOT NULL,
		UNIQUE (guest_list_id, rule_id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		email VARCHAR(160) NOT NULL UNIQUE,
		password_hash VARCHAR(100) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'STAFF',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTO_INCREMENT,
		user_id INTEGER NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Migrate creates every table that does not exist yet. driver is the
// database/sql driver name the pool was opened with.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	for _, stmt := range schema {
		if driver == "sqlite3" {
			stmt = strings.ReplaceAll(stmt, " AUTO_INCREMENT", "")
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
