package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order by Migrate. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id          TINYINT UNSIGNED PRIMARY KEY,
		name        VARCHAR(32) NOT NULL UNIQUE
	)`,
	`INSERT IGNORE INTO roles (id, name) VALUES
		(1,'CUSTOMER'),(2,'RESTAURANT_OWNER'),(3,'DELIVERY_MAN'),
		(4,'TECHNICAL_DEPARTMENT'),(5,'COMMERCIAL_DEPARTMENT'),(6,'EXTERNAL')`,
	`CREATE TABLE IF NOT EXISTS users (
		id                  BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		mail                VARCHAR(255) NOT NULL,
		password_hash       VARCHAR(255) NOT NULL,
		role_id             TINYINT UNSIGNED NOT NULL DEFAULT 1,
		firstname           VARCHAR(128) NOT NULL DEFAULT '',
		lastname            VARCHAR(128) NOT NULL DEFAULT '',
		phone               VARCHAR(32)  NOT NULL DEFAULT '',
		address             VARCHAR(255) NOT NULL DEFAULT '',
		city                VARCHAR(128) NOT NULL DEFAULT '',
		zip_code            VARCHAR(16)  NOT NULL DEFAULT '',
		thumbnail           VARCHAR(512) NOT NULL DEFAULT '',
		sponsor_id          BIGINT UNSIGNED NULL,
		referral_code       VARCHAR(32)  NOT NULL DEFAULT '',
		refresh_token_hash  CHAR(64) NULL,
		refresh_expires_at  DATETIME NULL,
		created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_mail (mail),
		CONSTRAINT fk_users_role FOREIGN KEY (role_id) REFERENCES roles(id)
	)`,
	`CREATE TABLE IF NOT EXISTS restaurants (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		description TEXT NULL,
		image       VARCHAR(512) NOT NULL DEFAULT '',
		categories  JSON NULL,
		city        VARCHAR(128) NOT NULL DEFAULT '',
		zip_code    VARCHAR(16)  NOT NULL DEFAULT '',
		address     VARCHAR(255) NOT NULL DEFAULT '',
		latitude    DOUBLE NOT NULL DEFAULT 0,
		longitude   DOUBLE NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_restaurants_name (name)
	)`,
	`CREATE TABLE IF NOT EXISTS restaurant_owners (
		restaurant_id BIGINT UNSIGNED NOT NULL,
		user_id       BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (restaurant_id, user_id),
		CONSTRAINT fk_ro_restaurant FOREIGN KEY (restaurant_id) REFERENCES restaurants(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		kind            VARCHAR(16) NOT NULL,
		restaurant_id   BIGINT UNSIGNED NOT NULL DEFAULT 0,
		customer_id     BIGINT UNSIGNED NOT NULL DEFAULT 0,
		delivery_man_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
		state           VARCHAR(32) NOT NULL DEFAULT '',
		body            JSON NOT NULL,
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY ix_documents_kind (kind, id)
	)`,
}

// Migrate creates the tables the services need when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
