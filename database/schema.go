package database

import "context"

// Idempotent DDL, applied at startup the way the backend has always
// owned its schema. Components, steps and tools live as JSON documents
// on the recipe row since the API only ever reads or writes them as a
// unit; ingredient and tool catalogs stay relational so names remain
// canonical across recipes.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS user (
		id              VARCHAR(36)  NOT NULL PRIMARY KEY,
		username        VARCHAR(32)  NOT NULL,
		hashed_password VARCHAR(72)  NOT NULL,
		email           VARCHAR(127) NOT NULL,
		full_name       VARCHAR(32)  NOT NULL,
		disabled        BOOLEAN      NOT NULL DEFAULT FALSE,
		permissions     INT          NOT NULL DEFAULT 0,
		registered_at   DATETIME(6)  NOT NULL,
		UNIQUE KEY idx_user_username (username)
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_token (
		id         VARCHAR(32) NOT NULL PRIMARY KEY,
		user_id    VARCHAR(36) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		KEY idx_refresh_token_user (user_id),
		FOREIGN KEY (user_id) REFERENCES user (id)
	)`,
	`CREATE TABLE IF NOT EXISTS picture (
		id          VARCHAR(36)  NOT NULL PRIMARY KEY,
		user_id     VARCHAR(36)  NOT NULL,
		filename    VARCHAR(127) NOT NULL,
		uploaded_at DATETIME(6)  NOT NULL,
		used        BOOLEAN      NOT NULL DEFAULT FALSE,
		path        VARCHAR(255) NOT NULL,
		alt         VARCHAR(127) NOT NULL,
		height      INT          NOT NULL,
		width       INT          NOT NULL,
		KEY idx_picture_user (user_id),
		FOREIGN KEY (user_id) REFERENCES user (id)
	)`,
	`CREATE TABLE IF NOT EXISTS ingredient (
		name         VARCHAR(63) NOT NULL PRIMARY KEY,
		default_unit VARCHAR(16) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tool (
		name VARCHAR(63) NOT NULL PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS recipe (
		id           INT          NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name         VARCHAR(255) NOT NULL,
		description  TEXT         NOT NULL,
		user_id      VARCHAR(36)  NOT NULL,
		created_at   DATETIME(6)  NOT NULL,
		updated_at   DATETIME(6)  NOT NULL,
		published_at DATETIME(6)  NULL,
		rating       INT          NOT NULL DEFAULT 0,
		tags         JSON         NOT NULL,
		number       INT          NOT NULL,
		unit         VARCHAR(16)  NOT NULL,
		cover_id     VARCHAR(36)  NULL,
		components   JSON         NOT NULL,
		steps        JSON         NOT NULL,
		tools        JSON         NOT NULL,
		KEY idx_recipe_user (user_id),
		FOREIGN KEY (user_id) REFERENCES user (id),
		FOREIGN KEY (cover_id) REFERENCES picture (id)
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_book (
		id           INT          NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name         VARCHAR(127) NOT NULL,
		user_id      VARCHAR(36)  NOT NULL,
		created_at   DATETIME(6)  NOT NULL,
		updated_at   DATETIME(6)  NOT NULL,
		published_at DATETIME(6)  NULL,
		tags         JSON         NOT NULL,
		cover_id     VARCHAR(36)  NULL,
		KEY idx_recipe_book_user (user_id),
		FOREIGN KEY (user_id) REFERENCES user (id),
		FOREIGN KEY (cover_id) REFERENCES picture (id)
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_book_recipes (
		recipe_book_id INT NOT NULL,
		recipe_id      INT NOT NULL,
		PRIMARY KEY (recipe_book_id, recipe_id),
		FOREIGN KEY (recipe_book_id) REFERENCES recipe_book (id) ON DELETE CASCADE,
		FOREIGN KEY (recipe_id) REFERENCES recipe (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS recipe_pictures (
		recipe_id  INT         NOT NULL,
		picture_id VARCHAR(36) NOT NULL,
		PRIMARY KEY (recipe_id, picture_id),
		FOREIGN KEY (recipe_id) REFERENCES recipe (id) ON DELETE CASCADE,
		FOREIGN KEY (picture_id) REFERENCES picture (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS assessment (
		recipe_id INT         NOT NULL,
		user_id   VARCHAR(36) NOT NULL,
		rating    INT         NOT NULL,
		PRIMARY KEY (recipe_id, user_id),
		FOREIGN KEY (recipe_id) REFERENCES recipe (id)
	)`,
}

func (s *Store) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
