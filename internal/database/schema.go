package database

// Schema is written in the SQL subset both SQLite and MySQL accept,
// because the admin console may run against the same database from a
// separate process.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS identified_user (
    user_id BIGINT PRIMARY KEY,
    username VARCHAR(255),
    first_name VARCHAR(255),
    last_name VARCHAR(255)
);`,
	`CREATE TABLE IF NOT EXISTS allowed_users (
    user_id BIGINT PRIMARY KEY,
    username VARCHAR(255)
);`,
	`CREATE TABLE IF NOT EXISTS user_credit (
    user_id BIGINT PRIMARY KEY,
    balance DECIMAL(10,2) NOT NULL DEFAULT 0,
    images_generated INTEGER NOT NULL DEFAULT 0
);`,
}
