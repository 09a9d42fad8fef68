package repository

import "strings"

// isDuplicateKey reports whether an error is a primary/unique key
// violation. Matched on message text because the sqlite and mysql
// drivers surface different error types for the same condition.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "Duplicate entry") // mysql
}
