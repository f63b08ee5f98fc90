package store

import (
	"database/sql"
	"strings"
)

// nullString converts a Go string to sql.NullString. Blank → NULL.
func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// returning renders a RETURNING clause for cols.
func returning(cols []string) string {
	return "RETURNING " + strings.Join(cols, ", ")
}

// setString adds col to set when v is non-nil.
func setString(set map[string]any, col string, v *string) {
	if v != nil {
		set[col] = strings.TrimSpace(*v)
	}
}

// setNullString is setString for nullable columns; a blank value stores NULL.
func setNullString(set map[string]any, col string, v *string) {
	if v != nil {
		set[col] = nullString(*v)
	}
}
