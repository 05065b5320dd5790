package db

import (
	"regexp"
	"strings"

	"gorm.io/gorm"
)

var rowLockClause = regexp.MustCompile(`(?i)\s+FOR\s+UPDATE(\s+(NOWAIT|SKIP\s+LOCKED))?`)

// StripRowLocks removes FOR UPDATE clauses from raw queries for dialects
// without row-level locking. SQLite serializes writers on the database file,
// which already gives each clinic transaction exclusive access.
func StripRowLocks(conn *gorm.DB) error {
	strip := func(tx *gorm.DB) {
		if tx.Statement == nil {
			return
		}
		sql := tx.Statement.SQL.String()
		if !strings.Contains(strings.ToUpper(sql), "FOR UPDATE") {
			return
		}
		tx.Statement.SQL.Reset()
		tx.Statement.SQL.WriteString(rowLockClause.ReplaceAllString(sql, ""))
	}

	if err := conn.Callback().Query().Before("gorm:query").Register("vetsub:strip_row_locks", strip); err != nil {
		return err
	}
	return conn.Callback().Row().Before("gorm:row").Register("vetsub:strip_row_locks", strip)
}
