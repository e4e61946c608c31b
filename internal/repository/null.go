package repository

import (
	"database/sql"
	"time"
)

// nullString は空文字列をNULLとして扱うsql.NullStringを生成する。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullStringValue はsql.NullStringから文字列値を取り出す。NULLは空文字列になる。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullStringPtr はsql.NullStringから*stringを取り出す。NULLはnilになる。
func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// nullStringFromPtr は*stringからsql.NullStringを生成する。nilはNULLになる。
func nullStringFromPtr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

// nullTimePtr はsql.NullTimeから*time.Timeを取り出す。NULLはnilになる。
func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullTimeFromPtr は*time.Timeからsql.NullTimeを生成する。nilはNULLになる。
func nullTimeFromPtr(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}
