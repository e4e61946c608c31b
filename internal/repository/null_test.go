package repository

import (
	"database/sql"
	"testing"
	"time"
)

func TestNullString(t *testing.T) {
	if ns := nullString("stockx"); !ns.Valid || ns.String != "stockx" {
		t.Errorf("nullString(\"stockx\") = %+v, want Valid=true String=stockx", ns)
	}
	if ns := nullString(""); ns.Valid {
		t.Errorf("nullString(\"\") should be NULL, got %+v", ns)
	}
}

func TestNullStringValue(t *testing.T) {
	if v := nullStringValue(sql.NullString{String: "DD1391-100", Valid: true}); v != "DD1391-100" {
		t.Errorf("nullStringValue = %q, want DD1391-100", v)
	}
	if v := nullStringValue(sql.NullString{}); v != "" {
		t.Errorf("NULLからは空文字列になるべき: %q", v)
	}
}

func TestNullStringPtrRoundTrip(t *testing.T) {
	// nil → NULL → nil
	if ns := nullStringFromPtr(nil); ns.Valid {
		t.Errorf("nullStringFromPtr(nil) should be NULL, got %+v", ns)
	}
	if p := nullStringPtr(sql.NullString{}); p != nil {
		t.Errorf("nullStringPtr(NULL) should be nil, got %v", *p)
	}

	// 値あり → Valid → 同じ値
	s := "Jordan"
	ns := nullStringFromPtr(&s)
	if !ns.Valid || ns.String != "Jordan" {
		t.Errorf("nullStringFromPtr(&s) = %+v", ns)
	}
	p := nullStringPtr(ns)
	if p == nil || *p != "Jordan" {
		t.Errorf("nullStringPtr = %v, want Jordan", p)
	}
}

func TestNullTimePtrRoundTrip(t *testing.T) {
	if nt := nullTimeFromPtr(nil); nt.Valid {
		t.Errorf("nullTimeFromPtr(nil) should be NULL, got %+v", nt)
	}
	if p := nullTimePtr(sql.NullTime{}); p != nil {
		t.Errorf("nullTimePtr(NULL) should be nil, got %v", *p)
	}

	ts := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	nt := nullTimeFromPtr(&ts)
	if !nt.Valid || !nt.Time.Equal(ts) {
		t.Errorf("nullTimeFromPtr = %+v", nt)
	}
	p := nullTimePtr(nt)
	if p == nil || !p.Equal(ts) {
		t.Errorf("nullTimePtr = %v, want %v", p, ts)
	}
}
