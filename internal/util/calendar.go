package util

import (
	"time"
)

// TradingCalendar provides trading-day awareness for the simulation clock.
// It models a weekday calendar in UTC; exchange holidays are not tracked —
// a backtest simply sees no bars on those days.
type TradingCalendar struct{}

// NewTradingCalendar creates a TradingCalendar.
func NewTradingCalendar() *TradingCalendar {
	return &TradingCalendar{}
}

// IsTradingDay reports whether t falls on a weekday.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

// SameTradingDay reports whether a and b fall on the same UTC calendar day.
// The backtest engines use this to detect day boundaries for daily risk
// tracking resets.
func (tc *TradingCalendar) SameTradingDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// NextTradingDay returns the first weekday strictly after t, at midnight UTC.
func (tc *TradingCalendar) NextTradingDay(t time.Time) time.Time {
	d := t.UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	for !tc.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
