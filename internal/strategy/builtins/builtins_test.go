package builtins

import (
	"context"
	"testing"
	"time"

	"tradesim/internal/domain"
)

func bar(symbol string, day int, close float64) domain.Bar {
	return domain.Bar{
		Symbol:    symbol,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:      close, High: close, Low: close, Close: close,
	}
}

func TestBuyHoldSignalsOncePerSymbol(t *testing.T) {
	s := NewBuyHold()
	ctx := context.Background()

	sigs, err := s.OnBar(ctx, bar("SPY", 0, 100))
	if err != nil {
		t.Fatalf("OnBar: %v", err)
	}
	if len(sigs) != 1 || sigs[0].Type != domain.SignalTypeBuy || sigs[0].TargetWeight != 1.0 {
		t.Fatalf("first bar signals = %+v, want one full-weight buy", sigs)
	}

	for day := 1; day < 5; day++ {
		sigs, err := s.OnBar(ctx, bar("SPY", day, 100+float64(day)))
		if err != nil {
			t.Fatalf("OnBar: %v", err)
		}
		if len(sigs) != 0 {
			t.Fatalf("day %d: unexpected signals %+v", day, sigs)
		}
	}

	// A different symbol gets its own entry signal.
	sigs, err = s.OnBar(ctx, bar("QQQ", 5, 300))
	if err != nil {
		t.Fatalf("OnBar: %v", err)
	}
	if len(sigs) != 1 {
		t.Errorf("new symbol should trigger an entry, got %+v", sigs)
	}
}

func TestSMACrossDetectsCrossovers(t *testing.T) {
	s, err := NewSMACross(2, 3)
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	ctx := context.Background()

	// Falling then rising closes: short SMA crosses above long SMA.
	closes := []float64{10, 9, 8, 12, 15, 14, 9, 7}
	var events []domain.SignalType
	for day, c := range closes {
		sigs, err := s.OnBar(ctx, bar("AAPL", day, c))
		if err != nil {
			t.Fatalf("OnBar day %d: %v", day, err)
		}
		for _, sig := range sigs {
			events = append(events, sig.Type)
		}
	}

	want := []domain.SignalType{domain.SignalTypeBuy, domain.SignalTypeSell}
	if len(events) != len(want) {
		t.Fatalf("signal events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestSMACrossParamValidation(t *testing.T) {
	if _, err := NewSMACross(50, 20); err == nil {
		t.Error("short >= long should be rejected")
	}
	if _, err := NewSMACrossFromParams(map[string]string{"short": "abc"}); err == nil {
		t.Error("non-numeric parameter should be rejected")
	}
	st, err := NewSMACrossFromParams(nil)
	if err != nil {
		t.Fatalf("defaults should work: %v", err)
	}
	if st.Name() != "sma-cross" {
		t.Errorf("name = %q", st.Name())
	}
}
