package analytics

import (
	"bytes"
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"assetsdb/internal/domain"
	"assetsdb/internal/store"
)

func TestProjectClose(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "assets.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	d1 := domain.Date(2024, 6, 3)
	d2 := domain.Date(2024, 6, 4)
	s.UpsertBars(ctx, []domain.Bar{
		{Date: d2, Ticker: "MSFT", Close: 420.25},
		{Date: d1, Ticker: "AAPL", Close: 190.5},
		{Date: d2, Ticker: "AAPL", Close: 191},
	})

	m, err := ProjectClose(ctx, s)
	if err != nil {
		t.Fatalf("ProjectClose: %v", err)
	}
	if !reflect.DeepEqual(m.Tickers, []string{"AAPL", "MSFT"}) {
		t.Errorf("Tickers = %v", m.Tickers)
	}
	if len(m.Dates) != 2 || !m.Dates[0].Equal(d1) || !m.Dates[1].Equal(d2) {
		t.Errorf("Dates = %v", m.Dates)
	}
	if v, ok := m.Value(d1, "AAPL"); !ok || v != 190.5 {
		t.Errorf("Value(d1, AAPL) = %v, %v", v, ok)
	}
	if _, ok := m.Value(d1, "MSFT"); ok {
		t.Error("MSFT on d1 should be absent")
	}
	if _, ok := m.Value(d1, "NVDA"); ok {
		t.Error("unknown ticker should be absent")
	}

	var buf bytes.Buffer
	if err := m.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "date,AAPL,MSFT\n2024-06-03,190.5,\n2024-06-04,191,420.25\n"
	if buf.String() != want {
		t.Errorf("WriteCSV =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestNewCloseMatrixEmpty(t *testing.T) {
	m := NewCloseMatrix(nil)
	if len(m.Dates) != 0 || len(m.Tickers) != 0 {
		t.Errorf("empty matrix = %+v", m)
	}
	var buf bytes.Buffer
	if err := m.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if buf.String() != "date\n" {
		t.Errorf("WriteCSV = %q", buf.String())
	}
}
