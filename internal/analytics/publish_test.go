package analytics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"assetsdb/internal/domain"
)

func TestPublisherUploadsCSV(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotBody  string
		gotCType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "unexpected", http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath, gotBody, gotCType = r.URL.Path, string(body), r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	p, err := NewPublisher(PublishOptions{
		Endpoint:        u.Host,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "exports",
		Prefix:          "assets",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	m := NewCloseMatrix([]domain.ClosePoint{
		{Date: domain.Date(2024, 6, 3), Ticker: "AAPL", Close: 194.03},
		{Date: domain.Date(2024, 6, 4), Ticker: "AAPL", Close: 194.35},
	})
	key, err := p.Publish(context.Background(), m)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if key != "assets/close_2024-06-04.csv" {
		t.Errorf("key = %q", key)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/exports/assets/close_2024-06-04.csv" {
		t.Errorf("path = %q", gotPath)
	}
	if gotCType != "text/csv" {
		t.Errorf("content type = %q", gotCType)
	}
	// Plain-HTTP uploads may arrive chunk-signed, so match the payload inside.
	if !strings.Contains(gotBody, "date,AAPL\n2024-06-03,194.03\n2024-06-04,194.35\n") {
		t.Errorf("body = %q", gotBody)
	}
}

func TestPublisherRejectsEmpty(t *testing.T) {
	if _, err := NewPublisher(PublishOptions{Endpoint: "localhost:9000"}, nil); err == nil {
		t.Error("expected error without bucket")
	}

	p, err := NewPublisher(PublishOptions{Endpoint: "localhost:9000", Bucket: "b"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Publish(context.Background(), NewCloseMatrix(nil)); err == nil {
		t.Error("expected error for empty matrix")
	}
}
