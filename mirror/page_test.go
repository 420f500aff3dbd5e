package mirror

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/sirupsen/logrus"
)

func compress(t *testing.T, encoding string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		_, _ = w.Write(data)
		_ = w.Close()
	case "deflate":
		w := zlib.NewWriter(&buf)
		_, _ = w.Write(data)
		_ = w.Close()
	case "br":
		w := brotli.NewWriter(&buf)
		_, _ = w.Write(data)
		_ = w.Close()
	default:
		return data
	}
	return buf.Bytes()
}

func TestDecodeContent(t *testing.T) {
	body := []byte("<html><body>hello</body></html>")
	log := discardLogger()

	tests := []struct {
		encoding string
		input    []byte
		want     []byte
	}{
		{"", body, body},
		{"identity", body, body},
		{"gzip", compress(t, "gzip", body), body},
		{"deflate", compress(t, "deflate", body), body},
		{"br", compress(t, "br", body), body},
		{"zstd", []byte("opaque"), []byte("opaque")},
		{"gzip", []byte("not gzip"), []byte("not gzip")},
	}
	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			if got := decodeContent(tt.input, tt.encoding, log); !bytes.Equal(got, tt.want) {
				t.Errorf("decodeContent(%s) = %q, want %q", tt.encoding, got, tt.want)
			}
		})
	}
}

func TestFetchPageDecodesBrotli(t *testing.T) {
	body := []byte("<p>compressed</p>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Mozilla/5.0" {
			http.Error(w, "bad agent", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Encoding", "br")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(compress(t, "br", body))
	}))
	defer srv.Close()

	page, err := fetchPage(context.Background(), srv.Client(), srv.URL, "Mozilla/5.0", discardLogger())
	if err != nil {
		t.Fatalf("fetchPage() error: %v", err)
	}
	if !bytes.Equal(page.Body, body) {
		t.Errorf("Body = %q, want %q", page.Body, body)
	}
}

func TestPageDocumentCharset(t *testing.T) {
	page := &Page{
		Body:        []byte("<html><body><p>caf\xe9</p></body></html>"),
		ContentType: "text/html; charset=iso-8859-1",
	}
	doc, err := page.Document()
	if err != nil {
		t.Fatalf("Document() error: %v", err)
	}
	if got := doc.Find("p").Text(); got != "café" {
		t.Errorf("text = %q, want café", got)
	}
}

func TestFetchPageWithRetry(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	log := logrus.New()
	log.SetOutput(bytes.NewBuffer(nil))

	t.Run("recovers from 5xx", func(t *testing.T) {
		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		page, err := fetchPageWithRetry(context.Background(), srv.Client(), srv.URL, "ua", policy, log)
		if err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if string(page.Body) != "ok" || attempts.Load() != 3 {
			t.Errorf("body %q after %d attempts", page.Body, attempts.Load())
		}
	})

	t.Run("gives up on 404", func(t *testing.T) {
		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			http.NotFound(w, r)
		}))
		defer srv.Close()

		if _, err := fetchPageWithRetry(context.Background(), srv.Client(), srv.URL, "ua", policy, log); err == nil {
			t.Fatal("expected error")
		}
		if attempts.Load() != 1 {
			t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
		}
	})

	t.Run("exhausts retries", func(t *testing.T) {
		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := fetchPageWithRetry(context.Background(), srv.Client(), srv.URL, "ua", policy, log)
		if err == nil {
			t.Fatal("expected error")
		}
		if attempts.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", attempts.Load())
		}
	})
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"429", &StatusError{Code: http.StatusTooManyRequests}, true},
		{"500", &StatusError{Code: http.StatusInternalServerError}, true},
		{"403", &StatusError{Code: http.StatusForbidden}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.err); got != tt.want {
				t.Errorf("shouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
