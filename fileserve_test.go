package fileserve

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lynxoskar/fileServe200/internal/fsroot"
	"github.com/lynxoskar/fileServe200/internal/handler"
	"github.com/lynxoskar/fileServe200/internal/retention"
	"github.com/lynxoskar/fileServe200/internal/scan"
	"github.com/lynxoskar/fileServe200/internal/storage"
)

func sha256Sum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// newBackend serves a temporary root with the real handlers.
func newBackend(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	root, err := fsroot.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	scanner := scan.New(root, nil)
	sch := retention.NewScheduler(scanner, retention.Config{MaxAgeDays: 30})
	mux := handler.Routes{
		Files:   handler.NewFilesHandler(scanner, storage.NewLocal(root)),
		Cleanup: handler.NewCleanupHandler(sch, root),
	}.Mux()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, root.Path()
}

func TestClientRoundTrip(t *testing.T) {
	ts, root := newBackend(t)
	c := NewClient(ts.URL, nil)
	ctx := t.Context()
	content := []byte("quarterly numbers")

	t.Run("Upload", func(t *testing.T) {
		stored, err := c.Upload(ctx, "reports", "q1 final.csv", bytes.NewReader(content), sha256Sum(content))
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}
		if stored.Path != "reports/q1 final.csv" || stored.SHA256 != sha256Sum(content) {
			t.Errorf("unexpected result: %+v", stored)
		}
	})

	t.Run("Upload Hash Mismatch", func(t *testing.T) {
		_, err := c.Upload(ctx, "reports", "bad.csv", bytes.NewReader(content), sha256Sum([]byte("x")))
		var se *HTTPStatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("expected 422 HTTPStatusError, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(root, "reports", "big.bin"), bytes.Repeat([]byte("x"), 500), 0644); err != nil {
			t.Fatal(err)
		}
		listing, err := c.List(ctx, "reports", ListOptions{Sort: "size", Order: "desc"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		var names []string
		for _, e := range listing.Entries {
			names = append(names, e.Name)
		}
		if !reflect.DeepEqual(names, []string{"big.bin", "q1 final.csv"}) {
			t.Errorf("unexpected listing: %v", names)
		}
		if listing.Entries[1].LastModified.IsZero() {
			t.Error("missing modification time")
		}
	})

	t.Run("Download", func(t *testing.T) {
		var out bytes.Buffer
		n, err := c.Download(ctx, "reports/q1 final.csv", &out)
		if err != nil {
			t.Fatalf("Download failed: %v", err)
		}
		if n != int64(len(content)) || out.String() != string(content) {
			t.Errorf("got %d bytes %q", n, out.String())
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		if _, err := c.Download(ctx, "nope", &bytes.Buffer{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Access Denied", func(t *testing.T) {
		outside := t.TempDir()
		if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
		if _, err := c.List(ctx, "escape", ListOptions{}); !errors.Is(err, ErrAccessDenied) {
			t.Errorf("expected ErrAccessDenied, got %v", err)
		}
	})

	t.Run("Cleanup", func(t *testing.T) {
		old := filepath.Join(root, "reports", "big.bin")
		mt := time.Now().Add(-45 * 24 * time.Hour)
		if err := os.Chtimes(old, mt, mt); err != nil {
			t.Fatal(err)
		}

		res, err := c.Cleanup(ctx, true)
		if err != nil {
			t.Fatalf("dry run failed: %v", err)
		}
		if res.Plan == nil || len(res.Plan.Age) != 1 || res.Plan.Age[0].Path != "reports/big.bin" {
			t.Fatalf("unexpected plan: %+v", res.Plan)
		}

		res, err = c.Cleanup(ctx, false)
		if err != nil {
			t.Fatalf("cleanup failed: %v", err)
		}
		if res.Report == nil || res.Report.AgeDeleted != 1 || res.Report.BytesFreed != 500 {
			t.Errorf("unexpected report: %+v", res.Report)
		}

		status, err := c.Status(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if status.State != "idle" || status.LastPass == nil || status.LastPass.ID != res.Report.ID {
			t.Errorf("unexpected status: %+v", status)
		}
	})
}

func TestClientFallback(t *testing.T) {
	content := []byte("test content")

	t.Run("Server Fail Fallback", func(t *testing.T) {
		bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer bad.Close()
		good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/files/a/b.txt" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			_, _ = w.Write(content)
		}))
		defer good.Close()

		c := NewClient(`"`+bad.URL+`", "`+good.URL+`"`, nil)
		if len(c.Servers) != 2 {
			t.Fatalf("expected 2 servers, got %v", c.Servers)
		}
		var out bytes.Buffer
		if _, err := c.Download(t.Context(), "a/b.txt", &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.String() != string(content) {
			t.Errorf("got %q, want %q", out.String(), content)
		}
	})

	t.Run("Not Found Does Not Fall Back", func(t *testing.T) {
		hits := 0
		first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer first.Close()
		second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits++
		}))
		defer second.Close()

		c := &Client{HTTP: http.DefaultClient, Servers: []string{first.URL, second.URL}}
		if _, err := c.Download(t.Context(), "x", &bytes.Buffer{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if hits != 0 {
			t.Error("second server should not be contacted after a 404")
		}
	})

	t.Run("Partial Download No Fallback", func(t *testing.T) {
		partial := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", "100")
			_, _ = w.Write([]byte("partial"))
		}))
		defer partial.Close()
		good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("should not fall back after a partial write")
		}))
		defer good.Close()

		c := &Client{HTTP: http.DefaultClient, Servers: []string{partial.URL, good.URL}}
		var out bytes.Buffer
		_, err := c.Download(t.Context(), "x", &out)
		if !errors.Is(err, ErrPartialWrite) {
			t.Errorf("expected ErrPartialWrite, got %v", err)
		}
		if out.String() != "partial" {
			t.Errorf("got %q, want %q", out.String(), "partial")
		}
	})

	t.Run("All Servers Failed", func(t *testing.T) {
		c := &Client{HTTP: http.DefaultClient, Servers: []string{"http://127.0.0.1:1"}}
		if _, err := c.List(t.Context(), "", ListOptions{}); !errors.Is(err, ErrAllServersFailed) {
			t.Errorf("expected ErrAllServersFailed, got %v", err)
		}
	})

	t.Run("Conflict", func(t *testing.T) {
		busy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))
		defer busy.Close()
		if _, err := NewClient(busy.URL, nil).Cleanup(t.Context(), false); !errors.Is(err, ErrPassInProgress) {
			t.Errorf("expected ErrPassInProgress, got %v", err)
		}
	})
}

func TestParseServers(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{"bare url", "http://localhost:8080", []string{"http://localhost:8080"}, false},
		{"list", `"http://a:1", "http://b:2"`, []string{"http://a:1", "http://b:2"}, false},
		{"empty", "  ", nil, true},
		{"malformed list", `"http://a`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServers(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseServers() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPStatusError(t *testing.T) {
	err := &HTTPStatusError{StatusCode: 500, Message: "boom"}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
