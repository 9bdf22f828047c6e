// Package fileserve is a client for the fileserve HTTP API.
package fileserve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shogo82148/go-sfv"

	"github.com/lynxoskar/fileServe200/internal/errutil"
)

var (
	// ErrAccessDenied is returned when the server refuses a path outside its root.
	ErrAccessDenied = errors.New("access denied")

	// ErrNotFound is returned when the requested path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPassInProgress is returned when a cleanup is requested while one is running.
	ErrPassInProgress = errors.New("cleanup pass already in progress")

	// ErrPartialWrite is returned when data was already written to the output before a
	// failure occurred, making fallback to another server unsafe.
	ErrPartialWrite = errors.New("partial write")

	// ErrAllServersFailed is returned when no server could answer a read request.
	ErrAllServersFailed = errors.New("all servers failed")
)

// HTTPStatusError is returned when a server responds with an unexpected status code.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Entry is one item of a directory listing.
type Entry struct {
	Name         string    `json:"name" yaml:"name"`
	Path         string    `json:"path" yaml:"path"`
	Size         int64     `json:"size" yaml:"size"`
	LastModified time.Time `json:"lastModified" yaml:"lastModified"`
	IsDirectory  bool      `json:"isDirectory" yaml:"isDirectory"`
}

// Listing is the content of a directory.
type Listing struct {
	Path    string  `json:"path" yaml:"path"`
	Sort    string  `json:"sort" yaml:"sort"`
	Order   string  `json:"order" yaml:"order"`
	Entries []Entry `json:"entries" yaml:"entries"`
}

// ListOptions selects the listing order. Empty fields use the server defaults.
type ListOptions struct {
	Sort  string
	Order string
}

// Stored describes an uploaded file.
type Stored struct {
	Path   string `json:"path" yaml:"path"`
	Size   int64  `json:"size" yaml:"size"`
	SHA256 string `json:"sha256" yaml:"sha256"`
}

// PlannedDeletion is a file a cleanup pass selected.
type PlannedDeletion struct {
	Path    string `json:"path" yaml:"path"`
	Size    int64  `json:"size" yaml:"size"`
	AgeDays int    `json:"ageDays" yaml:"ageDays"`
}

// CleanupPlan is the result of a dry run.
type CleanupPlan struct {
	Scanned    int               `json:"scanned" yaml:"scanned"`
	TotalBytes int64             `json:"totalBytes" yaml:"totalBytes"`
	Overage    int64             `json:"overage" yaml:"overage"`
	Age        []PlannedDeletion `json:"age" yaml:"age"`
	Size       []PlannedDeletion `json:"size" yaml:"size"`
}

// CleanupFailure is a deletion that failed during a pass.
type CleanupFailure struct {
	Path  string `json:"path" yaml:"path"`
	Phase string `json:"phase" yaml:"phase"`
	Error string `json:"error" yaml:"error"`
}

// CleanupReport is the result of a completed pass.
type CleanupReport struct {
	ID          string           `json:"id" yaml:"id"`
	Started     time.Time        `json:"started" yaml:"started"`
	Finished    time.Time        `json:"finished" yaml:"finished"`
	Scanned     int              `json:"scanned" yaml:"scanned"`
	AgeDeleted  int              `json:"ageDeleted" yaml:"ageDeleted"`
	SizeDeleted int              `json:"sizeDeleted" yaml:"sizeDeleted"`
	BytesFreed  int64            `json:"bytesFreed" yaml:"bytesFreed"`
	Failures    []CleanupFailure `json:"failures" yaml:"failures"`
}

// CleanupResult holds the Plan of a dry run or the Report of a real pass.
type CleanupResult struct {
	Plan   *CleanupPlan   `json:"plan,omitempty" yaml:"plan,omitempty"`
	Report *CleanupReport `json:"report,omitempty" yaml:"report,omitempty"`
}

// CleanupStatus is the scheduler state reported by the server.
type CleanupStatus struct {
	State    string         `json:"state" yaml:"state"`
	LastPass *CleanupReport `json:"lastPass" yaml:"lastPass"`
}

type Client struct {
	HTTP    *http.Client
	Servers []string
}

// NewClient creates a client for baseURL, which is either a single URL or a
// structured-field list of URLs ("http://a", "http://b"). Reads fall back to
// later servers; writes and cleanup go to the first one.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	servers, err := ParseServers(baseURL)
	if err != nil {
		errutil.LogMsg(err, "Failed to parse server list, using it as a single URL", "server", baseURL)
		servers = []string{strings.TrimSpace(baseURL)}
	}
	return &Client{HTTP: httpClient, Servers: servers}
}

// ParseServers decodes a list of server URLs. A bare URL is a list of one.
func ParseServers(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("no server configured")
	}
	if !strings.HasPrefix(value, `"`) {
		return []string{value}, nil
	}

	list, err := sfv.DecodeList([]string{value})
	if err != nil {
		return nil, err
	}
	var servers []string
	for _, item := range list {
		if s, ok := item.Value.(string); ok && s != "" {
			servers = append(servers, s)
		}
	}
	if len(servers) == 0 {
		return nil, errors.New("server list has no string items")
	}
	return servers, nil
}

func (c *Client) primary() string {
	if len(c.Servers) == 0 {
		return ""
	}
	return c.Servers[0]
}

func endpoint(server, prefix, p string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + prefix + strings.TrimLeft(p, "/")
	return u.String(), nil
}

// List returns the listing of the directory at p.
func (c *Client) List(ctx context.Context, p string, opts ListOptions) (*Listing, error) {
	var listing *Listing
	err := c.eachServer(func(server string) error {
		u, err := endpoint(server, "/files/", p)
		if err != nil {
			return err
		}
		q := url.Values{"format": {"json"}}
		if opts.Sort != "" {
			q.Set("sort", opts.Sort)
		}
		if opts.Order != "" {
			q.Set("order", opts.Order)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		var out Listing
		if err := c.doJSON(req, http.StatusOK, &out); err != nil {
			return err
		}
		listing = &out
		return nil
	})
	return listing, err
}

// Download writes the file at p to out and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, p string, out io.Writer) (int64, error) {
	cw := &countingWriter{Writer: out}
	err := c.eachServer(func(server string) error {
		u, err := endpoint(server, "/files/", p)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			errutil.LogMsg(resp.Body.Close(), "Failed to close response body")
		}()

		if resp.StatusCode != http.StatusOK {
			return statusError(resp)
		}
		if _, err := io.Copy(cw, resp.Body); err != nil {
			if cw.N > 0 {
				return fmt.Errorf("%w: %w", ErrPartialWrite, err)
			}
			return err
		}
		return nil
	})
	return cw.N, err
}

// Upload stores the content of r as dir/name on the first server. When sha256
// is set the server rejects content that does not match it.
func (c *Client) Upload(ctx context.Context, dir, name string, r io.Reader, sha256 string) (*Stored, error) {
	u, err := endpoint(c.primary(), "/files/", dir)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := func() error {
			if sha256 != "" {
				if err := mw.WriteField("sha256", sha256); err != nil {
					return err
				}
			}
			fw, err := mw.CreateFormFile("file", name)
			if err != nil {
				return err
			}
			if _, err := io.Copy(fw, r); err != nil {
				return err
			}
			return mw.Close()
		}()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var stored Stored
	if err := c.doJSON(req, http.StatusCreated, &stored); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &stored, nil
}

// Cleanup asks the first server to run a retention pass now. With dryRun the
// server only reports what it would delete.
func (c *Client) Cleanup(ctx context.Context, dryRun bool) (*CleanupResult, error) {
	u, err := endpoint(c.primary(), "/admin/cleanup", "")
	if err != nil {
		return nil, err
	}
	if dryRun {
		u += "?dry_run=1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}

	if dryRun {
		var plan CleanupPlan
		if err := c.doJSON(req, http.StatusOK, &plan); err != nil {
			return nil, err
		}
		return &CleanupResult{Plan: &plan}, nil
	}
	var report CleanupReport
	if err := c.doJSON(req, http.StatusOK, &report); err != nil {
		return nil, err
	}
	return &CleanupResult{Report: &report}, nil
}

// Status returns the cleanup scheduler state of the first server.
func (c *Client) Status(ctx context.Context) (*CleanupStatus, error) {
	u, err := endpoint(c.primary(), "/admin/cleanup", "")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var status CleanupStatus
	if err := c.doJSON(req, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// eachServer calls fn for each server until one succeeds. Only transport
// errors and 5xx responses move on to the next server.
func (c *Client) eachServer(fn func(server string) error) error {
	var lastErr error
	for _, server := range c.Servers {
		lastErr = fn(server)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		errutil.LogMsg(lastErr, "Failed to reach server", "server", server)
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %w", ErrAllServersFailed, lastErr)
	}
	return ErrAllServersFailed
}

func retryable(err error) bool {
	if errors.Is(err, ErrPartialWrite) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return !errors.Is(err, ErrAccessDenied) && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrPassInProgress)
}

func (c *Client) doJSON(req *http.Request, want int, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		errutil.LogMsg(resp.Body.Close(), "Failed to close response body")
	}()

	if resp.StatusCode != want {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error" yaml:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)

	switch resp.StatusCode {
	case http.StatusForbidden:
		return ErrAccessDenied
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Request.URL.Path)
	case http.StatusConflict:
		return ErrPassInProgress
	default:
		return &HTTPStatusError{StatusCode: resp.StatusCode, Message: body.Error}
	}
}

type countingWriter struct {
	Writer io.Writer
	N      int64
}

func (c *countingWriter) Write(p []byte) (n int, err error) {
	n, err = c.Writer.Write(p)
	c.N += int64(n)
	return n, err
}
