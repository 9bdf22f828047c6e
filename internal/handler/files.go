package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/lynxoskar/fileServe200/internal/listing"
	"github.com/lynxoskar/fileServe200/internal/scan"
	"github.com/lynxoskar/fileServe200/internal/storage"
)

const maxDigestField = 256

// ListingResponse is the JSON body of a directory listing.
type ListingResponse struct {
	Path    string `json:"path"`
	Sort    string `json:"sort"`
	Order   string `json:"order"`
	Entries []any  `json:"entries"`
}

// FilesHandler serves the /files/{path...} tree.
//
// GET on a directory returns its listing as JSON or HTML, GET on a file
// returns its content. POST stores a multipart upload in the directory.
type FilesHandler struct {
	Scanner *scan.Scanner
	Store   *storage.Local
}

func NewFilesHandler(scanner *scan.Scanner, store *storage.Local) *FilesHandler {
	return &FilesHandler{Scanner: scanner, Store: store}
}

func (h *FilesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.get(w, r, rel)
	case http.MethodPost:
		h.upload(w, r, rel)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *FilesHandler) get(w http.ResponseWriter, r *http.Request, rel string) {
	entries, err := h.Scanner.Shallow(r.Context(), rel)
	if errors.Is(err, scan.ErrNotDirectory) {
		h.serveFile(w, r, rel)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	opts := listing.ParseOptions(q.Get("sort"), q.Get("order"))
	entries = listing.Sort(entries, opts.Key, opts.Order)

	if wantsJSON(r) {
		root := h.Scanner.Root.Path()
		resp := ListingResponse{
			Path:    cleanRel(rel),
			Sort:    string(opts.Key),
			Order:   string(opts.Order),
			Entries: make([]any, 0, len(entries)),
		}
		for _, e := range entries {
			resp.Entries = append(resp.Entries, e.View(root))
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderListing(w, cleanRel(rel), opts, entries); err != nil {
		slog.Debug("Failed to render listing", "path", rel, "error", err)
	}
}

func (h *FilesHandler) serveFile(w http.ResponseWriter, r *http.Request, rel string) {
	f, info, err := h.Store.Open(rel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	slog.Debug("Serving file", "path", rel, "size", info.Size())
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// upload streams a multipart body into the store. A "sha256" field, when
// present, must come before the "file" part it applies to.
func (h *FilesHandler) upload(w http.ResponseWriter, r *http.Request, dir string) {
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, fmt.Sprintf("Expected multipart/form-data: %v", err), http.StatusBadRequest)
		return
	}

	var expected string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("Malformed multipart body: %v", err), http.StatusBadRequest)
			return
		}

		switch part.FormName() {
		case "sha256":
			b, err := io.ReadAll(io.LimitReader(part, maxDigestField))
			if err != nil {
				http.Error(w, "Failed to read sha256 field", http.StatusBadRequest)
				return
			}
			expected = strings.TrimSpace(string(b))
		case "file":
			name := part.FileName()
			if !validName(name) {
				http.Error(w, fmt.Sprintf("Invalid file name: %q", name), http.StatusBadRequest)
				return
			}
			stored, err := h.Store.Put(r.Context(), path.Join(cleanRel(dir), name), part, expected)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, stored)
			return
		}
		_ = part.Close()
	}

	http.Error(w, "Missing file field", http.StatusBadRequest)
}

func validName(name string) bool {
	switch name {
	case "", ".", "..":
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

func wantsJSON(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return strings.EqualFold(f, "json")
	}
	for _, v := range strings.Split(r.Header.Get("Accept"), ",") {
		if mt, _, err := mime.ParseMediaType(strings.TrimSpace(v)); err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}

func cleanRel(rel string) string {
	return strings.TrimPrefix(path.Clean("/"+rel), "/")
}
