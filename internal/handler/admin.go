package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/lynxoskar/fileServe200/internal/fsroot"
	"github.com/lynxoskar/fileServe200/internal/retention"
)

// Cleaner is the part of retention.Scheduler the admin endpoints drive.
type Cleaner interface {
	RunPass(ctx context.Context) (retention.Report, error)
	DryRun(ctx context.Context) (retention.Plan, error)
	State() retention.State
	LastReport() (retention.Report, bool)
}

// CleanupHandler serves /admin/cleanup.
type CleanupHandler struct {
	Cleaner Cleaner
	Root    fsroot.Root
}

func NewCleanupHandler(c Cleaner, root fsroot.Root) *CleanupHandler {
	return &CleanupHandler{Cleaner: c, Root: root}
}

// CandidateResponse is one planned deletion.
type CandidateResponse struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	AgeDays int    `json:"ageDays"`
}

// PlanResponse is the body of a dry run.
type PlanResponse struct {
	DryRun     bool                `json:"dryRun"`
	Scanned    int                 `json:"scanned"`
	TotalBytes int64               `json:"totalBytes"`
	Overage    int64               `json:"overage"`
	Age        []CandidateResponse `json:"age"`
	Size       []CandidateResponse `json:"size"`
}

// FailureResponse is a planned deletion that failed.
type FailureResponse struct {
	Path  string `json:"path"`
	Phase string `json:"phase"`
	Error string `json:"error"`
}

// ReportResponse is the body of a completed pass.
type ReportResponse struct {
	ID          string            `json:"id"`
	Started     time.Time         `json:"started"`
	Finished    time.Time         `json:"finished"`
	Scanned     int               `json:"scanned"`
	AgeDeleted  int               `json:"ageDeleted"`
	SizeDeleted int               `json:"sizeDeleted"`
	BytesFreed  int64             `json:"bytesFreed"`
	Failures    []FailureResponse `json:"failures"`
}

// StatusResponse is the body of GET /admin/cleanup.
type StatusResponse struct {
	State    string          `json:"state"`
	LastPass *ReportResponse `json:"lastPass"`
}

func (h *CleanupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		resp := StatusResponse{State: h.Cleaner.State().String()}
		if last, ok := h.Cleaner.LastReport(); ok {
			rr := h.report(last)
			resp.LastPass = &rr
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		dry, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
		if dry {
			plan, err := h.Cleaner.DryRun(r.Context())
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, h.plan(plan))
			return
		}
		report, err := h.Cleaner.RunPass(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, h.report(report))
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CleanupHandler) candidates(cs []retention.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, CandidateResponse{
			Path:    h.rel(c.Path()),
			Size:    c.Size(),
			AgeDays: int(c.Age / (24 * time.Hour)),
		})
	}
	return out
}

func (h *CleanupHandler) plan(p retention.Plan) PlanResponse {
	return PlanResponse{
		DryRun:     true,
		Scanned:    p.Scanned,
		TotalBytes: p.TotalBytes,
		Overage:    p.Overage,
		Age:        h.candidates(p.Age),
		Size:       h.candidates(p.Size),
	}
}

func (h *CleanupHandler) report(r retention.Report) ReportResponse {
	resp := ReportResponse{
		ID:          r.ID,
		Started:     r.Started,
		Finished:    r.Finished,
		Scanned:     r.Plan.Scanned,
		AgeDeleted:  r.AgeDeleted,
		SizeDeleted: r.SizeDeleted,
		BytesFreed:  r.BytesFreed,
		Failures:    make([]FailureResponse, 0, len(r.Failures)),
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, FailureResponse{
			Path:  h.rel(f.Path),
			Phase: string(f.Phase),
			Error: f.Err.Error(),
		})
	}
	return resp
}

func (h *CleanupHandler) rel(abs string) string {
	return relTo(h.Root.Path(), abs)
}
