package viewerapi

import (
	"encoding/json"
	"net/http"

	"github.com/bbtrace/bbtrace/internal/audit"
	"github.com/bbtrace/bbtrace/internal/viewercore"
	"github.com/bbtrace/bbtrace/internal/wire"
)

// Snapshotter is the receiver-facing dependency handleGetSnapshot reads
// from. viewercore.Receiver satisfies it.
type Snapshotter interface {
	Snapshot() viewercore.Snapshot
}

// RangeSender is the receiver-facing dependency the range-control
// endpoints write through. viewercore.CommandSender satisfies it.
type RangeSender interface {
	AddRanges(ranges []wire.AddressRange) error
	ClearRanges() error
}

// Server holds the dependencies the viewer's HTTP handlers need.
type Server struct {
	snapshot Snapshotter
	ranges   RangeSender
	audit    *audit.Logger
}

// NewServer creates a Server. audit may be nil, in which case control-plane
// events simply aren't logged (used in tests that don't care about audit).
func NewServer(snapshot Snapshotter, ranges RangeSender, auditLogger *audit.Logger) *Server {
	return &Server{snapshot: snapshot, ranges: ranges, audit: auditLogger}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot.Snapshot())
}

// rangeRequest is the JSON body accepted by POST /api/v1/ranges.
type rangeRequest struct {
	Ranges []wire.AddressRange `json:"ranges"`
}

func (s *Server) handlePostRanges(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.ranges.AddRanges(req.Ranges); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.audit != nil {
		_ = s.audit.LogRangesAdded(len(req.Ranges))
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": len(req.Ranges)})
}

func (s *Server) handleDeleteRanges(w http.ResponseWriter, r *http.Request) {
	if err := s.ranges.ClearRanges(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.audit != nil {
		_ = s.audit.LogRangesCleared()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
