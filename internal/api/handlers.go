package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/spf13/cast"

	"github.com/sells-group/ownership-cli/internal/assign"
	"github.com/sells-group/ownership-cli/internal/ingest"
	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/pipeline"
	"github.com/sells-group/ownership-cli/internal/resilience"
	"github.com/sells-group/ownership-cli/internal/store"
	"github.com/sells-group/ownership-cli/pkg/servicenow"
)

// client resolves credentials and builds a client, writing a 400 when a
// required field is missing.
func (s *Server) client(w http.ResponseWriter, r *http.Request, creds Credentials) (servicenow.Client, bool) {
	creds = creds.withDefaults(s.cfg.ServiceNow)
	if field := creds.missing(); field != "" {
		respondError(w, r, http.StatusBadRequest, "Missing required field: "+field)
		return nil, false
	}
	return s.newClient(creds), true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]any{
		"status":       "healthy",
		"timestamp":    s.now().UTC(),
		"service":      "CMDB ownership analyzer",
		"rules_loaded": len(s.catalog),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	hours := cast.ToInt(r.URL.Query().Get("hours"))
	if hours <= 0 {
		hours = 24
	}
	snap, err := s.collector.Collect(r.Context(), hours)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, snap)
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]any{"rules": s.catalog})
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := decode(r, &creds); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, ok := s.client(w, r, creds)
	if !ok {
		return
	}

	err := c.Ping(r.Context())
	if err == nil {
		respond(w, r, http.StatusOK, map[string]any{
			"success":   true,
			"message":   "Connection successful!",
			"timestamp": s.now().UTC(),
		})
		return
	}

	status, msg := connectionFailure(err)
	respondError(w, r, status, msg)
}

// connectionFailure translates a ping failure into a status and operator
// message.
func connectionFailure(err error) (int, string) {
	switch code := resilience.StatusCode(err); {
	case code == http.StatusUnauthorized:
		return http.StatusUnauthorized, "Authentication failed. Please check your credentials."
	case code == http.StatusForbidden:
		return http.StatusForbidden, "Access denied. User may not have required permissions."
	case code != 0:
		return http.StatusBadRequest, fmt.Sprintf("ServiceNow API error: %d", code)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return http.StatusRequestTimeout, "Connection timeout. Please check the instance URL and try again."
	}
	return http.StatusServiceUnavailable, "Cannot connect to ServiceNow instance. Please verify the URL."
}

type scanRequest struct {
	Credentials
	// Snapshot scans a posted raw export instead of fetching live.
	Snapshot *ingest.RawSnapshot `json:"snapshot,omitempty"`
	// Save defaults to true.
	Save *bool `json:"save,omitempty"`
}

type scanResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	*model.ScanResult
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	preq := pipeline.Request{
		Source: pipeline.SourceAPI,
		Raw:    req.Snapshot,
		Save:   req.Save == nil || *req.Save,
	}
	if req.Snapshot == nil {
		c, ok := s.client(w, r, req.Credentials)
		if !ok {
			return
		}
		preq.Client = c
	}

	if !s.scanMu.TryLock() {
		respondError(w, r, http.StatusConflict, "A scan is already in progress")
		return
	}
	defer s.scanMu.Unlock()

	out, err := s.pipeline.Run(r.Context(), preq)
	if err != nil {
		respondErr(w, r, eris.Wrap(err, "Scan failed"))
		return
	}
	respond(w, r, http.StatusOK, scanResponse{
		Success:    true,
		Message:    "Analysis completed successfully",
		RunID:      out.RunID,
		ScanResult: out.Result,
	})
}

func (s *Server) handleLatestScan(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestScanRun(r.Context())
	if eris.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "No scan has been saved yet")
		return
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, run)
}

func (s *Server) handleLatestScanCIs(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestScanRun(r.Context())
	if eris.Is(err, store.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "No scan has been saved yet")
		return
	}
	if err != nil {
		respondErr(w, r, err)
		return
	}

	cis, err := s.store.ScanRunCIs(r.Context(), run.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if risk := r.URL.Query().Get("risk_level"); risk != "" {
		filtered := make([]store.ScanRunCI, 0, len(cis))
		for _, ci := range cis {
			if strings.EqualFold(string(ci.RiskLevel), risk) {
				filtered = append(filtered, ci)
			}
		}
		cis = filtered
	}
	respond(w, r, http.StatusOK, map[string]any{
		"run_id":     run.ID,
		"created_at": run.CreatedAt,
		"cis":        cis,
	})
}

type assignRequest struct {
	Credentials
	CIID             string `json:"ci_id"`
	NewOwnerUsername string `json:"new_owner_username"`
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.CIID) == "" || strings.TrimSpace(req.NewOwnerUsername) == "" {
		respondError(w, r, http.StatusBadRequest, "Missing required parameters: ci_id and new_owner_username")
		return
	}
	c, ok := s.client(w, r, req.Credentials)
	if !ok {
		return
	}

	a, err := assign.NewService(c, s.store).Assign(r.Context(), req.CIID, req.NewOwnerUsername)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveAssignment(false)
	}

	respond(w, r, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "CI successfully assigned to " + a.NewOwner.DisplayName,
		"new_owner":     a.NewOwner,
		"assignment_id": a.ID,
		"assignment":    a,
	})
}

type undoRequest struct {
	Credentials
	// AssignmentID accepts a string or a number.
	AssignmentID any `json:"assignment_id"`
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	var req undoRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		id = strings.TrimSpace(cast.ToString(req.AssignmentID))
	}
	if id == "" {
		respondError(w, r, http.StatusBadRequest, "Missing required parameters: assignment_id")
		return
	}
	c, ok := s.client(w, r, req.Credentials)
	if !ok {
		return
	}

	undo, err := assign.NewService(c, s.store).Undo(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveAssignment(true)
	}

	respond(w, r, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Assignment undone; CI restored to " + ownerName(undo.NewOwner),
		"assignment": undo,
	})
}

func ownerName(o model.OwnerRef) string {
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return o.Username
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.AssignmentFilter{
		CIID:   q.Get("ci_id"),
		Limit:  max(cast.ToInt(q.Get("limit")), 0),
		Offset: max(cast.ToInt(q.Get("offset")), 0),
	}
	list, err := s.store.ListAssignments(r.Context(), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]any{
		"success": true,
		"history": list,
	})
}
