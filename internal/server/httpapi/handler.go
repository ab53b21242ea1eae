package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/akulikov/stashkeeper/internal/common"
	"github.com/akulikov/stashkeeper/internal/server/entries"
	"github.com/gorilla/mux"
)

type saveRequest struct {
	Owner string `json:"owner"`
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Data  string `json:"data"`
}

type saveResponse struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type listItem struct {
	ID        string    `json:"id"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type listResponse struct {
	Items      []listItem `json:"items"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalCount int64      `json:"totalCount"`
	TotalPages int        `json:"totalPages"`
	HasNext    bool       `json:"hasNext"`
	HasPrev    bool       `json:"hasPrev"`
}

type statsResponse struct {
	Entries    int64 `json:"entries"`
	Owners     int64 `json:"owners"`
	TotalBytes int64 `json:"totalBytes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto HTTP statuses. Validation
// failures carry their message; anything else stays generic.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidCategory), errors.Is(err, common.ErrEmptyPayload):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	default:
		s.logger.Error(r.Context(), err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {

	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	res, err := s.entries.Save(r.Context(), []byte(req.Owner), req.Type, req.ID, []byte(req.Data))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, saveResponse{
		ID:        res.ExternalID,
		Key:       res.Key,
		Size:      res.SizeBytes,
		ExpiresAt: res.ExpiresAt,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {

	q := r.URL.Query()
	owner := q.Get("owner")
	category := q.Get("type")

	page := 1
	if p := q.Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid page"})
			return
		}
		page = parsed
	}

	result, err := s.entries.List(r.Context(), []byte(owner), category, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.toListResponse(result))
}

func (s *Server) toListResponse(page *entries.EntryPage) listResponse {
	items := make([]listItem, 0, len(page.Items))
	for _, it := range page.Items {
		items = append(items, listItem{
			ID:        it.ExternalID,
			Size:      it.SizeBytes,
			CreatedAt: it.CreatedAt,
			ExpiresAt: it.CreatedAt.Add(s.entries.TTL()),
		})
	}
	return listResponse{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
		HasNext:    page.HasNext,
		HasPrev:    page.HasPrev,
	}
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {

	id := mux.Vars(r)["id"]

	entry, err := s.entries.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(entry.Payload)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {

	stats, err := s.entries.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Entries:    stats.EntryCount,
		Owners:     stats.OwnerCount,
		TotalBytes: stats.TotalBytes,
	})
}
