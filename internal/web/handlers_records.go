package web

import (
	"net/http"

	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "page", 1)
	pageSize := parseIntParam(r, "pageSize", core.DefaultPageSize)

	res, err := s.service.Records.List(r.Context(), chi.URLParam(r, "id"), page, pageSize)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearchRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.service.Records.Search(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleAddRecord takes a flat JSON object of field name to value.
func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := decodeJSON(w, r, &fields); err != nil {
		badRequest(w, r, "body", "invalid record: "+err.Error())
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	id, err := s.service.Records.Add(ctx, chi.URLParam(r, "id"), fields)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.Records.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleUpdateRecord merges the supplied fields; absent fields keep their value.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var partial map[string]string
	if err := decodeJSON(w, r, &partial); err != nil {
		badRequest(w, r, "body", "invalid record: "+err.Error())
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	rec, err := s.service.Records.Update(ctx, chi.URLParam(r, "id"), partial)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.Records.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
