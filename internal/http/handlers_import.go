package http

import (
	"net/http"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

// commitRequest is the body of POST /api/import/commit: the rows of a
// preview, possibly edited by the caller.
type commitRequest struct {
	Rows   []core.ImportedRow `json:"rows"`
	Source string             `json:"source,omitempty"`
}

// handleImportPreview parses an uploaded CSV or XLSX budget and flags rows
// already in the ledger. Parse failures are reported in the body with
// success false and status 200.
func (s *Server) handleImportPreview(w http.ResponseWriter, r *http.Request) {
	data, filename, err := ReadImportUpload(w, r, s.importLimit)
	if err != nil {
		badRequest(w, err)
		return
	}
	res, err := s.imports.Preview(r.Context(), data, filename)
	if err != nil {
		s.fail(w, r, log.OpPreview, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}

func (s *Server) handleImportCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := DecodeJSON(r, s.importLimit, &req); err != nil {
		badRequest(w, err)
		return
	}
	source := sanitizeInput(req.Source)
	if source == "" {
		source = "api"
	}
	res, err := s.imports.Commit(r.Context(), req.Rows, source)
	if err != nil {
		s.fail(w, r, log.OpImport, err)
		return
	}
	NewJSONResponse().Body(res).Write(w)
}
