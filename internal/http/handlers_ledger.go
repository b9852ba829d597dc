package http

import (
	"net/http"

	"cashflow/internal/aggregate"
	"cashflow/internal/core"
	"cashflow/internal/log"
)

// transactionRequest is the body of POST /api/transactions. Installments
// above one expands the transaction into a monthly plan.
type transactionRequest struct {
	core.Transaction
	Installments int  `json:"installments,omitempty"`
	EqualSplit   bool `json:"equalSplit,omitempty"`
}

// handleListTransactions returns the ledger, narrowed to a year and origin
// when given.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, _, err := ParseFilters(r.URL.Query())
	if err != nil {
		badRequest(w, err)
		return
	}
	txs, err := s.ledger.Transactions(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if f.Year != 0 {
		origin := f.Origin
		if origin == "" {
			origin = core.OriginAll
		}
		if !origin.Valid() {
			badRequest(w, errBadQuery)
			return
		}
		txs = aggregate.Filter(txs, f.Year, origin)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Body(txs).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := DecodeJSON(r, maxJSONBody, &req); err != nil {
		badRequest(w, err)
		return
	}
	req.Description = sanitizeInput(req.Description)
	// Ids and plan metadata are assigned by the service.
	req.ID = ""
	req.Installment = nil

	if req.Installments > 1 {
		txs, err := s.ledger.CreateInstallments(r.Context(), req.Transaction, req.Installments, req.EqualSplit)
		if err != nil {
			s.fail(w, r, log.OpCreate, err)
			return
		}
		NewJSONResponse().Status(http.StatusCreated).Body(txs).Write(w)
		return
	}

	tx, err := s.ledger.CreateTransaction(r.Context(), req.Transaction)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(tx).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := DecodeJSON(r, maxJSONBody, &tx); err != nil {
		badRequest(w, err)
		return
	}
	tx.ID = r.PathValue("id")
	tx.Description = sanitizeInput(tx.Description)
	if err := s.ledger.UpdateTransaction(r.Context(), tx); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.Categories(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Body(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c core.Category
	if err := DecodeJSON(r, maxJSONBody, &c); err != nil {
		badRequest(w, err)
		return
	}
	c.ID = ""
	c.Name = sanitizeInput(c.Name)
	created, err := s.ledger.CreateCategory(r.Context(), c)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var c core.Category
	if err := DecodeJSON(r, maxJSONBody, &c); err != nil {
		badRequest(w, err)
		return
	}
	c.ID = r.PathValue("id")
	c.Name = sanitizeInput(c.Name)
	if err := s.ledger.UpdateCategory(r.Context(), c); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(c.Normalize()).Write(w)
}

// handleDeleteCategory reports how many transactions lost their category.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	cleared, err := s.ledger.DeleteCategory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Body(map[string]int{"clearedTransactions": cleared}).Write(w)
}
