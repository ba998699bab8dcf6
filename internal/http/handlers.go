package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"saldo/internal/auth"
	"saldo/internal/core"
	"saldo/internal/export"
	"saldo/internal/ledger"
	"saldo/internal/service"
)

// Wire representations. Amounts travel as decimal strings alongside the
// exact cent values.
type (
	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	loginResponse struct {
		Token string `json:"token"`
	}

	transactionRequest struct {
		Date     string `json:"date"`
		Kind     string `json:"kind"`
		Category string `json:"category"`
		Merchant string `json:"merchant"`
		Note     string `json:"note"`
		Amount   string `json:"amount"`
	}

	transactionResponse struct {
		ID          string `json:"id"`
		Date        string `json:"date"`
		Kind        string `json:"kind"`
		Category    string `json:"category"`
		Merchant    string `json:"merchant,omitempty"`
		Note        string `json:"note,omitempty"`
		Amount      string `json:"amount"`
		AmountCents int64  `json:"amount_cents"`
		CreatedAt   string `json:"created_at"`
	}

	monthBalanceResponse struct {
		Month        string `json:"month"`
		Income       string `json:"income"`
		Expense      string `json:"expense"`
		Opening      string `json:"opening"`
		Closing      string `json:"closing"`
		OpeningCents int64  `json:"opening_cents"`
		ClosingCents int64  `json:"closing_cents"`
	}

	monthReportResponse struct {
		monthBalanceResponse
		Synthesized  bool                  `json:"synthesized"`
		HasOverride  bool                  `json:"has_override"`
		Transactions []transactionResponse `json:"transactions"`
	}

	balancePointResponse struct {
		Date          string `json:"date"`
		TransactionID string `json:"transaction_id"`
		Balance       string `json:"balance"`
		BalanceCents  int64  `json:"balance_cents"`
	}

	amountRequest struct {
		Amount string `json:"amount"`
	}

	amountResponse struct {
		Amount      string `json:"amount"`
		AmountCents int64  `json:"amount_cents"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Date:        t.Date.String(),
		Kind:        string(t.Kind),
		Category:    t.Category,
		Merchant:    t.Merchant,
		Note:        t.Note,
		Amount:      t.Amount.Decimal(),
		AmountCents: t.Amount.Cents,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toMonthBalanceResponse(mb ledger.MonthlyBalance) monthBalanceResponse {
	return monthBalanceResponse{
		Month:        mb.Month.String(),
		Income:       mb.Income.Decimal(),
		Expense:      mb.Expense.Decimal(),
		Opening:      mb.Opening.Decimal(),
		Closing:      mb.Closing.Decimal(),
		OpeningCents: mb.Opening.Cents,
		ClosingCents: mb.Closing.Cents,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	owner, err := s.authenticator.Authenticate(req.Email, req.Password)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err)
		return
	}
	token, err := s.authenticator.IssueToken(owner)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	input, err := decodeTransactionInput(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	created, err := s.ledger.AddTransaction(r.Context(), owner, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateCaches(owner)
	if s.metrics != nil {
		s.metrics.TransactionsTotal.WithLabelValues("create").Inc()
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	crit, err := parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	txns, err := s.ledger.ListTransactions(r.Context(), owner, crit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	t, err := s.ledger.GetTransaction(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	input, err := decodeTransactionInput(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	updated, err := s.ledger.UpdateTransaction(r.Context(), owner, r.PathValue("id"), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateCaches(owner)
	if s.metrics != nil {
		s.metrics.TransactionsTotal.WithLabelValues("update").Inc()
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	if err := s.ledger.DeleteTransaction(r.Context(), owner, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateCaches(owner)
	if s.metrics != nil {
		s.metrics.TransactionsTotal.WithLabelValues("delete").Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	crit, err := parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	// Only the unfiltered trend is cached; filtered views are ad hoc.
	cacheable := crit.IsZero()
	if cacheable {
		if chain, ok := s.trendCache.Get(owner); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			writeTrend(w, chain)
			return
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
	}

	chain, err := s.ledger.Trend(r.Context(), owner, crit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if cacheable {
		s.trendCache.Set(owner, chain)
	}
	writeTrend(w, chain)
}

func writeTrend(w http.ResponseWriter, chain []ledger.MonthlyBalance) {
	out := make([]monthBalanceResponse, 0, len(chain))
	for _, mb := range chain {
		out = append(out, toMonthBalanceResponse(mb))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	month, err := core.ParseMonthKey(r.PathValue("month"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	crit, err := parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	report, err := s.ledger.Month(r.Context(), owner, month, crit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := monthReportResponse{
		monthBalanceResponse: toMonthBalanceResponse(report.Balance),
		Synthesized:          report.Synthesized,
		HasOverride:          report.HasOverride,
		Transactions:         make([]transactionResponse, 0, len(report.Transactions)),
	}
	for _, t := range report.Transactions {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	month, err := core.ParseMonthKey(r.PathValue("month"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	amount, err := decodeAmount(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if err := s.ledger.SetOpeningOverride(r.Context(), owner, month, amount); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateCaches(owner)
	writeJSON(w, http.StatusOK, amountResponse{Amount: amount.Decimal(), AmountCents: amount.Cents})
}

func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	month, err := core.ParseMonthKey(r.PathValue("month"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if err := s.ledger.ClearOpeningOverride(r.Context(), owner, month); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateCaches(owner)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetInitialBalance(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	amount, err := s.ledger.InitialBalance(r.Context(), owner)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: amount.Decimal(), AmountCents: amount.Cents})
}

func (s *Server) handleSetInitialBalance(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	amount, err := decodeAmount(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if err := s.ledger.SetInitialBalance(r.Context(), owner, amount); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.invalidateCaches(owner)
	writeJSON(w, http.StatusOK, amountResponse{Amount: amount.Decimal(), AmountCents: amount.Cents})
}

func (s *Server) handleCumulative(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	points, err := s.cumulativePoints(r, owner)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]balancePointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, balancePointResponse{
			Date:          p.Date.String(),
			TransactionID: p.ID,
			Balance:       p.Balance.Decimal(),
			BalanceCents:  p.Balance.Cents,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCumulativeChart(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	points, err := s.cumulativePoints(r, owner)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	png, err := s.charts.CumulativeBalance(points)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	if png == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) cumulativePoints(r *http.Request, owner string) ([]ledger.BalancePoint, error) {
	if points, ok := s.cumulativeCache.Get(owner); ok {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return points, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}
	points, err := s.ledger.Cumulative(r.Context(), owner)
	if err != nil {
		return nil, err
	}
	s.cumulativeCache.Set(owner, points)
	return points, nil
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())

	crit, err := parseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	txns, err := s.ledger.ListTransactions(r.Context(), owner, crit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	data, err := export.CSV(txns)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ledger.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func decodeTransactionInput(r *http.Request) (service.TransactionInput, error) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return service.TransactionInput{}, fmt.Errorf("invalid request body")
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		return service.TransactionInput{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", req.Date)
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return service.TransactionInput{}, fmt.Errorf("invalid amount %q", req.Amount)
	}

	return service.TransactionInput{
		Date:     date,
		Kind:     core.Kind(sanitizeInput(req.Kind)),
		Category: sanitizeInput(req.Category),
		Merchant: sanitizeInput(req.Merchant),
		Note:     sanitizeInput(req.Note),
		Amount:   core.Money{Cents: cents},
	}, nil
}

// decodeAmount reads a signed amount body, used for opening overrides
// and the initial balance which may be negative.
func decodeAmount(r *http.Request) (core.Money, error) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return core.Money{}, fmt.Errorf("invalid request body")
	}
	cents, err := core.ParseSignedCents(req.Amount)
	if err != nil {
		return core.Money{}, fmt.Errorf("invalid amount %q", req.Amount)
	}
	return core.Money{Cents: cents}, nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, core.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, err)
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyOwner):
		writeError(w, r, http.StatusBadRequest, err)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		writeError(w, r, http.StatusUnauthorized, err)
	default:
		writeError(w, r, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "status", status)
		// Do not leak internals.
		err = errors.New("internal server error")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
