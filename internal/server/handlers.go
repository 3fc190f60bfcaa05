package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/leapstack-labs/leapledger/internal/service"
	"github.com/leapstack-labs/leapledger/internal/state"
	"github.com/leapstack-labs/leapledger/pkg/token"
)

type handlers struct {
	svc    *service.Service
	logger *slog.Logger
}

// errorResponse is the wire form of a rejected request.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// eventResponse is the wire form of one ledger event.
type eventResponse struct {
	Kind    string `json:"kind"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Spender string `json:"spender,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
}

// resultResponse is the wire form of a committed operation.
type resultResponse struct {
	OpID   string          `json:"op_id"`
	Events []eventResponse `json:"events"`
}

func toEventResponses(events []token.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		er := eventResponse{Kind: string(e.Kind)}
		switch e.Kind {
		case token.KindTransfer:
			er.From = e.From.String()
			er.To = e.To.String()
			er.Amount = e.Amount.Dec()
		case token.KindApproval:
			er.From = e.From.String()
			er.Spender = e.Spender.String()
			er.Amount = e.Amount.Dec()
		case token.KindConfigChanged:
			er.Field = e.Field
			er.Value = e.Value
		}
		out = append(out, er)
	}
	return out
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps a ledger error to an HTTP status plus its stable code.
func (h *handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(err, token.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, token.ErrAlreadyInitialized), errors.Is(err, token.ErrNotInitialized):
		status = http.StatusConflict
	}
	h.writeJSON(w, status, errorResponse{Code: token.ErrorCode(err), Error: err.Error()})
}

func (h *handlers) writeBadRequest(w http.ResponseWriter, err error) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Error: err.Error()})
}

func (h *handlers) writeResult(w http.ResponseWriter, res *service.Result) {
	h.writeJSON(w, http.StatusOK, resultResponse{
		OpID:   res.OpID,
		Events: toEventResponses(res.Events),
	})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing amount")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

// --- queries ---

func (h *handlers) getToken(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Info())
}

func (h *handlers) getSupply(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"total_supply": h.svc.TotalSupply().Dec(),
	})
}

func (h *handlers) getBalance(w http.ResponseWriter, r *http.Request) {
	account, err := token.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"address":    account.String(),
		"balance":    h.svc.BalanceOf(account).Dec(),
		"tax_exempt": h.svc.IsTaxExempt(account),
	})
}

func (h *handlers) getAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := token.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	spender, err := token.ParseAddress(chi.URLParam(r, "spender"))
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"owner":     owner.String(),
		"spender":   spender.String(),
		"allowance": h.svc.Allowance(owner, spender).Dec(),
	})
}

func (h *handlers) getEvents(w http.ResponseWriter, r *http.Request) {
	q := state.EventQuery{}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.writeBadRequest(w, fmt.Errorf("invalid limit %q", v))
			return
		}
		q.Limit = limit
	}
	if v := r.URL.Query().Get("account"); v != "" {
		account, err := token.ParseAddress(v)
		if err != nil {
			h.writeBadRequest(w, err)
			return
		}
		q.Account = &account
	}

	entries, err := h.svc.Events(r.Context(), q)
	if err != nil {
		h.logger.Error("failed to read events", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Error: "failed to read events"})
		return
	}

	type entryResponse struct {
		Seq       int64         `json:"seq"`
		OpID      string        `json:"op_id"`
		CreatedAt time.Time     `json:"created_at"`
		Event     eventResponse `json:"event"`
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			Seq:       e.Seq,
			OpID:      e.OpID,
			CreatedAt: e.CreatedAt,
			Event:     toEventResponses([]token.Event{e.Event})[0],
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// --- mutations ---

func (h *handlers) postTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Amount  string `json:"amount"`
		Spender string `json:"spender"`
	}
	if err := decode(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	from, err := token.ParseAddress(req.From)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	to, err := token.ParseAddress(req.To)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	var res *service.Result
	if req.Spender != "" {
		spender, err := token.ParseAddress(req.Spender)
		if err != nil {
			h.writeBadRequest(w, err)
			return
		}
		res, err = h.svc.TransferFrom(r.Context(), spender, from, to, amount)
		if err != nil {
			h.writeError(w, err)
			return
		}
	} else {
		res, err = h.svc.Transfer(r.Context(), from, to, amount)
		if err != nil {
			h.writeError(w, err)
			return
		}
	}
	h.writeResult(w, res)
}

func (h *handlers) postApproval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
		Op      string `json:"op"`
	}
	if err := decode(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	owner, err := token.ParseAddress(req.Owner)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	spender, err := token.ParseAddress(req.Spender)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}

	var res *service.Result
	switch req.Op {
	case "", "set":
		res, err = h.svc.Approve(r.Context(), owner, spender, amount)
	case "increase":
		res, err = h.svc.IncreaseAllowance(r.Context(), owner, spender, amount)
	case "decrease":
		res, err = h.svc.DecreaseAllowance(r.Context(), owner, spender, amount)
	default:
		h.writeBadRequest(w, fmt.Errorf("invalid op %q: want set, increase, or decrease", req.Op))
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}

func (h *handlers) postBurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From   string `json:"from"`
		Amount string `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	from, err := token.ParseAddress(req.From)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	res, err := h.svc.Burn(r.Context(), from, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}

func (h *handlers) postTaxEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		Enabled bool   `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	caller, err := token.ParseAddress(req.Caller)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	res, err := h.svc.SetTaxEnabled(r.Context(), caller, req.Enabled)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}

func (h *handlers) postTaxFraction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   string `json:"caller"`
		Fraction uint16 `json:"fraction"`
	}
	if err := decode(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	caller, err := token.ParseAddress(req.Caller)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	res, err := h.svc.SetTaxFraction(r.Context(), caller, req.Fraction)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}

func (h *handlers) postTaxReceiver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		Address string `json:"address"`
	}
	if err := decode(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	caller, err := token.ParseAddress(req.Caller)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	account, err := token.ParseAddress(req.Address)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	res, err := h.svc.SetTaxReceiveAddress(r.Context(), caller, account)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}

func (h *handlers) postTaxExemption(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller  string `json:"caller"`
		Address string `json:"address"`
		Exempt  bool   `json:"exempt"`
	}
	if err := decode(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	caller, err := token.ParseAddress(req.Caller)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	account, err := token.ParseAddress(req.Address)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	res, err := h.svc.SetAddressTaxExempt(r.Context(), caller, account, req.Exempt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}

func (h *handlers) postOwner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   string `json:"caller"`
		NewOwner string `json:"new_owner"`
	}
	if err := decode(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	caller, err := token.ParseAddress(req.Caller)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	newOwner, err := token.ParseAddress(req.NewOwner)
	if err != nil {
		h.writeBadRequest(w, err)
		return
	}
	res, err := h.svc.TransferOwnership(r.Context(), caller, newOwner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeResult(w, res)
}
