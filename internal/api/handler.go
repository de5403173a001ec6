// Package api serves the basket reconciliation HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/mtlprog/basket/internal/adjust"
	"github.com/mtlprog/basket/internal/basket"
	"github.com/mtlprog/basket/internal/domain"
	"github.com/mtlprog/basket/internal/journal"
	"github.com/mtlprog/basket/internal/operator"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// Handler provides HTTP endpoints for basket reconciliation.
type Handler struct {
	store     basket.Store
	module    *adjust.Module
	operators *operator.Registry
	journal   *journal.Service
}

// NewHandler creates a new API handler.
func NewHandler(store basket.Store, module *adjust.Module, operators *operator.Registry, j *journal.Service) *Handler {
	return &Handler{store: store, module: module, operators: operators, journal: j}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type basketView struct {
	Address     string `json:"address"`
	Manager     string `json:"manager"`
	TotalSupply string `json:"totalSupply"`
	ModuleState string `json:"moduleState"`
}

type unitView struct {
	Component      string `json:"component"`
	Balance        string `json:"balance"`
	CurrentUnit    string `json:"currentUnit"`
	CalculatedUnit string `json:"calculatedUnit"`
	Drift          string `json:"drift"`
	Pending        bool   `json:"pending"`
}

type unitsResponse struct {
	Basket      string     `json:"basket"`
	TotalSupply string     `json:"totalSupply"`
	Components  []unitView `json:"components"`
}

type eventView struct {
	Basket       string `json:"basket"`
	Component    string `json:"component"`
	Balance      string `json:"balance"`
	PreviousUnit string `json:"previousUnit"`
	NewUnit      string `json:"newUnit"`
}

type adjustResponse struct {
	Basket   string      `json:"basket"`
	Adjusted []eventView `json:"adjusted"`
}

type recordView struct {
	ID           int64     `json:"id"`
	BatchID      string    `json:"batchId"`
	Component    string    `json:"component"`
	Balance      string    `json:"balance"`
	PreviousUnit string    `json:"previousUnit"`
	NewUnit      string    `json:"newUnit"`
	CreatedAt    time.Time `json:"createdAt"`
}

type adjustRequest struct {
	Caller     string   `json:"caller"`
	Components []string `json:"components"`
	Units      []string `json:"units"`
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type operatorRequest struct {
	Caller   string `json:"caller"`
	Operator string `json:"operator"`
}

type operatorsResponse struct {
	Owner     string   `json:"owner"`
	Operators []string `json:"operators"`
}

// ListBaskets handles GET /api/v1/baskets.
func (h *Handler) ListBaskets(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.store.List(r.Context())
	if err != nil {
		writeFailure(w, "list baskets", err)
		return
	}

	views := make([]basketView, 0, len(addrs))
	for _, addr := range addrs {
		v, err := h.basketView(r, addr)
		if err != nil {
			writeFailure(w, "list baskets", err)
			return
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) basketView(r *http.Request, addr common.Address) (basketView, error) {
	ctx := r.Context()
	b, err := h.store.Get(ctx, addr)
	if err != nil {
		return basketView{}, err
	}
	manager, err := b.Manager(ctx)
	if err != nil {
		return basketView{}, err
	}
	supply, err := b.TotalSupply(ctx)
	if err != nil {
		return basketView{}, err
	}
	state, err := b.ModuleState(ctx, h.module.Address())
	if err != nil {
		return basketView{}, err
	}
	return basketView{
		Address:     addr.Hex(),
		Manager:     manager.Hex(),
		TotalSupply: domain.FormatAmount(supply),
		ModuleState: string(state),
	}, nil
}

// GetUnits handles GET /api/v1/baskets/{basket}/units.
// Without component parameters every registered component is previewed.
func (h *Handler) GetUnits(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookupBasket(w, r)
	if !ok {
		return
	}

	components, err := parseAddresses(r.URL.Query()["component"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(components) == 0 {
		if components, err = b.Components(r.Context()); err != nil {
			writeFailure(w, "preview units", err)
			return
		}
	}

	supply, snaps, err := h.module.CalculateDefaultPositionUnits(r.Context(), b, components)
	if err != nil {
		writeFailure(w, "preview units", err)
		return
	}

	writeJSON(w, http.StatusOK, unitsResponse{
		Basket:      b.Address().Hex(),
		TotalSupply: domain.FormatAmount(supply),
		Components: lo.Map(snaps, func(s domain.ComponentSnapshot, _ int) unitView {
			return unitView{
				Component:      s.Component.Hex(),
				Balance:        domain.FormatAmount(s.Balance),
				CurrentUnit:    domain.FormatUnit(s.CurrentRealUnit),
				CalculatedUnit: domain.FormatUnit(s.CalculatedRealUnit),
				Drift:          domain.FormatUnit(s.Drift()),
				Pending:        s.Drift().Sign() > 0,
			}
		}),
	})
}

// Adjust handles POST /api/v1/baskets/{basket}/adjust.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookupBasket(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	components, err := parseAddresses(req.Components)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	requested := make([]*big.Int, len(req.Units))
	for i, u := range req.Units {
		if requested[i], err = domain.ParseUnit(u); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("units[%d]: %v", i, err))
			return
		}
	}

	events, err := h.module.Adjust(r.Context(), b, caller, components, requested)
	if err != nil {
		writeFailure(w, "adjust", err)
		return
	}

	writeJSON(w, http.StatusOK, adjustResponse{
		Basket: b.Address().Hex(),
		Adjusted: lo.Map(events, func(e domain.UnitAdjusted, _ int) eventView {
			return eventView{
				Basket:       e.Basket.Hex(),
				Component:    e.Component.Hex(),
				Balance:      domain.FormatAmount(e.Balance),
				PreviousUnit: domain.FormatUnit(e.PreviousUnit),
				NewUnit:      domain.FormatUnit(e.NewUnit),
			}
		}),
	})
}

// Initialize handles POST /api/v1/baskets/{basket}/initialize.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookupBasket(w, r)
	if !ok {
		return
	}

	var req callerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}

	if err := h.module.Initialize(r.Context(), b, caller); err != nil {
		writeFailure(w, "initialize", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.ModuleStateInitialized)})
}

// ListAdjustments handles GET /api/v1/baskets/{basket}/adjustments.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.PathValue("basket"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "basket: "+err.Error())
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.journal.List(r.Context(), addr, limit)
	if err != nil {
		writeFailure(w, "list adjustments", err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(records, func(rec journal.Record, _ int) recordView {
		return recordView{
			ID:           rec.ID,
			BatchID:      rec.BatchID.String(),
			Component:    rec.Component.Hex(),
			Balance:      domain.FormatAmount(rec.Balance),
			PreviousUnit: domain.FormatUnit(rec.PreviousUnit),
			NewUnit:      domain.FormatUnit(rec.NewUnit),
			CreatedAt:    rec.CreatedAt,
		}
	}))
}

// ListOperators handles GET /api/v1/operators.
func (h *Handler) ListOperators(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, operatorsResponse{
		Owner:     h.operators.Owner().Hex(),
		Operators: lo.Map(h.operators.Operators(), func(a common.Address, _ int) string { return a.Hex() }),
	})
}

// AddOperator handles POST /api/v1/operators.
func (h *Handler) AddOperator(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	op, err := parseAddress(req.Operator)
	if err != nil {
		writeError(w, http.StatusBadRequest, "operator: "+err.Error())
		return
	}

	if err := h.operators.Add(caller, op); err != nil {
		writeFailure(w, "add operator", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"operator": op.Hex()})
}

// RemoveOperator handles DELETE /api/v1/operators/{address}?caller=.
func (h *Handler) RemoveOperator(w http.ResponseWriter, r *http.Request) {
	caller, err := parseAddress(r.URL.Query().Get("caller"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "caller: "+err.Error())
		return
	}
	op, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "operator: "+err.Error())
		return
	}

	if err := h.operators.Remove(caller, op); err != nil {
		writeFailure(w, "remove operator", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookupBasket(w http.ResponseWriter, r *http.Request) (basket.Basket, bool) {
	addr, err := parseAddress(r.PathValue("basket"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "basket: "+err.Error())
		return nil, false
	}
	b, err := h.store.Get(r.Context(), addr)
	if err != nil {
		writeFailure(w, "lookup basket", err)
		return nil, false
	}
	return b, true
}

// parseAddress accepts any hex address, including the zero address, so that
// zero components reach the module and fail with INVALID_COMPONENT.
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q is not a hex address", errBadRequest, s)
	}
	return common.HexToAddress(s), nil
}

func parseAddresses(ss []string) ([]common.Address, error) {
	out := make([]common.Address, len(ss))
	for i, s := range ss {
		a, err := parseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("components[%d]: %w", i, err)
		}
		out[i] = a
	}
	return out, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
