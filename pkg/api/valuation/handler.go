package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/projection"
	"dcf_valuation/pkg/core/report"
	"dcf_valuation/pkg/core/store"
	corevaluation "dcf_valuation/pkg/core/valuation"
	"dcf_valuation/pkg/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Runner values one company
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

// Handler serves valuation reports over HTTP
type Handler struct {
	runner Runner
	repo   store.ValuationRepository // optional
	log    zerolog.Logger
}

func NewHandler(runner Runner, repo store.ValuationRepository, log zerolog.Logger) *Handler {
	return &Handler{runner: runner, repo: repo, log: log}
}

type ValuationResponse struct {
	Ticker   string                         `json:"ticker"`
	Name     string                         `json:"name"`
	Strategy projection.StrategyKind        `json:"strategy"`
	RecordID string                         `json:"record_id,omitempty"`
	WACC     corevaluation.WACCResult       `json:"wacc"`
	Table    *corevaluation.DCFTable        `json:"table"`
	Result   *corevaluation.ValuationResult `json:"result"`
	Report   string                         `json:"report_markdown"`
}

// ErrorResponse names the failing input when the valuation could identify it
type ErrorResponse struct {
	Error     string `json:"error"`
	Ticker    string `json:"ticker,omitempty"`
	Statement string `json:"statement,omitempty"`
	Key       string `json:"key,omitempty"`
}

// Register mounts the handler's routes
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/valuation/report", h.HandleValuationReport)
	mux.HandleFunc("/api/valuation/latest", h.HandleLatest)
}

// HandleValuationReport runs a DCF for the posted request
func (h *Handler) HandleValuationReport(w http.ResponseWriter, r *http.Request) {
	// CORS
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.log.Warn().Err(err).Str("ticker", req.Ticker).Msg("valuation request failed")
		writeJSON(w, statusFor(err), errorResponse(err))
		return
	}

	writeJSON(w, http.StatusOK, ValuationResponse{
		Ticker:   out.Company.Ticker,
		Name:     out.Company.Profile.Name,
		Strategy: out.Strategy,
		RecordID: out.RecordID,
		WACC:     out.WACC,
		Table:    out.Table,
		Result:   out.Result,
		Report: report.Markdown(report.Valuation{
			Company: out.Company, Table: out.Table, Result: out.Result, WACC: &out.WACC,
		}),
	})
}

// HandleLatest returns the last stored run for ?ticker=
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "persistence disabled"})
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("ticker")))
	if ticker == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "ticker is required"})
		return
	}

	rec, err := h.repo.Latest(r.Context(), ticker)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Ticker: ticker})
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// statusFor maps the error taxonomy to HTTP: bad input is 4xx, upstream failures 502
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, projection.ErrUnknownStrategy),
		errors.Is(err, projection.ErrInvalidHorizon):
		return http.StatusBadRequest
	case errors.Is(err, projection.ErrStrategyNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, assumption.ErrInsufficientData),
		errors.Is(err, assumption.ErrNoDataInRange),
		errors.Is(err, models.ErrMissingLineItem),
		errors.Is(err, corevaluation.ErrNoRateAvailable),
		errors.Is(err, corevaluation.ErrInsufficientMarketHistory),
		errors.Is(err, corevaluation.ErrInvalidDiscountRate),
		errors.Is(err, corevaluation.ErrMissingShareCount):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func errorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}
	var inErr *models.InputError
	if errors.As(err, &inErr) {
		resp.Ticker = inErr.Ticker
		resp.Statement = string(inErr.Statement)
		resp.Key = string(inErr.Key)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
