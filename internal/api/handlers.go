package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/maltedev/chem-supplier-scraper/internal/history"
	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

const serviceName = "chem-supplier-scraper"

// Service is what the handlers need from the search layer.
type Service interface {
	Search(ctx context.Context, brand string, q supplier.Query) (*supplier.Result, error)
	History(ctx context.Context, brand, code string, limit int) ([]history.Snapshot, error)
	Ping(ctx context.Context) map[string]error
	Brands() []string
	TTL() time.Duration
}

type Handlers struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandlers(service Service, logger *slog.Logger) *Handlers {
	return &Handlers{
		service:  service,
		validate: validator.New(),
		logger:   logger.With("component", "api"),
	}
}

type searchParams struct {
	Q             string `validate:"required,max=200"`
	Brand         string `validate:"omitempty,max=32"`
	FirstOnly     bool
	IncludeLabels bool
}

type historyParams struct {
	Brand string `validate:"omitempty,max=32"`
	Code  string `validate:"omitempty,max=64"`
	Limit int    `validate:"gte=0,lte=500"`
}

// ErrorResponse is the body of every non-2xx JSON reply. Trace carries the
// request id so a failure can be found in the logs.
type ErrorResponse struct {
	Error string `json:"error"`
	Trace string `json:"trace,omitempty"`
}

type Descriptor struct {
	Service    string   `json:"service"`
	Endpoints  []string `json:"endpoints"`
	Suppliers  []string `json:"suppliers"`
	TTLSeconds int      `json:"ttl_seconds"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Index describes the service.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, Descriptor{
		Service: serviceName,
		Endpoints: []string{
			"GET /healthz",
			"GET /search?q=&brand=&first_only=&include_labels=",
			"GET /{brand}/search?q=&first_only=&include_labels=",
			"GET /history?brand=&code=&limit=",
		},
		Suppliers:  h.service.Brands(),
		TTLSeconds: int(h.service.TTL().Seconds()),
	})
}

// Healthz answers "ok" for liveness. With deep=true every vendor and remote
// backend is pinged.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	deep, err := parseBool(r.URL.Query().Get("deep"), false)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "deep: "+err.Error())
		return
	}

	if !deep {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
		return
	}

	resp := HealthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK
	for name, perr := range h.service.Ping(r.Context()) {
		if perr != nil {
			h.logger.Warn("dependency unreachable", "name", name, "error", perr)
			resp.Checks[name] = perr.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	h.respondJSON(w, status, resp)
}

// Search handles both /search and /{brand}/search.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	params, err := h.parseSearch(r)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Search(r.Context(), params.Brand, supplier.Query{
		Text:          params.Q,
		FirstOnly:     params.FirstOnly,
		IncludeLabels: params.IncludeLabels,
	})
	if err != nil {
		if errors.Is(err, supplier.ErrUnknownSupplier) {
			h.respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("search failed",
			"error", err,
			"brand", params.Brand,
			"q", params.Q,
			"request_id", middleware.GetReqID(r.Context()),
		)
		h.respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, res)
}

// History lists stored price snapshots.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := historyParams{
		Brand: strings.TrimSpace(q.Get("brand")),
		Code:  strings.TrimSpace(q.Get("code")),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(w, r, http.StatusBadRequest, "limit must be an integer")
			return
		}
		params.Limit = n
	}
	if err := h.validate.Struct(params); err != nil {
		h.respondError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	snaps, err := h.service.History(r.Context(), params.Brand, params.Code, params.Limit)
	switch {
	case errors.Is(err, history.ErrDisabled):
		h.respondError(w, r, http.StatusNotImplemented, err.Error())
		return
	case errors.Is(err, supplier.ErrUnknownSupplier):
		h.respondError(w, r, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to list history", "error", err)
		h.respondError(w, r, http.StatusInternalServerError, "failed to list history")
		return
	}

	if snaps == nil {
		snaps = []history.Snapshot{}
	}
	h.respondJSON(w, http.StatusOK, snaps)
}

func (h *Handlers) parseSearch(r *http.Request) (searchParams, error) {
	q := r.URL.Query()

	params := searchParams{
		Q:     strings.TrimSpace(q.Get("q")),
		Brand: strings.TrimSpace(q.Get("brand")),
	}
	if b := chi.URLParam(r, "brand"); b != "" {
		params.Brand = b
	}

	var err error
	if params.FirstOnly, err = parseBool(q.Get("first_only"), false); err != nil {
		return params, fmt.Errorf("first_only: %w", err)
	}
	if params.IncludeLabels, err = parseBool(q.Get("include_labels"), true); err != nil {
		return params, fmt.Errorf("include_labels: %w", err)
	}

	if err := h.validate.Struct(params); err != nil {
		return params, errors.New(validationMessage(err))
	}
	return params, nil
}

func parseBool(raw string, def bool) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return def, nil
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error: message,
		Trace: middleware.GetReqID(r.Context()),
	})
}
