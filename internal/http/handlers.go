package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/event-offer-pricing/internal/domain"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
	"github.com/robertarktes/event-offer-pricing/internal/offers"
)

// OfferService is the application surface the handlers drive.
type OfferService interface {
	Create(ctx context.Context, eventID uuid.UUID, in domain.OfferInput) (domain.Offer, error)
	Update(ctx context.Context, id uuid.UUID, in domain.OfferInput) (domain.Offer, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Toggle(ctx context.Context, id uuid.UUID) (domain.Offer, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Offer, error)
	List(ctx context.Context, eventID uuid.UUID, activeOnly bool) ([]domain.Offer, error)
	Quote(ctx context.Context, eventID uuid.UUID, req offers.QuoteRequest) (offers.Quote, error)
	CreateEvent(ctx context.Context, in offers.EventInput) (domain.Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Handlers struct {
	svc    OfferService
	logger observability.Logger
	checks map[string]ReadinessCheck
}

func NewHandlers(svc OfferService, logger observability.Logger, checks map[string]ReadinessCheck) *Handlers {
	return &Handlers{svc: svc, logger: logger, checks: checks}
}

type offerRequest struct {
	OfferType       string      `json:"offer_type"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	PriceAdjustment json.Number `json:"price_adjustment"`
	MinQuantity     *int        `json:"min_quantity"`
	MaxQuantity     *int        `json:"max_quantity"`
	GroupSize       *int        `json:"group_size"`
	IsActive        *bool       `json:"is_active"`
	ValidFrom       *time.Time  `json:"valid_from"`
	ValidUntil      *time.Time  `json:"valid_until"`
}

func (req offerRequest) input() domain.OfferInput {
	in := domain.OfferInput{
		OfferType:   req.OfferType,
		Title:       req.Title,
		Description: req.Description,
		MinQuantity: req.MinQuantity,
		MaxQuantity: req.MaxQuantity,
		GroupSize:   req.GroupSize,
		IsActive:    req.IsActive,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
	}
	if req.PriceAdjustment != "" {
		adj := req.PriceAdjustment.String()
		in.PriceAdjustment = &adj
	}
	return in
}

func (h *Handlers) ListOffers(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "eventID")
	if !ok {
		return
	}
	list, err := h.svc.List(r.Context(), eventID, r.URL.Query().Get("active") == "true")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"offers": list})
}

func (h *Handlers) CreateOffer(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "eventID")
	if !ok {
		return
	}
	var req offerRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.svc.Create(r.Context(), eventID, req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handlers) GetOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req offerRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := h.svc.Update(r.Context(), id, req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ToggleOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := h.svc.Toggle(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.pathID(w, r, "eventID")
	if !ok {
		return
	}
	var req offers.QuoteRequest
	if !decode(w, r, &req) {
		return
	}
	q, err := h.svc.Quote(r.Context(), eventID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in offers.EventInput
	if !decode(w, r, &in) {
		return
	}
	e, err := h.svc.CreateEvent(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "eventID")
	if !ok {
		return
	}
	e, err := h.svc.GetEvent(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			observability.FromContext(r.Context(), h.logger).WithField("dependency", name).Warn("not ready: ", err)
			http.Error(w, name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func (h *Handlers) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid " + param})
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed body: " + err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidOffer):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrSerializationFailure):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		observability.FromContext(r.Context(), h.logger).Error("request failed: ", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
