/**
 * @description
 * This file contains the HTTP handler functions for the subscription-service.
 * Handlers parse incoming requests, call the checkout and subscription logic in the
 * service layer, and translate domain errors into HTTP status codes.
 */
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/myfans/subscription-service/internal/app"
	"github.com/myfans/subscription-service/internal/domain"
)

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service *app.Service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

type validateBalanceRequest struct {
	AssetCode string         `json:"asset_code"`
	Amount    *domain.Amount `json:"amount"`
}

type confirmRequest struct {
	TxHash string `json:"tx_hash"`
}

type failRequest struct {
	Error      string `json:"error"`
	IsRejected bool   `json:"is_rejected"`
}

func (h *Handler) handleGetPlanSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetPlanSummary(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListCreatorPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListCreatorPlans(r.Context(), chi.URLParam(r, "creatorAddress"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

// handleCreateCheckout opens a checkout session for the authenticated fan.
func (h *Handler) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	fan, ok := FanFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req app.CreateCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.FanAddress = fan

	checkout, err := h.service.CreateCheckout(r.Context(), req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, checkout)
}

func (h *Handler) handleGetCheckout(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.ownedCheckout(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, checkout)
}

func (h *Handler) handleGetPriceBreakdown(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.ownedCheckout(w, r)
	if !ok {
		return
	}
	breakdown, err := h.service.GetPriceBreakdown(r.Context(), checkout.ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) handleGetTransactionPreview(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.ownedCheckout(w, r)
	if !ok {
		return
	}
	preview, err := h.service.GetTransactionPreview(r.Context(), checkout.ID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, preview)
}

// handleValidateBalance answers 200 in both outcomes. An insufficient balance is reported
// as valid=false with a shortfall.
func (h *Handler) handleValidateBalance(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.ownedCheckout(w, r)
	if !ok {
		return
	}

	var req validateBalanceRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	result, err := h.service.ValidateBalance(r.Context(), checkout.ID, req.AssetCode, req.Amount)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// handleConfirmCheckout records a signed and submitted payment for the checkout.
func (h *Handler) handleConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.ownedCheckout(w, r)
	if !ok {
		return
	}

	var req confirmRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	result, err := h.service.ConfirmSubscription(r.Context(), checkout.ID, req.TxHash)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleFailCheckout(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.ownedCheckout(w, r)
	if !ok {
		return
	}

	var req failRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	result, err := h.service.FailCheckout(r.Context(), checkout.ID, req.Error, req.IsRejected)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetWalletStatus(w http.ResponseWriter, r *http.Request) {
	fan, ok := FanFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	status, err := h.service.GetWalletStatus(r.Context(), fan)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// handleListSubscriptions lists the fan's subscriptions.
// Query params: status, sort (expiry|created), page, limit.
func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	fan, ok := FanFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := r.URL.Query()
	page, err := optionalInt(query.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid page parameter")
		return
	}
	limit, err := optionalInt(query.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit parameter")
		return
	}

	result, err := h.service.ListSubscriptions(r.Context(), app.ListSubscriptionsParams{
		FanAddress: fan,
		Status:     query.Get("status"),
		Sort:       query.Get("sort"),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	fan, ok := FanFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sub, err := h.service.GetSubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if sub.FanAddress != fan {
		respondWithError(w, r, app.ErrSubscriptionNotFound)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	fan, ok := FanFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	sub, err := h.service.CancelSubscription(r.Context(), fan, chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

// handleCheckSubscriber is the entitlement check used by content services.
func (h *Handler) handleCheckSubscriber(w http.ResponseWriter, r *http.Request) {
	fan := strings.TrimSpace(r.URL.Query().Get("fan"))
	creator := strings.TrimSpace(r.URL.Query().Get("creator"))
	if fan == "" || creator == "" {
		writeError(w, http.StatusBadRequest, "fan and creator are required")
		return
	}

	isSubscriber, err := h.service.IsSubscriber(r.Context(), fan, creator)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"is_subscriber": isSubscriber})
}

// ownedCheckout loads the checkout named in the path. Checkouts of other fans are reported
// as not found.
func (h *Handler) ownedCheckout(w http.ResponseWriter, r *http.Request) (*domain.Checkout, bool) {
	fan, ok := FanFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	checkout, err := h.service.GetCheckout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, r, err)
		return nil, false
	}
	if checkout.FanAddress != fan {
		respondWithError(w, r, app.ErrCheckoutNotFound)
		return nil, false
	}
	return checkout, true
}

func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// respondWithError maps domain errors onto HTTP status codes.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var rateErr *app.RateLimitError
	switch {
	case errors.Is(err, app.ErrPlanNotFound):
		writeError(w, http.StatusNotFound, "Plan not found")
	case errors.Is(err, app.ErrCheckoutNotFound):
		writeError(w, http.StatusNotFound, "Checkout not found")
	case errors.Is(err, app.ErrCheckoutExpired):
		writeError(w, http.StatusNotFound, "Checkout session has expired")
	case errors.Is(err, app.ErrSubscriptionNotFound):
		writeError(w, http.StatusNotFound, "Subscription not found")
	case errors.Is(err, app.ErrCheckoutAlreadyResolved):
		writeError(w, http.StatusConflict, "Checkout already resolved")
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
		writeError(w, http.StatusTooManyRequests, "Too many checkout attempts")
	case errors.Is(err, app.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("level=error component=api method=%s path=%s outcome=failed err=%v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func writeError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
