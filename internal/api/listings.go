package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/prodaja/internal/audit"
	"github.com/erazemk/prodaja/internal/auth"
	"github.com/erazemk/prodaja/internal/listing"
	"github.com/erazemk/prodaja/internal/model"
)

// DisplayTimeFormat renders listing log timestamps for people.
const DisplayTimeFormat = "02/01/2006 03:04:05 PM MST"

// ListingsHandler handles listing attempts and the audit log.
type ListingsHandler struct {
	Orchestrator *listing.Orchestrator
	Audit        audit.Log
	Location     *time.Location
	Logger       *zap.Logger
}

// overridePrice accepts an override given as a JSON string or number. The
// text is kept as sent so the resolver can reject it.
type overridePrice struct {
	value *string
}

func (o *overridePrice) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		o.value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		o.value = &s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("override_price must be a string or a number")
	}
	s = n.String()
	o.value = &s
	return nil
}

type createListingRequest struct {
	PhoneID       int64         `json:"phone_id"`
	Platform      string        `json:"platform"`
	OverridePrice overridePrice `json:"override_price"`
}

type listingLogView struct {
	model.ListingLogEntry
	CreatedAtDisplay string `json:"created_at_display"`
}

// Create handles POST /api/listings. The response carries the attempt result
// for every outcome; its status reflects the outcome.
func (h *ListingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PhoneID <= 0 {
		jsonError(w, http.StatusBadRequest, "phone_id required")
		return
	}

	platform, err := model.ParsePlatform(req.Platform)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	admin, err := auth.AdminFromClaims(GetClaims(r.Context()))
	if err != nil {
		writeError(w, h.Logger, "listing refused", err)
		return
	}

	result, err := h.Orchestrator.Execute(r.Context(), admin, listing.Request{
		PhoneID:  req.PhoneID,
		Platform: platform,
		Override: req.OverridePrice.value,
	})
	if err != nil {
		if result.AttemptID != "" {
			h.Logger.Error("listing attempt failed", zap.String("attempt_id", result.AttemptID), zap.Error(err))
			jsonResponse(w, http.StatusInternalServerError, result)
			return
		}
		writeError(w, h.Logger, "listing attempt failed", err)
		return
	}

	status := http.StatusCreated
	if !result.Success {
		status = statusFor(result.Err())
	}
	jsonResponse(w, status, result)
}

// List handles GET /api/listings.
func (h *ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter model.ListingFilter

	if v := q.Get("phone_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid phone_id")
			return
		}
		filter.PhoneID = id
	}
	if v := q.Get("platform"); v != "" {
		platform, err := model.ParsePlatform(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Platform = platform
	}
	if v := q.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid success")
			return
		}
		filter.Success = &success
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	entries, err := h.Audit.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.Logger, "failed to list listing log", err)
		return
	}

	views := make([]listingLogView, len(entries))
	for i, e := range entries {
		views[i] = listingLogView{
			ListingLogEntry:  e,
			CreatedAtDisplay: e.CreatedAt.In(h.Location).Format(DisplayTimeFormat),
		}
	}
	jsonResponse(w, http.StatusOK, views)
}
