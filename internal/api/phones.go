package api

import (
	"database/sql"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/prodaja/internal/imaging"
	"github.com/erazemk/prodaja/internal/model"
	"github.com/erazemk/prodaja/internal/pricing"
	"github.com/erazemk/prodaja/internal/store"
)

// PhonesHandler handles catalog endpoints.
type PhonesHandler struct {
	DB       *sql.DB
	Resolver *pricing.Resolver
	Logger   *zap.Logger
}

type phoneRequest struct {
	ModelName     string          `json:"model_name"`
	Brand         string          `json:"brand"`
	Condition     string          `json:"condition"`
	Storage       string          `json:"storage"`
	Color         string          `json:"color"`
	BasePrice     decimal.Decimal `json:"base_price"`
	StockQuantity int             `json:"stock_quantity"`
	Discontinued  bool            `json:"discontinued"`
	Tags          []string        `json:"tags"`
}

// Validate trims the text fields and checks the request.
func (req *phoneRequest) Validate() error {
	req.ModelName = strings.TrimSpace(req.ModelName)
	req.Brand = strings.TrimSpace(req.Brand)
	req.Condition = strings.TrimSpace(req.Condition)
	req.Storage = strings.TrimSpace(req.Storage)
	req.Color = strings.TrimSpace(req.Color)

	return validation.ValidateStruct(req,
		validation.Field(&req.ModelName, validation.Required, validation.RuneLength(0, 200)),
		validation.Field(&req.Brand, validation.Required, validation.RuneLength(0, 100)),
		validation.Field(&req.Condition, validation.Required, validation.By(func(v any) error {
			_, err := model.ParseCondition(v.(string))
			return err
		})),
		validation.Field(&req.Storage, validation.RuneLength(0, 50)),
		validation.Field(&req.Color, validation.RuneLength(0, 50)),
		validation.Field(&req.BasePrice, validation.By(func(v any) error {
			return model.CheckAmount(v.(decimal.Decimal))
		})),
		validation.Field(&req.StockQuantity, validation.Min(0)),
	)
}

func (req *phoneRequest) phone() model.Phone {
	condition, _ := model.ParseCondition(req.Condition)
	return model.Phone{
		ModelName:     req.ModelName,
		Brand:         req.Brand,
		Condition:     condition,
		Storage:       req.Storage,
		Color:         req.Color,
		BasePrice:     req.BasePrice,
		StockQuantity: req.StockQuantity,
		Discontinued:  req.Discontinued,
		Tags:          model.NormalizeTags(req.Tags),
	}
}

type stockRequest struct {
	Delta int `json:"delta"`
}

type priceResponse struct {
	PhoneID  int64          `json:"phone_id"`
	Platform model.Platform `json:"platform"`
	Label    string         `json:"label"`
	pricing.Quote
}

// List handles GET /api/phones.
func (h *PhonesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.PhoneFilter{Query: r.URL.Query().Get("q")}
	if c := r.URL.Query().Get("condition"); c != "" {
		condition, err := model.ParseCondition(c)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Condition = condition
	}

	phones, err := store.ListPhones(r.Context(), h.DB, filter)
	if err != nil {
		writeError(w, h.Logger, "failed to list phones", err)
		return
	}
	if phones == nil {
		phones = []model.Phone{}
	}
	jsonResponse(w, http.StatusOK, phones)
}

// Create handles POST /api/phones.
func (h *PhonesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	phone, err := store.CreatePhone(r.Context(), h.DB, req.phone())
	if err != nil {
		writeError(w, h.Logger, "failed to create phone", err)
		return
	}

	h.Logger.Info("phone created",
		zap.String("user", GetClaims(r.Context()).Username),
		zap.Int64("phone_id", phone.ID),
		zap.String("model", phone.ModelName),
	)
	jsonResponse(w, http.StatusCreated, phone)
}

// Get handles GET /api/phones/{id}.
func (h *PhonesHandler) Get(w http.ResponseWriter, r *http.Request) {
	phone, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, phone)
}

// Update handles PUT /api/phones/{id}.
func (h *PhonesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid phone id")
		return
	}

	var req phoneRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := req.phone()
	p.ID = id
	if err := store.UpdatePhone(r.Context(), h.DB, p); err != nil {
		writeError(w, h.Logger, "failed to update phone", err)
		return
	}

	h.Get(w, r)
}

// Delete handles DELETE /api/phones/{id}.
func (h *PhonesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid phone id")
		return
	}

	if err := store.DeletePhone(r.Context(), h.DB, id); err != nil {
		writeError(w, h.Logger, "failed to delete phone", err)
		return
	}

	h.Logger.Info("phone deleted", zap.String("user", GetClaims(r.Context()).Username), zap.Int64("phone_id", id))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "phone deleted"})
}

// AdjustStock handles POST /api/phones/{id}/stock. Negative deltas floor the
// quantity at zero.
func (h *PhonesHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid phone id")
		return
	}

	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	qty, err := store.AdjustStock(r.Context(), h.DB, id, req.Delta)
	if err != nil {
		writeError(w, h.Logger, "failed to adjust stock", err)
		return
	}

	h.Logger.Info("stock adjusted",
		zap.String("user", GetClaims(r.Context()).Username),
		zap.Int64("phone_id", id),
		zap.Int("delta", req.Delta),
		zap.Int("stock_quantity", qty),
	)
	jsonResponse(w, http.StatusOK, map[string]any{"phone_id": id, "stock_quantity": qty})
}

// UploadImage handles PUT /api/phones/{id}/image.
func (h *PhonesHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid phone id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	photo, err := imaging.ProcessPhoto(file)
	if err != nil {
		writeError(w, h.Logger, "failed to process image", err)
		return
	}

	if err := store.SetPhoneImage(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		writeError(w, h.Logger, "failed to save image", err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "image uploaded",
		"width":   photo.Width,
		"height":  photo.Height,
	})
}

// GetImage handles GET /api/phones/{id}/image.
func (h *PhonesHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid phone id")
		return
	}

	data, mime, err := store.GetPhoneImage(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, h.Logger, "failed to get image", err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// Price handles GET /api/phones/{id}/price/{platform}. An override query
// parameter is resolved for this request only and never stored.
func (h *PhonesHandler) Price(w http.ResponseWriter, r *http.Request) {
	platform, err := model.ParsePlatform(r.PathValue("platform"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	phone, ok := h.load(w, r)
	if !ok {
		return
	}

	var override *string
	if r.URL.Query().Has("override") {
		v := r.URL.Query().Get("override")
		override = &v
	}

	quote, err := h.Resolver.Resolve(phone.BasePrice, platform, override)
	if err != nil {
		writeError(w, h.Logger, "failed to resolve price", err)
		return
	}

	jsonResponse(w, http.StatusOK, priceResponse{
		PhoneID:  phone.ID,
		Platform: platform,
		Label:    pricing.ConditionLabel(phone.Condition, platform),
		Quote:    quote,
	})
}

// load fetches the phone named by the {id} path value, writing the error
// response itself when there is none.
func (h *PhonesHandler) load(w http.ResponseWriter, r *http.Request) (*model.Phone, bool) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid phone id")
		return nil, false
	}

	phone, err := store.GetPhone(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, h.Logger, "failed to get phone", err)
		return nil, false
	}
	if phone == nil {
		jsonError(w, http.StatusNotFound, "phone not found")
		return nil, false
	}
	return phone, true
}
