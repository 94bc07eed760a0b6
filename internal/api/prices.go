package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/erazemk/prodaja/internal/pricing"
)

// PricesHandler handles catalog price maintenance.
type PricesHandler struct {
	Refresher PriceRefresher
	Logger    *zap.Logger
}

// Refresh handles POST /api/prices/refresh. It returns every phone with its
// price on each platform.
func (h *PricesHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.Refresher.RefreshPrices(r.Context())
	if err != nil {
		writeError(w, h.Logger, "failed to refresh prices", err)
		return
	}
	if catalog == nil {
		catalog = []pricing.CatalogEntry{}
	}

	h.Logger.Info("prices refreshed", zap.String("user", GetClaims(r.Context()).Username), zap.Int("phones", len(catalog)))
	jsonResponse(w, http.StatusOK, catalog)
}
