package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/prodaja/internal/audit"
	"github.com/erazemk/prodaja/internal/importer"
	"github.com/erazemk/prodaja/internal/listing"
	"github.com/erazemk/prodaja/internal/model"
	"github.com/erazemk/prodaja/internal/pricing"
)

// SheetReader reads import rows from a spreadsheet range.
type SheetReader interface {
	Rows(ctx context.Context, sheetRange string) ([]importer.RawRow, error)
}

// PriceRefresher recomputes catalog prices on demand.
type PriceRefresher interface {
	RefreshPrices(ctx context.Context) ([]pricing.CatalogEntry, error)
}

// Deps holds everything the API handlers need.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	TokenTTL  time.Duration

	Resolver  *pricing.Resolver
	Importer  *importer.Processor
	Listings  *listing.Orchestrator
	Audit     audit.Log
	Refresher PriceRefresher
	// Sheets is nil when spreadsheet import is not configured.
	Sheets SheetReader

	// Location renders listing log timestamps. Defaults to UTC.
	Location *time.Location
	Logger   *zap.Logger
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}

	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, TokenTTL: d.TokenTTL, Logger: d.Logger}
	usersHandler := &UsersHandler{DB: d.DB, Logger: d.Logger}
	phonesHandler := &PhonesHandler{DB: d.DB, Resolver: d.Resolver, Logger: d.Logger}
	pricesHandler := &PricesHandler{Refresher: d.Refresher, Logger: d.Logger}
	importHandler := &ImportHandler{Processor: d.Importer, Sheets: d.Sheets, Logger: d.Logger}
	listingsHandler := &ListingsHandler{
		Orchestrator: d.Listings,
		Audit:        d.Audit,
		Location:     d.Location,
		Logger:       d.Logger,
	}

	authMW := AuthMiddleware(d.JWTSecret, d.DB, d.Logger)
	requireAdmin := RequireRole(model.RoleAdmin)
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Phones: read (all roles), write (admin).
	mux.Handle("GET /api/phones", authMW(http.HandlerFunc(phonesHandler.List)))
	mux.Handle("POST /api/phones", admin(phonesHandler.Create))
	mux.Handle("GET /api/phones/{id}", authMW(http.HandlerFunc(phonesHandler.Get)))
	mux.Handle("PUT /api/phones/{id}", admin(phonesHandler.Update))
	mux.Handle("DELETE /api/phones/{id}", admin(phonesHandler.Delete))
	mux.Handle("POST /api/phones/{id}/stock", admin(phonesHandler.AdjustStock))
	mux.Handle("PUT /api/phones/{id}/image", admin(phonesHandler.UploadImage))
	mux.Handle("GET /api/phones/{id}/image", authMW(http.HandlerFunc(phonesHandler.GetImage)))
	mux.Handle("GET /api/phones/{id}/price/{platform}", authMW(http.HandlerFunc(phonesHandler.Price)))

	// Pricing, import and listing (admin).
	mux.Handle("POST /api/prices/refresh", admin(pricesHandler.Refresh))
	mux.Handle("POST /api/import", admin(importHandler.CSV))
	if d.Sheets != nil {
		mux.Handle("POST /api/import/sheet", admin(importHandler.Sheet))
	}
	mux.Handle("POST /api/listings", admin(listingsHandler.Create))
	mux.Handle("GET /api/listings", admin(listingsHandler.List))

	return mux
}
