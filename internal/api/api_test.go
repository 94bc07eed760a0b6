package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/prodaja/internal/audit"
	"github.com/erazemk/prodaja/internal/auth"
	"github.com/erazemk/prodaja/internal/config"
	"github.com/erazemk/prodaja/internal/db"
	"github.com/erazemk/prodaja/internal/importer"
	"github.com/erazemk/prodaja/internal/listing"
	"github.com/erazemk/prodaja/internal/marketplace"
	"github.com/erazemk/prodaja/internal/model"
	"github.com/erazemk/prodaja/internal/pricing"
	"github.com/erazemk/prodaja/internal/scheduler"
	"github.com/erazemk/prodaja/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testPassword  = "password123"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type testServer struct {
	*httptest.Server
	db    *sql.DB
	token string
}

type fakeSheets struct {
	rows []importer.RawRow
}

func (f fakeSheets) Rows(_ context.Context, _ string) ([]importer.RawRow, error) {
	return f.rows, nil
}

func newTestServer(t *testing.T, sheets SheetReader) *testServer {
	t.Helper()
	database := db.NewTestDB(t)

	resolver := pricing.NewResolver(nil)
	inventory := store.Inventory{DB: database}
	log := audit.NewSQLite(database)

	router := NewRouter(Deps{
		DB:        database,
		JWTSecret: testJWTSecret,
		Resolver:  resolver,
		Importer:  importer.NewProcessor(inventory, nil),
		Listings: listing.New(inventory, resolver, marketplace.NewSimulatedRegistry(resolver), log, listing.Options{
			Timeout: time.Second,
		}),
		Audit:     log,
		Refresher: scheduler.New(database, resolver, config.ScheduleConfig{}, nil, nil),
		Sheets:    sheets,
		Location:  ist,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	createUser(t, database, "admin", model.RoleAdmin)

	s := &testServer{Server: server, db: database}
	s.token = s.login(t, "admin", testPassword)
	return s
}

func setupTestServer(t *testing.T) *testServer {
	return newTestServer(t, nil)
}

func createUser(t *testing.T, database *sql.DB, username, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := store.CreateUser(context.Background(), database, username, string(hash), role)
	require.NoError(t, err)
	return user
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := decode[loginResponse](t, resp).Token
	require.NotEmpty(t, token)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) upload(t *testing.T, method, path, field, filename string, data []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) createPhone(t *testing.T, modelName, price string, stock int) model.Phone {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/phones", s.token, map[string]any{
		"model_name":     modelName,
		"brand":          "Acme",
		"condition":      "Good",
		"storage":        "128GB",
		"base_price":     price,
		"stock_quantity": stock,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.Phone](t, resp)
}

func TestHealthz(t *testing.T) {
	s := setupTestServer(t)
	resp := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginEndpoint(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "nobody", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnauthenticatedAccess(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/phones", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/phones", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := setupTestServer(t)
	token := s.login(t, "admin", testPassword)

	resp := s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/phones", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Other sessions stay valid.
	resp = s.do(t, http.MethodGet, "/api/phones", s.token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoleBasedAccess(t *testing.T) {
	s := setupTestServer(t)
	staff := createUser(t, s.db, "staff1", model.RoleStaff)
	staffToken, err := auth.GenerateToken(testJWTSecret, time.Hour, staff.ID, staff.Username, model.RoleStaff)
	require.NoError(t, err)

	phone := s.createPhone(t, "Pixel 7", "500", 1)

	resp := s.do(t, http.MethodGet, "/api/phones", staffToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/phones/1/price/X", staffToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/phones", map[string]any{"model_name": "x"}},
		{http.MethodDelete, "/api/phones/1", nil},
		{http.MethodPost, "/api/listings", map[string]any{"phone_id": phone.ID, "platform": "X"}},
		{http.MethodGet, "/api/listings", nil},
		{http.MethodPost, "/api/prices/refresh", nil},
		{http.MethodGet, "/api/users", nil},
	} {
		resp := s.do(t, tc.method, tc.path, staffToken, tc.body)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "%s %s", tc.method, tc.path)
	}

	got, err := store.GetPhone(context.Background(), s.db, phone.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StockQuantity)
}

func TestPhonesAPIFlow(t *testing.T) {
	s := setupTestServer(t)

	phone := s.createPhone(t, "Pixel 7", "500", 2)
	assert.Equal(t, model.ConditionGood, phone.Condition)
	assert.True(t, decimal.NewFromInt(500).Equal(phone.BasePrice))

	// Same identity key.
	resp := s.do(t, http.MethodPost, "/api/phones", s.token, map[string]any{
		"model_name": "pixel 7", "brand": "acme", "condition": "Fair", "storage": "128GB",
		"base_price": "300", "stock_quantity": 1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/phones", s.token, map[string]any{
		"model_name": "", "brand": "Acme", "condition": "Mint", "base_price": "-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Contains(t, body["error"], "model_name")
	assert.Contains(t, body["error"], "condition")
	assert.Contains(t, body["error"], "base_price")

	// Blank names are rejected once trimmed, and amounts are bounded.
	resp = s.do(t, http.MethodPost, "/api/phones", s.token, map[string]any{
		"model_name": "   ", "brand": "Acme", "condition": "Good", "base_price": "1e200000000",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decode[map[string]string](t, resp)
	assert.Contains(t, body["error"], "model_name")
	assert.Contains(t, body["error"], "base_price")

	s.createPhone(t, "Galaxy S21", "350", 1)

	resp = s.do(t, http.MethodGet, "/api/phones?q=galaxy", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	phones := decode[[]model.Phone](t, resp)
	require.Len(t, phones, 1)
	assert.Equal(t, "Galaxy S21", phones[0].ModelName)

	resp = s.do(t, http.MethodGet, "/api/phones?condition=Scrap", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]model.Phone](t, resp))

	resp = s.do(t, http.MethodGet, "/api/phones?condition=Mint", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/phones/1", s.token, map[string]any{
		"model_name": "Pixel 7", "brand": "Acme", "condition": "As New", "storage": "128GB",
		"base_price": "520.50", "stock_quantity": 4, "tags": []string{"5g", " 5G "},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[model.Phone](t, resp)
	assert.Equal(t, model.ConditionAsNew, updated.Condition)
	assert.Equal(t, 4, updated.StockQuantity)
	assert.Equal(t, []string{"5g"}, updated.Tags)

	resp = s.do(t, http.MethodDelete, "/api/phones/1", s.token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/phones/1", s.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, "/api/phones/1", s.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/phones/abc", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdjustStock(t *testing.T) {
	s := setupTestServer(t)
	phone := s.createPhone(t, "Pixel 7", "500", 2)

	resp := s.do(t, http.MethodPost, "/api/phones/1/stock", s.token, map[string]int{"delta": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 5, decode[map[string]any](t, resp)["stock_quantity"])

	resp = s.do(t, http.MethodPost, "/api/phones/1/stock", s.token, map[string]int{"delta": -10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, decode[map[string]any](t, resp)["stock_quantity"])

	resp = s.do(t, http.MethodPost, "/api/phones/1/stock", s.token, map[string]int{"delta": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/phones/99/stock", s.token, map[string]int{"delta": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	got, err := store.GetPhone(context.Background(), s.db, phone.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockQuantity)
}

type priceBody struct {
	Platform model.Platform   `json:"platform"`
	Label    string           `json:"label"`
	Price    decimal.Decimal  `json:"price"`
	Fee      *decimal.Decimal `json:"fee"`
	Override bool             `json:"override"`
}

func TestPriceEndpoint(t *testing.T) {
	s := setupTestServer(t)
	s.createPhone(t, "Pixel 7", "500", 1)

	resp := s.do(t, http.MethodGet, "/api/phones/1/price/x", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[priceBody](t, resp)
	assert.Equal(t, model.PlatformX, got.Platform)
	assert.True(t, decimal.NewFromInt(450).Equal(got.Price), "price %s", got.Price)
	require.NotNil(t, got.Fee)
	assert.True(t, decimal.NewFromInt(50).Equal(*got.Fee))
	assert.False(t, got.Override)
	assert.NotEmpty(t, got.Label)

	resp = s.do(t, http.MethodGet, "/api/phones/1/price/Y?override=399.99", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode[priceBody](t, resp)
	assert.True(t, decimal.RequireFromString("399.99").Equal(got.Price))
	assert.True(t, got.Override)
	assert.Nil(t, got.Fee)

	resp = s.do(t, http.MethodGet, "/api/phones/1/price/Y?override=cheap", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/phones/1/price/Y?override=1e200000000", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/phones/1/price/Q", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/phones/7/price/X", s.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The override was not persisted.
	resp = s.do(t, http.MethodGet, "/api/phones/1/price/Y", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decimal.NewFromInt(458).Equal(decode[priceBody](t, resp).Price))
}

func TestPricesRefresh(t *testing.T) {
	s := setupTestServer(t)
	s.createPhone(t, "Pixel 7", "500", 1)
	s.createPhone(t, "Galaxy S21", "300", 1)

	resp := s.do(t, http.MethodPost, "/api/prices/refresh", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	catalog := decode[[]pricing.CatalogEntry](t, resp)
	require.Len(t, catalog, 2)
	assert.Len(t, catalog[0].Prices, len(model.Platforms))

	_, ok, err := store.GetSetting(context.Background(), s.db, store.SettingLastPriceRefresh)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestImportCSV(t *testing.T) {
	s := setupTestServer(t)

	csvData := "Model Name,Brand,Condition,Storage,Color,Base Price,Stock Quantity,Tags\n" +
		"Pixel 7,Google,Good,128GB,Black,500,3,5g\n" +
		",Apple,Excellent,64GB,White,300,1,\n" +
		"Galaxy S21,Samsung,Fair,256GB,Grey,350,2,\n"

	resp := s.upload(t, http.MethodPost, "/api/import", "file", "phones.csv", []byte(csvData))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[importer.Result](t, resp)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "model name is required")

	phones, err := store.ListPhones(context.Background(), s.db, store.PhoneFilter{})
	require.NoError(t, err)
	assert.Len(t, phones, 2)

	// Re-importing updates in place.
	resp = s.upload(t, http.MethodPost, "/api/import", "file", "phones.csv",
		[]byte("model_name,brand,condition,storage,color,base_price,stock_quantity\nPixel 7,Google,Good,128GB,Black,480,9\n"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = decode[importer.Result](t, resp)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Updated)

	resp = s.do(t, http.MethodPost, "/api/import", s.token, map[string]string{"file": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportSheet(t *testing.T) {
	plain := setupTestServer(t)
	r := plain.do(t, http.MethodPost, "/api/import/sheet", plain.token, map[string]string{"range": "A1:H10"})
	assert.Equal(t, http.StatusNotFound, r.StatusCode, "route is absent when sheets are not configured")

	s := newTestServer(t, fakeSheets{rows: []importer.RawRow{
		{"model_name": "Pixel 7", "brand": "Google", "condition": "Good", "base_price": "500", "stock_quantity": "1"},
	}})

	r = s.do(t, http.MethodPost, "/api/import/sheet", s.token, map[string]string{"range": " "})
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	r = s.do(t, http.MethodPost, "/api/import/sheet", s.token, map[string]string{"range": "Phones!A1:I"})
	require.Equal(t, http.StatusOK, r.StatusCode)
	result := decode[importer.Result](t, r)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Created)
}

func TestListingsAPIFlow(t *testing.T) {
	s := setupTestServer(t)
	phone := s.createPhone(t, "Pixel 7", "500", 1)

	resp := s.do(t, http.MethodPost, "/api/listings", s.token, map[string]any{
		"phone_id":       phone.ID,
		"platform":       "X",
		"override_price": 450,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := decode[listing.Result](t, resp)
	assert.True(t, result.Success)
	assert.Equal(t, listing.OutcomeListed, result.Outcome)
	require.NotNil(t, result.Price)
	assert.True(t, decimal.NewFromInt(450).Equal(*result.Price))
	assert.True(t, result.Override)

	got, err := store.GetPhone(context.Background(), s.db, phone.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.StockQuantity)

	resp = s.do(t, http.MethodPost, "/api/listings", s.token, map[string]any{
		"phone_id": phone.ID,
		"platform": "Y",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	result = decode[listing.Result](t, resp)
	assert.Equal(t, listing.OutcomeOutOfStock, result.Outcome)
	assert.Equal(t, "out of stock", result.Message)

	resp = s.do(t, http.MethodPost, "/api/listings", s.token, map[string]any{
		"phone_id": 42,
		"platform": "Z",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/listings", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]listingLogView](t, resp)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(42), entries[0].PhoneID, "newest first")

	first := entries[2]
	assert.True(t, first.Success)
	assert.Equal(t, "admin", first.ListedBy)
	require.True(t, first.AttemptedPrice.Valid)
	assert.True(t, decimal.NewFromInt(450).Equal(first.AttemptedPrice.Decimal))
	assert.True(t, strings.HasSuffix(first.CreatedAtDisplay, "IST"), first.CreatedAtDisplay)

	resp = s.do(t, http.MethodGet, "/api/listings?success=true", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]listingLogView](t, resp), 1)

	resp = s.do(t, http.MethodGet, "/api/listings?platform=Y&limit=5", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]listingLogView](t, resp), 1)

	resp = s.do(t, http.MethodGet, "/api/listings?success=maybe", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListingRequestValidation(t *testing.T) {
	s := setupTestServer(t)
	phone := s.createPhone(t, "Pixel 7", "500", 1)

	resp := s.do(t, http.MethodPost, "/api/listings", s.token, map[string]any{"phone_id": phone.ID, "platform": "Q"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/listings", s.token, map[string]any{"platform": "X"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/listings", s.token, map[string]any{
		"phone_id": phone.ID, "platform": "X", "override_price": "abc",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	result := decode[listing.Result](t, resp)
	assert.Equal(t, listing.OutcomeInvalidOverride, result.Outcome)

	// Malformed requests leave no trace; a bad override is an attempt.
	entries, err := store.ListListingLogs(context.Background(), s.db, model.ListingFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	got, err := store.GetPhone(context.Background(), s.db, phone.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StockQuantity)
}

func TestListingRejectedByMarketplace(t *testing.T) {
	s := setupTestServer(t)
	resp := s.do(t, http.MethodPost, "/api/phones", s.token, map[string]any{
		"model_name": "Nokia 3310", "brand": "Nokia", "condition": "Usable",
		"base_price": "15", "stock_quantity": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	phone := decode[model.Phone](t, resp)

	resp = s.do(t, http.MethodPost, "/api/listings", s.token, map[string]any{"phone_id": phone.ID, "platform": "Y"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	result := decode[listing.Result](t, resp)
	assert.Equal(t, listing.OutcomeRejected, result.Outcome)
	assert.True(t, strings.HasPrefix(result.Message, "rejected by marketplace: "), result.Message)

	got, err := store.GetPhone(context.Background(), s.db, phone.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StockQuantity, "rejected attempt returns the unit")
}

func TestPhoneImage(t *testing.T) {
	s := setupTestServer(t)
	s.createPhone(t, "Pixel 7", "500", 1)

	resp := s.do(t, http.MethodGet, "/api/phones/1/image", s.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for x := range 300 {
		for y := range 200 {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	resp = s.upload(t, http.MethodPut, "/api/phones/1/image", "image", "phone.png", buf.Bytes())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/phones/1/image", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	resp = s.upload(t, http.MethodPut, "/api/phones/1/image", "image", "notes.txt", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.upload(t, http.MethodPut, "/api/phones/9/image", "image", "phone.png", buf.Bytes())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUsersAPI(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/users", s.token, map[string]string{
		"username": "clerk", "password": "short", "role": model.RoleStaff,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/users", s.token, map[string]string{
		"username": "clerk", "password": testPassword, "role": "manager",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/users", s.token, map[string]string{
		"username": "clerk", "password": testPassword, "role": model.RoleStaff,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	clerk := decode[model.User](t, resp)

	resp = s.do(t, http.MethodPost, "/api/users", s.token, map[string]string{
		"username": "clerk", "password": testPassword, "role": model.RoleStaff,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/users", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.User](t, resp), 2)

	// The only admin cannot be demoted or deleted.
	resp = s.do(t, http.MethodPut, "/api/users/1", s.token, map[string]string{"role": model.RoleStaff})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["error"], "cannot remove the last admin")

	resp = s.do(t, http.MethodDelete, "/api/users/1", s.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/users/2/password", s.token, map[string]string{"password": "new-password"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s.login(t, "clerk", "new-password")

	resp = s.do(t, http.MethodDelete, "/api/users/2", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/users/2", s.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int64(2), clerk.ID)
}

func TestChangePassword(t *testing.T) {
	s := setupTestServer(t)

	resp := s.do(t, http.MethodPut, "/api/auth/password", s.token, map[string]string{
		"current_password": "wrong", "new_password": "another-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/auth/password", s.token, map[string]string{
		"current_password": testPassword, "new_password": "another-password",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.login(t, "admin", "another-password")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrNotAdmin, http.StatusForbidden},
		{model.ErrInvalidOverride, http.StatusBadRequest},
		{model.ErrNotFound, http.StatusNotFound},
		{model.ErrOutOfStock, http.StatusConflict},
		{store.ErrDuplicate, http.StatusConflict},
		{store.ErrUsernameTaken, http.StatusConflict},
		{store.ErrLastAdmin, http.StatusBadRequest},
		{model.ErrMarketplaceRejected, http.StatusUnprocessableEntity},
		{model.ErrTransportFailure, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
