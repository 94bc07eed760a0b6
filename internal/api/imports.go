package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/erazemk/prodaja/internal/auth"
	"github.com/erazemk/prodaja/internal/importer"
)

// maxImportBytes bounds an uploaded CSV file.
const maxImportBytes = 5 << 20

// ImportHandler handles bulk inventory imports.
type ImportHandler struct {
	Processor *importer.Processor
	Sheets    SheetReader
	Logger    *zap.Logger
}

type sheetImportRequest struct {
	Range string `json:"range"`
}

// CSV handles POST /api/import with a multipart "file" field.
func (h *ImportHandler) CSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes+1<<20)

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "csv file required")
		return
	}
	defer file.Close()

	rows, err := importer.ReadCSV(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.Logger.Info("csv import received", zap.String("file", header.Filename), zap.Int("rows", len(rows)))
	h.run(w, r, rows)
}

// Sheet handles POST /api/import/sheet.
func (h *ImportHandler) Sheet(w http.ResponseWriter, r *http.Request) {
	var req sheetImportRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Range = strings.TrimSpace(req.Range)
	if req.Range == "" {
		jsonError(w, http.StatusBadRequest, "range required")
		return
	}

	rows, err := h.Sheets.Rows(r.Context(), req.Range)
	if err != nil {
		h.Logger.Error("failed to read sheet", zap.String("range", req.Range), zap.Error(err))
		jsonError(w, http.StatusBadGateway, "failed to read sheet")
		return
	}

	h.run(w, r, rows)
}

func (h *ImportHandler) run(w http.ResponseWriter, r *http.Request, rows []importer.RawRow) {
	admin, err := auth.AdminFromClaims(GetClaims(r.Context()))
	if err != nil {
		writeError(w, h.Logger, "import refused", err)
		return
	}

	result, err := h.Processor.Import(r.Context(), admin, rows)
	if err != nil {
		h.Logger.Error("import failed", zap.Error(err))
		jsonResponse(w, http.StatusInternalServerError, map[string]any{
			"error":  "import stopped by a storage failure",
			"result": result,
		})
		return
	}

	jsonResponse(w, http.StatusOK, result)
}
