package importer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// SheetSource reads rows from a Google Sheets spreadsheet.
type SheetSource struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewSheetSource builds a read-only Sheets client from a service account
// credentials file.
func NewSheetSource(ctx context.Context, credentialsPath, spreadsheetID string, logger *zap.Logger) (*SheetSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing sheets client: %w", err)
	}

	return &SheetSource{service: service, spreadsheetID: spreadsheetID, logger: logger}, nil
}

// Rows reads sheetRange. Its first row is the header.
func (s *SheetSource) Rows(ctx context.Context, sheetRange string) ([]RawRow, error) {
	if sheetRange == "" {
		return nil, fmt.Errorf("sheet range must not be empty")
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("reading range %s: %w", sheetRange, err)
	}

	rows := rowsFromValues(resp.Values)
	s.logger.Debug("sheet range read", zap.String("range", sheetRange), zap.Int("rows", len(rows)))
	return rows, nil
}

func rowsFromValues(values [][]any) []RawRow {
	if len(values) == 0 {
		return nil
	}

	columns := make([]string, len(values[0]))
	for i, v := range values[0] {
		columns[i] = normalizeColumn(fmt.Sprint(v))
	}

	rows := make([]RawRow, 0, len(values)-1)
	for _, record := range values[1:] {
		cells := make([]string, len(record))
		for i, v := range record {
			if v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, toRow(columns, cells))
	}
	return rows
}
