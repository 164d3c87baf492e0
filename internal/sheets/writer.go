package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/order-tagger/internal/common"
	"github.com/Veraticus/order-tagger/internal/tagger"
)

// ReportWriter exports a tagging report.
type ReportWriter interface {
	WriteReport(ctx context.Context, report tagger.Report) error
}

// currencyColumns is the zero-based amount column of each tab.
var currencyColumns = map[string]int64{
	TabUpdates:   2,
	TabUnmatched: 3,
}

// Writer implements ReportWriter for Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = common.Component("sheets")
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// WriteReport replaces the contents of every report tab with report.
func (w *Writer) WriteReport(ctx context.Context, report tagger.Report) error {
	w.logger.Info("starting report export",
		"updates", len(report.Updates),
		"unmatched", len(report.Unmatched))

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	var spreadsheetID string
	var sheetIDs map[string]int64
	err := common.WithRetry(ctx, func() error {
		var err error
		spreadsheetID, sheetIDs, err = w.getOrCreateSpreadsheet(ctx)
		return err
	}, retryOpts)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	values := tabValues(report)
	for _, tab := range Tabs {
		rows := values[tab]
		err := common.WithRetry(ctx, func() error {
			if err := w.clearSheet(ctx, spreadsheetID, tab); err != nil {
				return fmt.Errorf("failed to clear %s: %w", tab, err)
			}
			return w.writeData(ctx, spreadsheetID, tab, rows)
		}, retryOpts)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", tab, err)
		}
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, sheetIDs, values)
		}, retryOpts)
		if err != nil {
			// Formatting is cosmetic; the data is already written
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("report export completed",
		"spreadsheet_id", spreadsheetID,
		"updates", len(report.Updates))
	return nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}
		tokenSource = oauthConfig(config.ClientID, config.ClientSecret, "").TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return srv, nil
}

// getOrCreateSpreadsheet returns the configured spreadsheet, creating it or any
// missing report tab, together with the sheet id of each tab.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, map[string]int64, error) {
	if w.config.SpreadsheetID == "" {
		spreadsheet := &sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{
				Title:    w.config.SpreadsheetName,
				TimeZone: w.config.TimeZone,
			},
		}
		for _, tab := range Tabs {
			spreadsheet.Sheets = append(spreadsheet.Sheets, &sheets.Sheet{
				Properties: &sheets.SheetProperties{Title: tab},
			})
		}

		created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to create spreadsheet: %w", err)
		}

		w.logger.Info("created new spreadsheet",
			"id", created.SpreadsheetId,
			"url", created.SpreadsheetUrl)

		// Later runs write to the same spreadsheet
		w.config.SpreadsheetID = created.SpreadsheetId
		return created.SpreadsheetId, sheetIDsOf(created), nil
	}

	existing, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
	}
	ids := sheetIDsOf(existing)

	var requests []*sheets.Request
	for _, tab := range missingTabs(ids) {
		requests = append(requests, &sheets.Request{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: tab},
			},
		})
	}
	if len(requests) > 0 {
		resp, err := w.service.Spreadsheets.BatchUpdate(existing.SpreadsheetId,
			&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
		if err != nil {
			return "", nil, fmt.Errorf("unable to add report tabs: %w", err)
		}
		for _, reply := range resp.Replies {
			if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
				ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
			}
		}
	}
	return existing.SpreadsheetId, ids, nil
}

func sheetIDsOf(s *sheets.Spreadsheet) map[string]int64 {
	ids := make(map[string]int64, len(s.Sheets))
	for _, sh := range s.Sheets {
		if sh.Properties != nil {
			ids[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	return ids
}

func missingTabs(ids map[string]int64) []string {
	var missing []string
	for _, tab := range Tabs {
		if _, ok := ids[tab]; !ok {
			missing = append(missing, tab)
		}
	}
	return missing
}

// clearSheet clears all data from one tab.
func (w *Writer) clearSheet(ctx context.Context, spreadsheetID, tab string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, tab+"!A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// writeData writes values to one tab in batches.
func (w *Writer) writeData(ctx context.Context, spreadsheetID, tab string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))

		batch := values[i:end]
		valueRange := &sheets.ValueRange{Values: batch}

		rangeStr := fmt.Sprintf("%s!A%d", tab, i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "tab", tab, "start_row", i+1, "rows", len(batch))
	}
	return nil
}

// formatRequests builds the bold header, currency column, frozen header row and
// column sizing requests of every tab.
func formatRequests(sheetIDs map[string]int64, values map[string][][]any) []*sheets.Request {
	var requests []*sheets.Request
	for _, tab := range Tabs {
		sheetID, ok := sheetIDs[tab]
		if !ok {
			continue
		}
		rows := int64(len(values[tab]))

		requests = append(requests,
			&sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:       sheetID,
						StartRowIndex: 0,
						EndRowIndex:   1,
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							TextFormat: &sheets.TextFormat{Bold: true},
						},
					},
					Fields: "userEnteredFormat.textFormat",
				},
			},
			&sheets.Request{
				UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
					Properties: &sheets.SheetProperties{
						SheetId: sheetID,
						GridProperties: &sheets.GridProperties{
							FrozenRowCount: 1,
						},
					},
					Fields: "gridProperties.frozenRowCount",
				},
			},
			&sheets.Request{
				AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
					Dimensions: &sheets.DimensionRange{
						SheetId:    sheetID,
						Dimension:  "COLUMNS",
						StartIndex: 0,
						EndIndex:   int64(len(updateHeader)),
					},
				},
			},
		)

		if col, ok := currencyColumns[tab]; ok && rows > 1 {
			requests = append(requests, &sheets.Request{
				RepeatCell: &sheets.RepeatCellRequest{
					Range: &sheets.GridRange{
						SheetId:          sheetID,
						StartRowIndex:    1,
						EndRowIndex:      rows,
						StartColumnIndex: col,
						EndColumnIndex:   col + 1,
					},
					Cell: &sheets.CellData{
						UserEnteredFormat: &sheets.CellFormat{
							NumberFormat: &sheets.NumberFormat{
								Type:    "CURRENCY",
								Pattern: "$#,##0.00",
							},
						},
					},
					Fields: "userEnteredFormat.numberFormat",
				},
			})
		}
	}
	return requests
}

// applyFormatting applies formatting to the report tabs.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetIDs map[string]int64, values map[string][][]any) error {
	requests := formatRequests(sheetIDs, values)
	if len(requests) == 0 {
		return nil
	}
	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	return err
}

var _ ReportWriter = (*Writer)(nil)
