package output

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"shopcrawl/internal/collector"
)

// SheetMode selects how rows land in the worksheet.
type SheetMode string

const (
	// SheetModeReplace clears the tab, then writes header and rows.
	SheetModeReplace SheetMode = "replace"
	// SheetModeAppend writes the header only into an empty tab and appends
	// rows after the existing content.
	SheetModeAppend SheetMode = "append"
	// SheetModeNewSheet creates a tab named after the run timestamp.
	SheetModeNewSheet SheetMode = "new-sheet"
)

// ParseSheetMode validates a mode name.
func ParseSheetMode(s string) (SheetMode, error) {
	switch m := SheetMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SheetModeReplace, SheetModeAppend, SheetModeNewSheet:
		return m, nil
	default:
		return "", fmt.Errorf("unknown sheet mode: %s", s)
	}
}

// SheetHeader is written as the first row of every tab the writer fills.
var SheetHeader = []string{"Product Name", "Price", "Description", "Extraction Timestamp"}

const (
	sheetRowBuffer  = 20
	sheetColumns    = 6
	maxSheetTitle   = 95
	valueInputRaw   = "RAW"
	sheetsAPIScopes = sheets.SpreadsheetsScope
)

// SheetTarget identifies where products are written.
type SheetTarget struct {
	SpreadsheetID string
	Tab           string
	Mode          SheetMode
}

// sheetsAPI is the part of the Sheets API the writer uses.
type sheetsAPI interface {
	TabExists(ctx context.Context, spreadsheetID, tab string) (bool, error)
	AddTab(ctx context.Context, spreadsheetID, tab string, rows, cols int64) error
	Clear(ctx context.Context, spreadsheetID, rng string) error
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
	Values(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
}

// SheetsWriter writes products into a Google spreadsheet.
type SheetsWriter struct {
	api sheetsAPI
	log *zap.Logger
}

// NewSheetsWriter authenticates with service account JSON.
func NewSheetsWriter(ctx context.Context, credentialsJSON []byte, log *zap.Logger) (*SheetsWriter, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheetsAPIScopes, sheets.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return newSheetsWriter(&googleSheets{svc: svc}, log), nil
}

func newSheetsWriter(api sheetsAPI, log *zap.Logger) *SheetsWriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &SheetsWriter{api: api, log: log.Named("sheets")}
}

// Write stores products in the target tab. runTS fills the trailing
// timestamp column of every row. It returns the tab actually written.
func (w *SheetsWriter) Write(ctx context.Context, products []collector.Product, target SheetTarget, runTS string) (string, error) {
	id := target.SpreadsheetID
	tab := target.Tab
	log := w.log.With(zap.String("spreadsheet", id), zap.String("mode", string(target.Mode)))

	switch target.Mode {
	case SheetModeNewSheet:
		tab = newSheetTitle(tab, runTS)
		if err := w.api.AddTab(ctx, id, tab, int64(len(products)+sheetRowBuffer), sheetColumns); err != nil {
			return "", fmt.Errorf("failed to add worksheet %q: %w", tab, err)
		}
	case SheetModeReplace, SheetModeAppend:
		if err := w.ensureTab(ctx, id, tab, len(products)); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown sheet mode: %s", target.Mode)
	}
	log = log.With(zap.String("tab", tab))

	rows := make([][]interface{}, 0, len(products))
	for _, p := range products {
		rows = append(rows, []interface{}{p.Name, p.Price, p.Description, runTS})
	}

	if target.Mode == SheetModeAppend {
		if err := w.appendRows(ctx, id, tab, rows); err != nil {
			return "", err
		}
	} else {
		if err := w.api.Clear(ctx, id, a1(tab, "")); err != nil {
			log.Warn("could not clear worksheet", zap.Error(err))
		}
		if err := w.api.Update(ctx, id, a1(tab, "A1"), append([][]interface{}{headerRow()}, rows...)); err != nil {
			return "", fmt.Errorf("worksheet update failed: %w", err)
		}
	}

	w.verifyHeader(ctx, id, tab, log)
	log.Info("rows written", zap.Int("rows", len(rows)))
	return tab, nil
}

func (w *SheetsWriter) ensureTab(ctx context.Context, id, tab string, n int) error {
	exists, err := w.api.TabExists(ctx, id, tab)
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	if exists {
		return nil
	}
	if err := w.api.AddTab(ctx, id, tab, int64(n+sheetRowBuffer), sheetColumns); err != nil {
		return fmt.Errorf("failed to add worksheet %q: %w", tab, err)
	}
	return nil
}

func (w *SheetsWriter) appendRows(ctx context.Context, id, tab string, rows [][]interface{}) error {
	first, err := w.api.Values(ctx, id, a1(tab, "1:1"))
	if err != nil {
		first = nil
	}
	toWrite := make([][]interface{}, 0, len(rows)+1)
	if isEmpty(first) {
		toWrite = append(toWrite, headerRow())
	}
	toWrite = append(toWrite, rows...)

	next := 1
	if all, err := w.api.Values(ctx, id, a1(tab, "")); err == nil {
		next = len(all) + 1
	}
	if err := w.api.Update(ctx, id, a1(tab, fmt.Sprintf("A%d", next)), toWrite); err != nil {
		return fmt.Errorf("append failed: %w", err)
	}
	return nil
}

func (w *SheetsWriter) verifyHeader(ctx context.Context, id, tab string, log *zap.Logger) {
	first, err := w.api.Values(ctx, id, a1(tab, "1:1"))
	if err != nil {
		log.Warn("post-write verification failed", zap.Error(err))
		return
	}
	if isEmpty(first) {
		return
	}
	if got := fmt.Sprint(first[0][0]); got != SheetHeader[0] {
		log.Warn("unexpected header after write", zap.String("first_cell", got))
	}
}

func headerRow() []interface{} {
	row := make([]interface{}, len(SheetHeader))
	for i, h := range SheetHeader {
		row[i] = h
	}
	return row
}

func isEmpty(rows [][]interface{}) bool {
	return len(rows) == 0 || len(rows[0]) == 0
}

// newSheetTitle names the per-run tab, e.g. "Sheet1-2024-05-01T10-00-00".
func newSheetTitle(tab, runTS string) string {
	title := []rune(tab + "-" + strings.ReplaceAll(runTS, ":", "-"))
	if len(title) > maxSheetTitle {
		title = title[:maxSheetTitle]
	}
	return string(title)
}

// a1 builds an A1 range on tab; an empty cell selects the whole tab.
func a1(tab, cell string) string {
	quoted := "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	if cell == "" {
		return quoted
	}
	return quoted + "!" + cell
}

type googleSheets struct {
	svc *sheets.Service
}

func (g *googleSheets) TabExists(ctx context.Context, spreadsheetID, tab string) (bool, error) {
	sp, err := g.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, err
	}
	for _, sh := range sp.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return true, nil
		}
	}
	return false, nil
}

func (g *googleSheets) AddTab(ctx context.Context, spreadsheetID, tab string, rows, cols int64) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: tab,
					GridProperties: &sheets.GridProperties{
						RowCount:    rows,
						ColumnCount: cols,
					},
				},
			},
		}},
	}
	_, err := g.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

func (g *googleSheets) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (g *googleSheets) Update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error {
	_, err := g.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	return err
}

func (g *googleSheets) Values(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}
