package export

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

const (
	inputRaw         = "RAW"
	inputUserEntered = "USER_ENTERED"
)

// inputOption picks how Sheets interprets written values. Unit and balance
// columns are exact decimal strings that must not be re-parsed as floats;
// DRIFT carries dates and floats meant for charts.
func inputOption(sheet string) string {
	if sheet == SheetDrift {
		return inputUserEntered
	}
	return inputRaw
}

// SheetsWriter implements RowWriter and Appender using the Google Sheets API.
type SheetsWriter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsWriter creates a SheetsWriter authenticated with a service account JSON.
func NewSheetsWriter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsWriter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// Write ensures the sheets exist, then clears and rewrites them.
func (w *SheetsWriter) Write(ctx context.Context, tabs ...Sheet) error {
	names := lo.Map(tabs, func(s Sheet, _ int) string { return s.Name })
	if _, err := w.ensureSheets(ctx, names...); err != nil {
		return err
	}

	_, err := w.svc.Spreadsheets.Values.BatchClear(
		w.spreadsheetID,
		&sheets.BatchClearValuesRequest{
			Ranges: lo.Map(names, func(n string, _ int) string { return n + "!A:Z" }),
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing sheets: %w", err)
	}

	groups := lo.GroupBy(tabs, func(s Sheet) string { return inputOption(s.Name) })
	for _, option := range []string{inputRaw, inputUserEntered} {
		group, ok := groups[option]
		if !ok {
			continue
		}
		_, err = w.svc.Spreadsheets.Values.BatchUpdate(
			w.spreadsheetID,
			&sheets.BatchUpdateValuesRequest{
				ValueInputOption: option,
				Data: lo.Map(group, func(s Sheet, _ int) *sheets.ValueRange {
					return &sheets.ValueRange{Range: s.Name + "!A1", Values: s.Rows}
				}),
			},
		).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing sheets: %w", err)
		}
	}

	return nil
}

// Append writes the header row if the sheet is new or empty, then appends
// the remaining rows below any existing data.
func (w *SheetsWriter) Append(ctx context.Context, tab Sheet) error {
	if len(tab.Rows) < 2 {
		return nil
	}
	meta, err := w.ensureSheets(ctx, tab.Name)
	if err != nil {
		return fmt.Errorf("ensuring %s sheet: %w", tab.Name, err)
	}

	existing, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, tab.Name+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading %s header: %w", tab.Name, err)
	}

	if len(existing.Values) == 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID,
			tab.Name+"!A1",
			&sheets.ValueRange{Values: tab.Rows[:1]},
		).ValueInputOption(inputOption(tab.Name)).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing %s header: %w", tab.Name, err)
		}
		if err := w.formatHeader(ctx, meta[tab.Name], int64(len(tab.Rows[0]))); err != nil {
			return fmt.Errorf("formatting %s sheet: %w", tab.Name, err)
		}
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID,
		tab.Name+"!A:Z",
		&sheets.ValueRange{Values: tab.Rows[1:]},
	).ValueInputOption(inputOption(tab.Name)).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending %s rows: %w", tab.Name, err)
	}
	return nil
}

// formatHeader bolds and freezes the header row.
func (w *SheetsWriter) formatHeader(ctx context.Context, sheetID, cols int64) error {
	// #D9EAD3
	lightGreen := &sheets.Color{Red: 0.851, Green: 0.918, Blue: 0.827}

	reqs := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   cols,
				},
				Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
					BackgroundColor:     lightGreen,
					TextFormat:          &sheets.TextFormat{Bold: true},
					HorizontalAlignment: "CENTER",
				}},
				Fields: "userEnteredFormat(backgroundColor,textFormat,horizontalAlignment)",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	_, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs},
	).Context(ctx).Do()
	return err
}

// ensureSheets creates any of the named sheets that do not already exist and
// returns the sheet ID of every requested name.
func (w *SheetsWriter) ensureSheets(ctx context.Context, names ...string) (map[string]int64, error) {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	ids := make(map[string]int64, len(spreadsheet.Sheets))
	for _, s := range spreadsheet.Sheets {
		ids[s.Properties.Title] = s.Properties.SheetId
	}

	var requests []*sheets.Request
	for _, name := range names {
		if _, ok := ids[name]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			})
		}
	}

	if len(requests) == 0 {
		return ids, nil
	}

	resp, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests, IncludeSpreadsheetInResponse: true},
	).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating sheets: %w", err)
	}
	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}

	return ids, nil
}
