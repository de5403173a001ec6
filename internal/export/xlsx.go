package export

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter implements RowWriter by saving a workbook to a local file.
type XLSXWriter struct {
	path string
}

func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write creates a fresh workbook with one worksheet per sheet and saves it.
func (w *XLSXWriter) Write(_ context.Context, tabs ...Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, tab := range tabs {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), tab.Name); err != nil {
				return fmt.Errorf("renaming sheet %s: %w", tab.Name, err)
			}
		} else if _, err := f.NewSheet(tab.Name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", tab.Name, err)
		}

		for r, row := range tab.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(tab.Name, cell, &row); err != nil {
				return fmt.Errorf("writing %s row %d: %w", tab.Name, r+1, err)
			}
		}
		if len(tab.Rows) > 0 {
			if err := f.SetPanes(tab.Name, &excelize.Panes{
				Freeze:      true,
				YSplit:      1,
				TopLeftCell: "A2",
				ActivePane:  "bottomLeft",
			}); err != nil {
				return fmt.Errorf("freezing %s header: %w", tab.Name, err)
			}
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving %s: %w", w.path, err)
	}
	return nil
}
