package export

import (
	"math/big"
	"time"

	"github.com/mtlprog/basket/internal/domain"
)

// driftHeaders are the DRIFT sheet columns. The sheet is append-only: one row
// per component per export, so drift can be charted over time.
var driftHeaders = []any{"Date", "Basket", "Component", "Current", "Calculated", "Drift"}

// buildDriftRows returns the header row followed by one data row per position.
// Appenders write the header only when the sheet is empty.
func buildDriftRows(rows []positionRow, at time.Time) [][]any {
	data := make([][]any, 0, len(rows)+1)
	data = append(data, driftHeaders)

	date := at.UTC().Format("02.01.2006 15:04")
	for _, r := range rows {
		snap := r.snapshot
		data = append(data, []any{
			date,
			r.basket.Hex(),
			snap.Component.Hex(),
			toFloat(snap.CurrentRealUnit),
			toFloat(snap.CalculatedRealUnit),
			toFloat(snap.Drift()),
		})
	}
	return data
}

func toFloat(unit *big.Int) float64 {
	return domain.UnitDecimal(unit).InexactFloat64()
}
