package export

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/xuri/excelize/v2"

	"github.com/mtlprog/basket/internal/basket"
	"github.com/mtlprog/basket/internal/domain"
	"github.com/mtlprog/basket/internal/journal"
)

var (
	basketAddr = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	manager    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	compX      = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

type mockJournal struct {
	records []journal.Record
	limit   int
}

func (m *mockJournal) List(_ context.Context, _ common.Address, limit int) ([]journal.Record, error) {
	m.limit = limit
	return m.records, nil
}

type recordingWriter struct {
	written  []Sheet
	appended []Sheet
}

func (w *recordingWriter) Write(_ context.Context, tabs ...Sheet) error {
	w.written = append(w.written, tabs...)
	return nil
}

func (w *recordingWriter) Append(_ context.Context, tab Sheet) error {
	w.appended = append(w.appended, tab)
	return nil
}

type writeOnly struct {
	written []Sheet
}

func (w *writeOnly) Write(_ context.Context, tabs ...Sheet) error {
	w.written = append(w.written, tabs...)
	return nil
}

func whole(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), domain.PreciseUnit)
}

func newStore(t *testing.T) *basket.Registry {
	t.Helper()
	b := basket.NewMemory(basketAddr, manager)
	b.SetTotalSupply(uint256.NewInt(2))
	b.SetBalance(compX, uint256.NewInt(6))
	_ = b.SetDefaultPositionRealUnit(context.Background(), compX, whole(1))
	reg := basket.NewRegistry()
	reg.Add(b)
	return reg
}

func testRecord() journal.Record {
	return journal.Record{
		ID:           1,
		BatchID:      uuid.MustParse("6f1c3b8e-2a4d-4c1e-9b7a-1d2e3f405162"),
		Basket:       basketAddr,
		Component:    compX,
		Balance:      uint256.NewInt(6),
		PreviousUnit: whole(1),
		NewUnit:      new(big.Int).Add(whole(2), new(big.Int).Div(domain.PreciseUnit, big.NewInt(2))),
		CreatedAt:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestExportWritesSheets(t *testing.T) {
	j := &mockJournal{records: []journal.Record{testRecord()}}
	w := &recordingWriter{}
	svc := NewService(newStore(t), j, w, 25)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }

	if err := svc.Export(context.Background()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if j.limit != 25 {
		t.Errorf("journal limit = %d, want 25", j.limit)
	}
	if len(w.written) != 2 || w.written[0].Name != SheetAdjustments || w.written[1].Name != SheetPositions {
		t.Fatalf("written sheets = %+v", w.written)
	}

	adj := w.written[0].Rows
	if len(adj) != 2 {
		t.Fatalf("adjustment rows = %d, want header + 1", len(adj))
	}
	row := adj[1]
	if row[0] != "2026-03-01T09:30:00Z" || row[1] != "6f1c3b8e-2a4d-4c1e-9b7a-1d2e3f405162" {
		t.Errorf("time/batch = %v / %v", row[0], row[1])
	}
	if row[5] != "1" || row[6] != "2.5" || row[7] != "1.5" {
		t.Errorf("previous/new/change = %v / %v / %v", row[5], row[6], row[7])
	}

	pos := w.written[1].Rows
	if len(pos) != 2 {
		t.Fatalf("position rows = %d, want header + 1", len(pos))
	}
	// 6 / 2 = 3 calculated, 1 current
	if pos[1][3] != "1" || pos[1][4] != "3" || pos[1][5] != "2" || pos[1][6] != 1 {
		t.Errorf("position row = %v", pos[1])
	}

	if len(w.appended) != 1 || w.appended[0].Name != SheetDrift {
		t.Fatalf("appended = %+v", w.appended)
	}
	drift := w.appended[0].Rows
	if drift[1][0] != "02.03.2026 10:00" || drift[1][5] != 2.0 {
		t.Errorf("drift row = %v", drift[1])
	}
}

func TestExportWithoutAppender(t *testing.T) {
	w := &writeOnly{}
	svc := NewService(newStore(t), &mockJournal{}, w, 10)

	if err := svc.Export(context.Background(), basketAddr); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(w.written) != 2 {
		t.Errorf("written = %d sheets, want 2", len(w.written))
	}
	if len(w.written[0].Rows) != 1 {
		t.Errorf("adjustments = %d rows, want header only", len(w.written[0].Rows))
	}
}

func TestExportUnknownBasket(t *testing.T) {
	svc := NewService(newStore(t), &mockJournal{}, &writeOnly{}, 10)
	if err := svc.Export(context.Background(), common.HexToAddress("0x01")); err == nil {
		t.Error("expected error for unknown basket")
	}
}

func TestExportZeroSupplyStillWritesHistory(t *testing.T) {
	reg := newStore(t)
	b, _ := reg.Get(context.Background(), basketAddr)
	b.(*basket.Memory).SetTotalSupply(new(uint256.Int))

	w := &recordingWriter{}
	svc := NewService(reg, &mockJournal{records: []journal.Record{testRecord()}}, w, 10)
	if err := svc.Export(context.Background()); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(w.written[0].Rows) != 2 {
		t.Error("adjustment history missing")
	}
	// Zero supply previews current == calculated.
	if len(w.written[1].Rows) != 2 || w.written[1].Rows[1][5] != "0" {
		t.Errorf("positions = %v", w.written[1].Rows)
	}
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "basket.xlsx")
	w := NewXLSXWriter(path)

	err := w.Write(context.Background(),
		Sheet{Name: SheetAdjustments, Rows: [][]any{{"Time", "Batch"}, {"t1", "b1"}}},
		Sheet{Name: SheetPositions, Rows: [][]any{{"Basket"}, {"0xb1"}, {"0xb2"}}},
	)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 2 || got[0] != SheetAdjustments || got[1] != SheetPositions {
		t.Errorf("sheets = %v", got)
	}
	rows, err := f.GetRows(SheetPositions)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[2][0] != "0xb2" {
		t.Errorf("positions rows = %v", rows)
	}
	cell, _ := f.GetCellValue(SheetAdjustments, "B2")
	if cell != "b1" {
		t.Errorf("B2 = %q, want b1", cell)
	}
}

func TestInputOption(t *testing.T) {
	tests := []struct {
		sheet string
		want  string
	}{
		{SheetAdjustments, "RAW"},
		{SheetPositions, "RAW"},
		{SheetDrift, "USER_ENTERED"},
	}
	for _, tt := range tests {
		t.Run(tt.sheet, func(t *testing.T) {
			if got := inputOption(tt.sheet); got != tt.want {
				t.Errorf("inputOption(%q) = %q, want %q", tt.sheet, got, tt.want)
			}
		})
	}
}
