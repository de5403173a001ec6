package domain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
)

func units(s string) *big.Int {
	u, err := ParseUnit(s)
	if err != nil {
		panic(err)
	}
	return u
}

func amount(s string) *uint256.Int {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestCalculateRealUnit(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		supply  string
		want    string
	}{
		{"exact", "30000000000000000000", "10000000000000000000", "3"},
		{"fraction", "60000000000000000000", "10000000000000000000", "6"},
		{"floors", "10", "3", "3.333333333333333333"},
		{"zero balance", "0", "5", "0"},
		{"one wei over", "30000000000000000001", "10000000000000000000", "3"},
		{"tiny supply", "1", "1", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateRealUnit(amount(tt.balance), amount(tt.supply))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := units(tt.want); got.Cmp(want) != 0 {
				t.Errorf("CalculateRealUnit(%s, %s) = %s, want %s", tt.balance, tt.supply, got, want)
			}
		})
	}
}

func TestCalculateRealUnitZeroSupply(t *testing.T) {
	_, err := CalculateRealUnit(amount("5"), amount("0"))
	if !errors.Is(err, ErrZeroSupply) {
		t.Errorf("error = %v, want ErrZeroSupply", err)
	}
}

func TestCalculateRealUnitOverflow(t *testing.T) {
	maxBalance := new(uint256.Int).SetAllOne()
	_, err := CalculateRealUnit(maxBalance, uint256.NewInt(1))
	if !errors.Is(err, ErrUnitOverflow) {
		t.Errorf("error = %v, want ErrUnitOverflow", err)
	}
}

func TestCalculateRealUnitLargeIntermediate(t *testing.T) {
	// balance * 1e18 overflows 256 bits, the quotient does not.
	balance := new(uint256.Int).Lsh(uint256.NewInt(1), 250)
	supply := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	got, err := CalculateRealUnit(balance, supply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := new(big.Int).Mul(new(big.Int).Lsh(big.NewInt(1), 50), PreciseUnit)
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"integer", "3", "3000000000000000000", false},
		{"fraction", "0.5", "500000000000000000", false},
		{"smallest", "0.000000000000000001", "1", false},
		{"scenario c", "3.000000000000000001", "3000000000000000001", false},
		{"negative", "-1", "-1000000000000000000", false},
		{"zero", "0", "0", false},
		{"whitespace", "  2  ", "2000000000000000000", false},
		{"too precise", "0.0000000000000000001", "", true},
		{"garbage", "abc", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnit(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseUnit(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUnit(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseUnit(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatUnit(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"integer", "3000000000000000000", "3"},
		{"fraction", "1500000000000000000", "1.5"},
		{"smallest", "1", "0.000000000000000001"},
		{"negative", "-2000000000000000000", "-2"},
		{"zero", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := new(big.Int).SetString(tt.raw, 10)
			if got := FormatUnit(raw); got != tt.want {
				t.Errorf("FormatUnit(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}

	if got := FormatUnit(nil); got != "0" {
		t.Errorf("FormatUnit(nil) = %q, want 0", got)
	}
}

func TestParseAmount(t *testing.T) {
	if got, err := ParseAmount(""); err != nil || !got.IsZero() {
		t.Errorf("ParseAmount(\"\") = %v, %v; want 0, nil", got, err)
	}
	if _, err := ParseAmount("-1"); err == nil {
		t.Error("ParseAmount(-1) expected error")
	}
	if got := FormatAmount(amount("12345678901234567890")); got != "12345678901234567890" {
		t.Errorf("FormatAmount round trip = %q", got)
	}
}
