package operator

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	addrA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	addrB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	addrC = common.HexToAddress("0x000000000000000000000000000000000000000c")
)

func TestSetPreservesInsertionOrder(t *testing.T) {
	s := NewSet(addrC, addrA, addrB, addrA)

	if got := s.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	want := []common.Address{addrC, addrA, addrB}
	for i, w := range want {
		got, ok := s.At(i)
		if !ok || got != w {
			t.Errorf("At(%d) = %s, %v; want %s", i, got.Hex(), ok, w.Hex())
		}
	}
}

func TestSetRemoveKeepsOrderAndIndex(t *testing.T) {
	s := NewSet(addrA, addrB, addrC)

	if !s.Remove(addrA) {
		t.Fatal("Remove(addrA) = false")
	}
	if s.Contains(addrA) {
		t.Error("Contains(addrA) after removal")
	}
	all := s.All()
	if len(all) != 2 || all[0] != addrB || all[1] != addrC {
		t.Errorf("All() = %v, want [B C]", all)
	}
	if got, _ := s.At(1); got != addrC {
		t.Errorf("At(1) = %s, want C", got.Hex())
	}
	// Index map must follow the shift.
	if !s.Remove(addrC) || s.Len() != 1 {
		t.Error("Remove(addrC) after shift failed")
	}
}

func TestSetRemoveMissing(t *testing.T) {
	s := NewSet(addrA)
	if s.Remove(addrB) {
		t.Error("Remove(addrB) = true for absent item")
	}
}

func TestSetAtOutOfRange(t *testing.T) {
	s := NewSet(addrA)
	if _, ok := s.At(1); ok {
		t.Error("At(1) ok = true")
	}
	if _, ok := s.At(-1); ok {
		t.Error("At(-1) ok = true")
	}
}

func TestSetAllReturnsCopy(t *testing.T) {
	s := NewSet(addrA)
	all := s.All()
	all[0] = addrB
	if got, _ := s.At(0); got != addrA {
		t.Error("All() returned a mutable reference")
	}
}
