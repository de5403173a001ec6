package metrics

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mtlprog/basket/internal/domain"
)

var (
	basketAddr = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	compX      = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	compY      = common.HexToAddress("0x00000000000000000000000000000000000000e2")
)

func TestPublishCountsPerComponent(t *testing.T) {
	s := NewService()
	s.Publish(context.Background(), []domain.UnitAdjusted{
		{Basket: basketAddr, Component: compX, Balance: uint256.NewInt(1), PreviousUnit: big.NewInt(1), NewUnit: big.NewInt(2)},
		{Basket: basketAddr, Component: compY, Balance: uint256.NewInt(1), PreviousUnit: big.NewInt(1), NewUnit: big.NewInt(2)},
		{Basket: basketAddr, Component: compX, Balance: uint256.NewInt(1), PreviousUnit: big.NewInt(1), NewUnit: big.NewInt(2)},
	})

	if got := testutil.ToFloat64(s.adjustments.WithLabelValues(label(basketAddr), label(compX))); got != 2 {
		t.Errorf("compX adjustments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.adjustments.WithLabelValues(label(basketAddr), label(compY))); got != 1 {
		t.Errorf("compY adjustments = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.lastAdjust.WithLabelValues(label(basketAddr))); got == 0 {
		t.Error("last adjustment timestamp not set")
	}
}

func TestObserveRejectionUsesErrorCode(t *testing.T) {
	s := NewService()
	s.ObserveRejection(basketAddr, fmt.Errorf("component x: %w", domain.ErrBelowCurrent))
	s.ObserveRejection(basketAddr, domain.ErrBelowCurrent)
	s.ObserveRejection(basketAddr, errors.New("connection reset"))
	s.ObserveRejection(basketAddr, nil)

	if got := testutil.ToFloat64(s.rejections.WithLabelValues(label(basketAddr), "BELOW_CURRENT")); got != 2 {
		t.Errorf("BELOW_CURRENT = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.rejections.WithLabelValues(label(basketAddr), "INTERNAL")); got != 1 {
		t.Errorf("INTERNAL = %v, want 1", got)
	}
}

func TestObserveDrift(t *testing.T) {
	s := NewService()
	half := new(big.Int).Div(domain.PreciseUnit, big.NewInt(2))
	s.ObserveDrift(basketAddr, []domain.ComponentSnapshot{{
		Component:          compX,
		Balance:            uint256.NewInt(0),
		CurrentRealUnit:    new(big.Int).Set(domain.PreciseUnit),
		CalculatedRealUnit: new(big.Int).Add(domain.PreciseUnit, half),
	}})

	if got := testutil.ToFloat64(s.drift.WithLabelValues(label(basketAddr), label(compX))); got != 0.5 {
		t.Errorf("drift = %v, want 0.5", got)
	}
}

func TestKeeperRuns(t *testing.T) {
	s := NewService()
	s.ObserveKeeperRun(nil)
	s.ObserveKeeperRun(errors.New("boom"))
	s.ObserveKeeperRun(nil)

	if got := testutil.ToFloat64(s.keeperRuns.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.keeperRuns.WithLabelValues("error")); got != 1 {
		t.Errorf("error runs = %v, want 1", got)
	}
}

func TestNilServiceIsNoop(t *testing.T) {
	var s *Service
	s.Publish(context.Background(), nil)
	s.ObserveRejection(basketAddr, domain.ErrZeroSupply)
	s.ObserveDrift(basketAddr, nil)
	s.ObserveKeeperRun(nil)
}

func TestHandlerExposesMetrics(t *testing.T) {
	s := NewService()
	s.ObserveKeeperRun(nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `basket_keeper_runs_total{result="ok"} 1`) {
		t.Errorf("body missing keeper counter:\n%s", rec.Body.String())
	}
}
