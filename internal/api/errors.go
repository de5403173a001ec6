package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mtlprog/basket/internal/basket"
	"github.com/mtlprog/basket/internal/domain"
	"github.com/mtlprog/basket/internal/operator"
)

// localCodes covers errors outside the domain taxonomy.
var localCodes = []struct {
	err  error
	code string
}{
	{basket.ErrNotFound, "BASKET_NOT_FOUND"},
	{operator.ErrOperatorNotFound, "OPERATOR_NOT_FOUND"},
	{operator.ErrOperatorExists, "OPERATOR_EXISTS"},
	{operator.ErrInvalidOperator, "INVALID_OPERATOR"},
}

var statuses = map[string]int{
	"UNAUTHORIZED":                  http.StatusForbidden,
	"NOT_MANAGER":                   http.StatusForbidden,
	"NOT_OWNER":                     http.StatusForbidden,
	"BASKET_NOT_FOUND":              http.StatusNotFound,
	"OPERATOR_NOT_FOUND":            http.StatusNotFound,
	"OPERATOR_EXISTS":               http.StatusConflict,
	"REENTRANT_CALL":                http.StatusConflict,
	"INVALID_BASKET":                http.StatusConflict,
	"BASKET_NOT_PENDING":            http.StatusConflict,
	"BASKET_NOT_CONTROLLER_ENABLED": http.StatusConflict,
	"MODULE_PAUSED":                 http.StatusServiceUnavailable,
	"EMPTY_COMPONENT_LIST":          http.StatusBadRequest,
	"LENGTH_MISMATCH":               http.StatusBadRequest,
	"INVALID_COMPONENT":             http.StatusBadRequest,
	"NEGATIVE_REQUEST":              http.StatusBadRequest,
	"INVALID_OPERATOR":              http.StatusBadRequest,
	"ZERO_SUPPLY":                   http.StatusUnprocessableEntity,
	"BELOW_CURRENT":                 http.StatusUnprocessableEntity,
	"ABOVE_CALCULATED":              http.StatusUnprocessableEntity,
	"UNIT_OVERFLOW":                 http.StatusUnprocessableEntity,
}

func errorCode(err error) string {
	for _, lc := range localCodes {
		if errors.Is(err, lc.err) {
			return lc.code
		}
	}
	return domain.ErrorCode(err)
}

func statusFor(code string) int {
	if s, ok := statuses[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeFailure maps err to a status and reason code. Internal failures are
// logged and their message is not exposed.
func writeFailure(w http.ResponseWriter, op string, err error) {
	code := errorCode(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", "error", err)
		writeJSON(w, status, errorBody{Error: "internal error", Code: "INTERNAL"})
		return
	}
	slog.Warn(op+" rejected", "code", code, "error", err)
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}
