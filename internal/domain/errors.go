package domain

import "errors"

// Authorization failures.
var (
	ErrUnauthorized = errors.New("caller is not the basket manager or an operator")
	ErrNotManager   = errors.New("caller is not the basket manager")
	ErrNotOwner     = errors.New("caller is not the registry owner")
)

// Basket state failures.
var (
	ErrInvalidBasket              = errors.New("basket is not valid and initialized")
	ErrBasketNotPending           = errors.New("basket module is not pending initialization")
	ErrBasketNotControllerEnabled = errors.New("basket is not controller-enabled")
)

// Request shape failures.
var (
	ErrEmptyComponentList = errors.New("component list is empty")
	ErrLengthMismatch     = errors.New("component and unit lists differ in length")
	ErrInvalidComponent   = errors.New("component is the zero address")
)

// Numeric and policy failures.
var (
	ErrZeroSupply      = errors.New("basket total supply is zero")
	ErrNegativeRequest = errors.New("requested unit is negative")
	ErrBelowCurrent    = errors.New("requested unit does not exceed current unit")
	ErrAboveCalculated = errors.New("requested unit exceeds balance-implied unit")
)

// Module guard failures.
var (
	ErrModulePaused  = errors.New("module paused")
	ErrReentrantCall = errors.New("adjustment already in progress")
)

// errorCodes maps every sentinel to the stable reason code exposed to off-chain callers.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrUnauthorized, "UNAUTHORIZED"},
	{ErrNotManager, "NOT_MANAGER"},
	{ErrNotOwner, "NOT_OWNER"},
	{ErrInvalidBasket, "INVALID_BASKET"},
	{ErrBasketNotPending, "BASKET_NOT_PENDING"},
	{ErrBasketNotControllerEnabled, "BASKET_NOT_CONTROLLER_ENABLED"},
	{ErrEmptyComponentList, "EMPTY_COMPONENT_LIST"},
	{ErrLengthMismatch, "LENGTH_MISMATCH"},
	{ErrInvalidComponent, "INVALID_COMPONENT"},
	{ErrZeroSupply, "ZERO_SUPPLY"},
	{ErrNegativeRequest, "NEGATIVE_REQUEST"},
	{ErrBelowCurrent, "BELOW_CURRENT"},
	{ErrAboveCalculated, "ABOVE_CALCULATED"},
	{ErrModulePaused, "MODULE_PAUSED"},
	{ErrReentrantCall, "REENTRANT_CALL"},
	{ErrUnitOverflow, "UNIT_OVERFLOW"},
}

// ErrorCode returns the reason code for err, or "INTERNAL" when err is not part of the taxonomy.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "INTERNAL"
}

// IsRejection reports whether err is a named policy rejection rather than an infrastructure failure.
func IsRejection(err error) bool {
	code := ErrorCode(err)
	return code != "" && code != "INTERNAL"
}
