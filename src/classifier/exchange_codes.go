package classifier

import "fmt"

// exchangeCode describes one broker business error.
type exchangeCode struct {
	Name      string
	Transient bool
}

// phemexCodes maps Phemex bizError codes to their names. Transient codes are
// the ones where resubmitting the same order later can succeed.
var phemexCodes = map[int]exchangeCode{
	11001: {Name: "TE_SUCCESS"},
	11002: {Name: "TE_UNKNOWN_ERROR", Transient: true},
	11003: {Name: "TE_INVALID_ARGUMENT"},
	11005: {Name: "TE_MAINTENANCE_MODE", Transient: true},
	11011: {Name: "TE_REDUCE_ONLY_ABORT"},
	11012: {Name: "TE_REPLACE_TO_INVALID_QTY"},
	11013: {Name: "TE_REPLACE_TO_INVALID_PRICE"},
	11014: {Name: "TE_REPLACE_TO_INVALID_LEVERAGE"},
	11015: {Name: "TE_PRICE_TOO_SMALL"}, // below tick size
	11016: {Name: "TE_PRICE_TOO_LARGE"},
	11017: {Name: "TE_QTY_TOO_SMALL"},
	11018: {Name: "TE_QTY_TOO_LARGE"},
	11019: {Name: "TE_VALUE_TOO_SMALL"}, // price x qty
	11020: {Name: "TE_VALUE_TOO_LARGE"},
	11021: {Name: "TE_TOTAL_ORDER_VALUE_TOO_LARGE"},
	11022: {Name: "TE_STOP_PRICE_INVALID"},
	11037: {Name: "TE_USER_NOT_EXIST"},
	11040: {Name: "TE_MARGIN_ACCOUNT_NOT_EXIST"},
	11041: {Name: "TE_MARGIN_ACCOUNT_FROZEN"},
	11050: {Name: "TE_RISK_LIMIT_EXCEEDED"},
	11051: {Name: "TE_INSUFFICIENT_BALANCE"},
	11052: {Name: "TE_INSUFFICIENT_MARGIN"},
	11060: {Name: "TE_POSITION_MISMATCH"},
	11061: {Name: "TE_POSITION_MARGIN_INVALID"},
	11062: {Name: "TE_POSITION_NOT_EXIST"},
	11063: {Name: "TE_TPSL_TOO_SMALL"},
	11064: {Name: "TE_TPSL_TOO_LARGE"},
	11065: {Name: "TE_TPSL_INVALID_TYPE"},
	11066: {Name: "TE_ORDER_UNSUPPORTED"},
	11067: {Name: "TE_ORDER_DISABLED"},
	11070: {Name: "TE_MARKET_CLOSED", Transient: true},
	11071: {Name: "TE_RESTRICTED_REGION"},
	11081: {Name: "TE_CLIENT_ID_EXIST"},
	11082: {Name: "TE_CLIENT_ID_INVALID"},
	11100: {Name: "TE_TOO_MANY_ORDERS", Transient: true},
	11101: {Name: "TE_TOO_MANY_ORDERS_PER_SIDE", Transient: true},
	11102: {Name: "TE_TOO_MANY_ORDERS_PER_PRICE", Transient: true},
	11103: {Name: "TE_FUTURES_INVALID_MARGIN_ACCOUNT"},
	11104: {Name: "TE_FUTURES_INVALID_POSITION"},
	11120: {Name: "TE_CONTRACT_NOT_FOUND"},
	11121: {Name: "TE_CONTRACT_NOT_ALLOWED"},
}

// configurationCodes are broker errors caused by our own account or
// instrument setup rather than by the order itself.
var configurationCodes = map[int]bool{
	11037: true,
	11040: true,
	11071: true,
	11103: true,
	11120: true,
	11121: true,
}

// ExchangeError is a business error returned by a broker API.
type ExchangeError struct {
	Exchange   string
	Code       int
	Message    string
	HTTPStatus int
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s error %d (%s): %s", e.Exchange, e.Code, CodeName(e.Code), e.Message)
}

// CodeName returns a human-readable name for a broker error code.
// Unknown codes get a generic name that still carries the number.
func CodeName(code int) string {
	if c, ok := phemexCodes[code]; ok {
		return c.Name
	}
	return fmt.Sprintf("UNKNOWN_EXCHANGE_ERROR_%d", code)
}
