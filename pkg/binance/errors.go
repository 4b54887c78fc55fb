package binance

import (
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"mbxkit/pkg/core"
)

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// parseError turns a 4xx/5xx response into a *core.ExchangeError. Bodies
// that are not Binance's {"code","msg"} shape are kept as the message.
func parseError(status int, body []byte) *core.ExchangeError {
	var apiErr apiError
	if err := sonic.Unmarshal(body, &apiErr); err != nil || (apiErr.Code == 0 && apiErr.Msg == "") {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return core.NewExchangeError(classifyStatus(status), status, 0, msg)
	}

	errType := mapErrorCode(apiErr.Code)
	if errType == core.ErrorTypeUnknown {
		errType = classifyStatus(status)
	}
	return core.NewExchangeError(errType, status, apiErr.Code, apiErr.Msg)
}

func classifyStatus(status int) core.ErrorType {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		return core.ErrorTypeRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrorTypeAuthentication
	case status == http.StatusNotFound:
		return core.ErrorTypeNotFound
	case status >= http.StatusInternalServerError:
		return core.ErrorTypeServerError
	case status >= http.StatusBadRequest:
		return core.ErrorTypeBadRequest
	default:
		return core.ErrorTypeUnknown
	}
}

func mapErrorCode(code int) core.ErrorType {
	switch code {
	case -1003, -1015:
		return core.ErrorTypeRateLimit
	case -1002, -1021, -1022, -2014, -2015:
		return core.ErrorTypeAuthentication
	case -2013:
		return core.ErrorTypeNotFound
	case -2010, -2011:
		return core.ErrorTypeInvalidOrder
	case -1000, -1001, -1006, -1007:
		return core.ErrorTypeServerError
	default:
		if code <= -1100 && code > -2000 {
			return core.ErrorTypeBadRequest
		}
		if code <= -2000 && code > -3000 {
			return core.ErrorTypeInvalidOrder
		}
		return core.ErrorTypeUnknown
	}
}

// isServerFault reports whether a status should count against the circuit
// breaker. Client errors say nothing about the health of the endpoint.
func isServerFault(status int) bool {
	return status >= http.StatusInternalServerError ||
		status == http.StatusTooManyRequests ||
		status == http.StatusTeapot
}
