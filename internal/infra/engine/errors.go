package engine

import (
	"net/http"

	"github.com/vietddude/exporter/internal/core/domain"
)

// errorBody is the error envelope the engine returns on failed queries.
type errorBody struct {
	Error *struct {
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Storage backend error codes the engine passes through for type "clickhouse".
var clickhouseCodes = map[int]domain.FailureKind{
	10:  domain.FailureMissingColumn,
	43:  domain.FailureIllegalArgumentType,
	47:  domain.FailureMissingColumn,
	62:  domain.FailureQuerySizeExceeded,
	160: domain.FailureExecutionTimeMaximum,
	202: domain.FailureTooManySimultaneous,
	241: domain.FailureMemoryLimitExceeded,
	271: domain.FailureDatasetSelection,
	279: domain.FailureConnectionFailed,
}

// ClassifyResponse maps an engine error response to a failure kind.
func ClassifyResponse(status int, errType string, code int) domain.FailureKind {
	switch errType {
	case "rate-limited":
		return domain.FailureRateLimitExceeded
	case "schema":
		return domain.FailureSchemaValidationError
	case "invalid_query":
		return domain.FailureUnqualifiedQuery
	case "clickhouse":
		if kind, ok := clickhouseCodes[code]; ok {
			return kind
		}
		return domain.FailureQueryExecutionError
	}
	if status == http.StatusTooManyRequests {
		return domain.FailureRateLimitExceeded
	}
	return domain.FailureOther
}
