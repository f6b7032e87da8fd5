package errors

import (
	"net/http"
	"strings"
)

// ErrorCode identifies a failure category. Codes are grouped by module prefix
// so that logs and metrics can be aggregated per subsystem.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// CodeOK is the sentinel returned by GetCode for a nil error.
const CodeOK ErrorCode = "OK"

// Common error codes.
const (
	ErrCodeUnknown            ErrorCode = "COMMON_000"
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeValidation         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_007"
	ErrCodeSerialization      ErrorCode = "COMMON_008"
	ErrCodeNotImplemented     ErrorCode = "COMMON_009"
)

// Selection module error codes.
const (
	// ErrCodeInvalidSelection: the number of selected fragments does not match
	// the requested elaboration mode (grow=1, link=2).
	ErrCodeInvalidSelection ErrorCode = "SEL_001"
	// ErrCodeInvalidMode: elaboration mode string is neither "grow" nor "link".
	ErrCodeInvalidMode ErrorCode = "SEL_002"
	// ErrCodeUnknownFragment: a selected name or index is not in the library.
	ErrCodeUnknownFragment ErrorCode = "SEL_003"
)

// Elaboration loading error codes.
const (
	// ErrCodeElaborationNotFound: no structure file exists for the resolved key.
	ErrCodeElaborationNotFound ErrorCode = "ELAB_001"
	ErrCodeElaborationRead     ErrorCode = "ELAB_002"
	ErrCodeLibraryLoad         ErrorCode = "ELAB_003"
)

// Screening (property filter) error codes.
const (
	ErrCodeDescriptorFailed ErrorCode = "SCRN_001"
	ErrCodeCatalogFailed    ErrorCode = "SCRN_002"
)

// Pose generation error codes.
const (
	// ErrCodeMissingProvenance: candidate carries neither a single- nor a
	// two-fragment provenance tag.
	ErrCodeMissingProvenance ErrorCode = "POSE_001"
	// ErrCodeEmbeddingFailed: conformer embedding did not converge. Recoverable
	// per candidate; batch processing skips and reports.
	ErrCodeEmbeddingFailed ErrorCode = "POSE_002"
	ErrCodeAlignmentFailed ErrorCode = "POSE_003"
	ErrCodeScoringFailed   ErrorCode = "POSE_004"
	ErrCodeNoConformers    ErrorCode = "POSE_005"
	ErrCodeUnknownStrategy ErrorCode = "POSE_006"
)

// Chemistry toolkit error codes.
const (
	ErrCodeStructureParse       ErrorCode = "CHEM_001"
	ErrCodeInvalidStructure     ErrorCode = "CHEM_002"
	ErrCodeNoCommonSubstructure ErrorCode = "CHEM_003"
	ErrCodeGeometryFailed       ErrorCode = "CHEM_004"
)

// Run store and infrastructure error codes.
const (
	ErrCodeDatabase    ErrorCode = "STORE_001"
	ErrCodeObjectStore ErrorCode = "STORE_002"
	ErrCodeCache       ErrorCode = "STORE_003"
	ErrCodeVectorIndex ErrorCode = "STORE_004"
	ErrCodeMessaging   ErrorCode = "STORE_005"
	ErrCodeGraphStore  ErrorCode = "STORE_006"
	ErrCodeRunNotFound ErrorCode = "STORE_007"
)

// ErrorCodeHTTPStatus maps every ErrorCode to the HTTP status returned by the
// API layer. Codes absent from the map default to 500.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeSerialization:      http.StatusBadRequest,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeInvalidSelection: http.StatusBadRequest,
	ErrCodeInvalidMode:      http.StatusBadRequest,
	ErrCodeUnknownFragment:  http.StatusNotFound,

	ErrCodeElaborationNotFound: http.StatusNotFound,
	ErrCodeElaborationRead:     http.StatusUnprocessableEntity,
	ErrCodeLibraryLoad:         http.StatusUnprocessableEntity,

	ErrCodeDescriptorFailed: http.StatusUnprocessableEntity,
	ErrCodeCatalogFailed:    http.StatusInternalServerError,

	ErrCodeMissingProvenance: http.StatusUnprocessableEntity,
	ErrCodeEmbeddingFailed:   http.StatusUnprocessableEntity,
	ErrCodeAlignmentFailed:   http.StatusUnprocessableEntity,
	ErrCodeScoringFailed:     http.StatusUnprocessableEntity,
	ErrCodeNoConformers:      http.StatusUnprocessableEntity,
	ErrCodeUnknownStrategy:   http.StatusBadRequest,

	ErrCodeStructureParse:       http.StatusUnprocessableEntity,
	ErrCodeInvalidStructure:     http.StatusUnprocessableEntity,
	ErrCodeNoCommonSubstructure: http.StatusUnprocessableEntity,
	ErrCodeGeometryFailed:       http.StatusUnprocessableEntity,

	ErrCodeDatabase:    http.StatusInternalServerError,
	ErrCodeObjectStore: http.StatusInternalServerError,
	ErrCodeCache:       http.StatusInternalServerError,
	ErrCodeVectorIndex: http.StatusInternalServerError,
	ErrCodeMessaging:   http.StatusInternalServerError,
	ErrCodeGraphStore:  http.StatusInternalServerError,
	ErrCodeRunNotFound: http.StatusNotFound,
}

// ErrorCodeMessage supplies the default human-readable message per code, used
// when a layer needs to surface a code without call-site context.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeUnknown:            "unknown error",
	ErrCodeInternal:           "internal error",
	ErrCodeValidation:         "validation failed",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeInvalidSelection: "invalid fragment selection for elaboration mode",
	ErrCodeInvalidMode:      "unrecognized elaboration mode",
	ErrCodeUnknownFragment:  "fragment not present in library",

	ErrCodeElaborationNotFound: "elaboration file not found",
	ErrCodeElaborationRead:     "failed to read elaboration file",
	ErrCodeLibraryLoad:         "failed to load fragment library",

	ErrCodeDescriptorFailed: "descriptor calculation failed",
	ErrCodeCatalogFailed:    "pattern catalog evaluation failed",

	ErrCodeMissingProvenance: "candidate has no fragment provenance",
	ErrCodeEmbeddingFailed:   "conformer embedding did not converge",
	ErrCodeAlignmentFailed:   "pose alignment failed",
	ErrCodeScoringFailed:     "pose scoring failed",
	ErrCodeNoConformers:      "no conformers generated",
	ErrCodeUnknownStrategy:   "unrecognized posing strategy",

	ErrCodeStructureParse:       "failed to parse structure record",
	ErrCodeInvalidStructure:     "structure failed validity checks",
	ErrCodeNoCommonSubstructure: "no common substructure with reference",
	ErrCodeGeometryFailed:       "geometry operation failed",

	ErrCodeDatabase:    "database operation failed",
	ErrCodeObjectStore: "object storage operation failed",
	ErrCodeCache:       "cache operation failed",
	ErrCodeVectorIndex: "vector index operation failed",
	ErrCodeMessaging:   "message queue operation failed",
	ErrCodeGraphStore:  "lineage graph operation failed",
	ErrCodeRunNotFound: "run not found",
}

// retryableCodes marks codes the worker may retry: transient infrastructure
// failures only. Pipeline semantics never retry (selection, provenance,
// chemistry failures are permanent for a given input).
var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:            true,
	ErrCodeServiceUnavailable: true,
	ErrCodeDatabase:           true,
	ErrCodeObjectStore:        true,
	ErrCodeCache:              true,
	ErrCodeVectorIndex:        true,
	ErrCodeMessaging:          true,
	ErrCodeGraphStore:         true,
}

// HTTPStatusForCode returns the HTTP status for an ErrorCode, defaulting to 500.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether the code maps to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether the code maps to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// IsRetryable reports whether err's code represents a transient infrastructure
// failure that a queue consumer may retry. Errors without an AppError in the
// chain are treated as retryable (unknown infra failure).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	code := GetCode(err)
	if code == ErrCodeUnknown {
		return true
	}
	return retryableCodes[code]
}

// ModuleForCode returns the module prefix of an ErrorCode ("SEL", "POSE", ...).
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
