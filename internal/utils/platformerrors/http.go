package platformerrors

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HTTPErrorResponse represents the standard error response format.
type HTTPErrorResponse struct {
	Error *HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail contains error details for HTTP responses.
type HTTPErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError writes any error as an HTTP response. Typed domain errors keep their
// own message; platform errors are logged and rendered with their UUID.
func WriteError(c *gin.Context, err error, log zerolog.Logger) {
	errorType := TypeOf(err)
	detail := &HTTPErrorDetail{
		Message:   err.Error(),
		Type:      errorTypeToString(errorType),
		RequestID: getRequestIDFromContext(c.Request.Context()),
	}

	if platformErr := GetPlatformError(err); platformErr != nil {
		LogError(log, platformErr)
		detail.Code = platformErr.UUID
		if platformErr.RequestID != "" {
			detail.RequestID = platformErr.RequestID
		}
		if errorType == ErrorTypeDatabaseError || errorType == ErrorTypeInternal {
			detail.Message = platformErr.Message
		}
	}

	c.AbortWithStatusJSON(ErrorTypeToHTTPStatus(errorType), HTTPErrorResponse{Error: detail})
}

// WriteValidationError writes a 400 Bad Request response.
func WriteValidationError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(ErrorTypeToHTTPStatus(ErrorTypeValidation), HTTPErrorResponse{
		Error: &HTTPErrorDetail{
			Message:   message,
			Type:      errorTypeToString(ErrorTypeValidation),
			RequestID: getRequestIDFromContext(c.Request.Context()),
		},
	})
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(ErrorTypeToHTTPStatus(ErrorTypeUnauthorized), HTTPErrorResponse{
		Error: &HTTPErrorDetail{
			Message: message,
			Type:    errorTypeToString(ErrorTypeUnauthorized),
		},
	})
}

func errorTypeToString(t ErrorType) string {
	switch t {
	case ErrorTypeNotFound:
		return "not_found_error"
	case ErrorTypeValidation:
		return "validation_error"
	case ErrorTypeConflict:
		return "conflict_error"
	case ErrorTypeUnauthorized:
		return "unauthorized_error"
	case ErrorTypeForbidden:
		return "forbidden_error"
	case ErrorTypeNotImplemented:
		return "not_implemented_error"
	case ErrorTypeUnavailable:
		return "unavailable_error"
	case ErrorTypeExternal:
		return "external_error"
	case ErrorTypeDatabaseError:
		return "database_error"
	case ErrorTypeInternal:
		fallthrough
	default:
		return "internal_error"
	}
}

// HTTPCommittedResponse carries the result of a mutation that committed even
// though a later step of the same request failed.
type HTTPCommittedResponse struct {
	Data  any              `json:"data"`
	Error *HTTPErrorDetail `json:"error"`
}

// WriteErrorWithData writes err with the status of its type alongside data.
func WriteErrorWithData(c *gin.Context, data any, err error, log zerolog.Logger) {
	errorType := TypeOf(err)
	log.Warn().Err(err).Str("path", c.FullPath()).Msg("mutation committed but follow-up failed")
	c.AbortWithStatusJSON(ErrorTypeToHTTPStatus(errorType), HTTPCommittedResponse{
		Data: data,
		Error: &HTTPErrorDetail{
			Message:   err.Error(),
			Type:      errorTypeToString(errorType),
			RequestID: getRequestIDFromContext(c.Request.Context()),
		},
	})
}
