package exportapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FallbackMessage is reported when a failed response carries no usable
// error text.
const FallbackMessage = "Export failed"

// EndpointError represents a non-2xx response from the export endpoint.
type EndpointError struct {
	StatusCode int
	Message    string
}

func (e *EndpointError) Error() string {
	return e.Message
}

// Detail returns the message together with the HTTP status, for logs.
func (e *EndpointError) Detail() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// failureMessage extracts the error field of a failure body. Unparseable
// bodies and a missing or blank field yield FallbackMessage.
func failureMessage(body []byte) string {
	var fb failureBody
	if err := json.Unmarshal(body, &fb); err != nil {
		return FallbackMessage
	}
	if fb.Error == nil || strings.TrimSpace(*fb.Error) == "" {
		return FallbackMessage
	}
	return *fb.Error
}
