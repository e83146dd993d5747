package types

import "fmt"

// Machine-readable error codes returned to API callers. Remote servers
// switch on these to decide whether a failure is permanent.
const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeRequestVariableMissing = "REQUEST_VARIABLE_MISSING"
	CodeInvalidZulipServer     = "INVALID_ZULIP_SERVER"
	CodeInvalidPushDeviceToken = "INVALID_REMOTE_PUSH_DEVICE_TOKEN"
	CodeTokenDoesNotExist      = "TOKEN_DOES_NOT_EXIST"
	CodeDataOutOfOrder         = "DATA_OUT_OF_ORDER"
	CodeDuplicateRegistration  = "DUPLICATE_REGISTRATION"
)

// APIError is an error with an HTTP status and a machine-readable code.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s [code: %s]", e.Status, e.Message, e.Code)
}

// BadRequest builds a generic 400 error.
func BadRequest(format string, args ...interface{}) *APIError {
	return &APIError{Status: 400, Code: CodeBadRequest, Message: fmt.Sprintf(format, args...)}
}

// MissingVariable reports a required request field that was absent.
func MissingVariable(name string) *APIError {
	return &APIError{Status: 400, Code: CodeRequestVariableMissing, Message: fmt.Sprintf("Missing '%s' argument", name)}
}

// InvalidServerKey reports failed credential validation for an org id.
func InvalidServerKey(orgID string) *APIError {
	return &APIError{Status: 401, Code: CodeInvalidZulipServer, Message: fmt.Sprintf("Zulip server auth failure: key does not match role %s", orgID)}
}

// Fixed error values used across services and handlers.
var (
	ErrTokenNotFound = &APIError{Status: 404, Code: CodeTokenDoesNotExist, Message: "Token does not exist"}

	// ErrInvalidPushDeviceToken is surfaced verbatim through the
	// test-notification endpoint so the originating device can see it.
	ErrInvalidPushDeviceToken = &APIError{Status: 404, Code: CodeInvalidPushDeviceToken, Message: "Device not recognized by the push bouncer"}

	ErrDataOutOfOrder        = &APIError{Status: 400, Code: CodeDataOutOfOrder, Message: "Data is out of order."}
	ErrDuplicateRegistration = &APIError{Status: 400, Code: CodeDuplicateRegistration, Message: "Duplicate registration detected."}
	ErrMalformedAuditLog     = &APIError{Status: 400, Code: CodeBadRequest, Message: "Malformed audit log data"}
)
