package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// Callers check for these with errors.Is(); the API layer maps them to HTTP
// status codes.
var (
	// ErrNotAuthorized indicates the acting user may not perform the
	// requested operation on the resource. Maps to HTTP 403.
	ErrNotAuthorized = errors.New("not authorized to perform this operation")

	// ErrFieldNotAllowed indicates a task update touched a field the update
	// policy does not grant to the acting user. Maps to HTTP 403.
	ErrFieldNotAllowed = errors.New("field change not allowed for this user")

	// ErrInvalidCredentials indicates a failed login attempt. Maps to
	// HTTP 401 without distinguishing unknown email from wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
)
