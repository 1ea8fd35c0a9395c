package models

import "errors"

// Domain errors returned by the core. Handlers map these to typed API error
// codes; anything not in this list is treated as internal.
var (
	ErrValidation       = errors.New("validation error")
	ErrTemplateNotFound = errors.New("template not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrSessionConflict  = errors.New("an active session already exists for this actor and template")
	ErrInvalidState     = errors.New("operation not allowed in current session state")
	ErrInvalidStep      = errors.New("interaction step does not match the expected step")
	ErrInternal         = errors.New("internal error")
)

// Provider errors. These never leave the provider package: the live
// implementation converts each of them into a fallback invocation.
var (
	ErrProviderTimeout   = errors.New("content provider timed out")
	ErrProviderAuth      = errors.New("content provider rejected credentials")
	ErrProviderMalformed = errors.New("content provider returned malformed output")
)
