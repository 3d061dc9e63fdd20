package dashboard

import "errors"

// Dashboard service error types
var (
	ErrActionUnavailable = errors.New("action no longer available")
	ErrRoleNotPermitted  = errors.New("action not permitted for this account's role")
)
