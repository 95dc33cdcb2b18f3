package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a structured error response from the table API.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Error codes the backend uses for an expired or invalid bearer token.
const (
	codeJWTExpired = "PGRST301"
	codeJWTInvalid = "PGRST303"
)

// IsAuthExpired reports whether err is the authentication-expiry class:
// recoverable by refreshing the token and retrying the same query. Matched by
// code or by the "JWT" message substring, the same way the backend surfaces it.
func IsAuthExpired(err error) bool {
	if err == nil {
		return false
	}
	var be *Error
	if errors.As(err, &be) {
		if be.Code == codeJWTExpired || be.Code == codeJWTInvalid {
			return true
		}
		return strings.Contains(be.Message, "JWT")
	}
	return strings.Contains(err.Error(), "JWT")
}
