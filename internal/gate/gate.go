// Package gate implements the admin capability check that guards every
// privileged operation.
package gate

import (
	"crypto/subtle"
	"fmt"

	"github.com/token-gate/internal/types"
)

// Capability proves a successful admin authorization. Only this package
// can mint one; holders pass it to admin-gated core operations.
type Capability struct {
	granted bool
}

// Valid reports whether the capability was minted by Authorize.
func (c Capability) Valid() bool {
	return c.granted
}

// AdminGate authorizes bearer tokens against the configured admin secret.
type AdminGate struct {
	secret []byte
}

// NewAdminGate creates the gate. An empty secret is a hard
// misconfiguration: the gate must fail closed, never open.
func NewAdminGate(secret string) (*AdminGate, error) {
	if secret == "" {
		return nil, fmt.Errorf("admin secret is not configured")
	}
	return &AdminGate{secret: []byte(secret)}, nil
}

// Authorize compares the presented token against the secret in constant
// time and returns a capability on success.
func (g *AdminGate) Authorize(token string) (Capability, error) {
	if subtle.ConstantTimeCompare([]byte(token), g.secret) != 1 {
		return Capability{}, &types.ServiceError{
			Code:    types.CodeUnauthorized,
			Message: "invalid admin token",
		}
	}
	return Capability{granted: true}, nil
}
