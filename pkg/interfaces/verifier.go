package interfaces

import "blindrelay/pkg/types"

// Verifier turns an opaque credential into a verified identity. An
// unverifiable credential yields ErrUnverified, never a fabricated identity.
type Verifier interface {
	Verify(credential string) (*types.Identity, error)
}
