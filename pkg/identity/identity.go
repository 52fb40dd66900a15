// Package identity carries the already-authenticated caller through the
// core. Credential validation happens upstream; the core only consumes
// the result.
package identity

// Customer identifies the caller of a customer-facing operation.
type Customer struct {
	ID    string
	Admin bool
}

// Owns reports whether the customer may touch an entity owned by userID.
// Administrators bypass ownership checks.
func (c Customer) Owns(userID string) bool {
	return c.Admin || c.ID == userID
}
