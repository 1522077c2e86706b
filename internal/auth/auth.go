package auth

import (
	"net/http"

	"priceguard/internal/models"
)

// Principal identifies the caller. Authentication happens upstream of
// this service; the trusted proxy injects the identity header.
type Principal struct {
	UserID string
}

const userHeader = "X-User-ID"

// FromRequest extracts the caller identity. An empty principal means the
// request is anonymous and may only touch public data.
func FromRequest(r *http.Request) Principal {
	return Principal{UserID: r.Header.Get(userHeader)}
}

// Authorized reports whether the principal may read or write rows owned
// by ownerID. This is the row-level policy: a principal only touches its
// own rows.
func (p Principal) Authorized(ownerID string) bool {
	return p.UserID != "" && p.UserID == ownerID
}

// Require returns ErrForbidden unless the principal owns the rows.
func (p Principal) Require(ownerID string) error {
	if !p.Authorized(ownerID) {
		return models.ErrForbidden
	}
	return nil
}
