package chat

import "context"

// Identity is an authenticated principal as seen by the chat core.
type Identity struct {
	UserID int64
	Name   string
	Role   string
}

// IdentityGate is the external identity collaborator. The chat core
// never touches credentials itself; it verifies bearer tokens and
// resolves display fields through this interface.
type IdentityGate interface {
	// Authenticate verifies a bearer credential and yields a stable
	// identity. Returns ErrUnauthenticated on failure.
	Authenticate(token string) (Identity, error)

	// Lookup resolves a user id to its display identity.
	Lookup(ctx context.Context, userID int64) (Identity, error)
}
