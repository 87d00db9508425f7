package chat

import "errors"

// Domain error taxonomy. Transports map these to their own surface:
// HTTP status codes on the request path, silence on the realtime path.
var (
	// ErrInvalidArgument marks malformed or missing input, such as an
	// empty message or a self-chat attempt.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrForbidden marks an authenticated caller without authorization,
	// such as a non-member send or a policy-restricted direct room.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks a missing record or one the caller has no
	// visibility into; the two are deliberately conflated so that
	// probing cannot reveal whether a room exists.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated marks a missing or invalid credential.
	ErrUnauthenticated = errors.New("unauthenticated")
)
