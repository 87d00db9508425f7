package blob

import (
	"context"
	"io"
)

// Object is the stored result of an attachment upload, returned to the
// client and later embedded in messages by reference.
type Object struct {
	URL  string
	Name string
	Mime string
	Size int64
}

// Store is the external attachment storage collaborator. The messaging
// core never reads attachment bytes; it only carries Object references.
type Store interface {
	// Put stores the content of r under a new object key and returns
	// the public reference. name is the client-supplied filename kept
	// for display; mime and size describe the payload.
	Put(ctx context.Context, name, mime string, size int64, r io.Reader) (Object, error)
}
