// Package photostore writes attendance photos to a binary object store.
package photostore

import (
	"context"
	"io"
)

// Object describes a photo to store.
type Object struct {
	// Name is a readable, unique-enough base name, without extension.
	Name string
	// Ext is the file extension including the dot, for example ".jpg".
	Ext  string
	Tags []string
}

// Stored is where an object ended up.
type Stored struct {
	URL string
	// Key addresses the object for deletion.
	Key string
}

// Store is implemented by the local disk and Cloudinary backends.
type Store interface {
	Upload(ctx context.Context, r io.Reader, obj Object) (*Stored, error)
	Delete(ctx context.Context, key string) error
}
