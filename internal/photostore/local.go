package photostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore keeps photos on disk under root and serves them below serveRoot.
type LocalStore struct {
	serveRoot *url.URL
	root      string
}

func NewLocalStore(root string, serveRoot *url.URL) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create photo root: %w", err)
	}
	return &LocalStore{serveRoot: serveRoot, root: root}, nil
}

// Root is the directory photos are written to.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Upload(_ context.Context, r io.Reader, obj Object) (*Stored, error) {
	// The uuid suffix keeps names unique even when two uploads share a name and second
	name := sanitize(obj.Name) + "_" + uuid.NewString() + obj.Ext

	f, err := os.Create(filepath.Join(s.root, name))
	if err != nil {
		return nil, fmt.Errorf("create photo file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("save photo file: %w", err)
	}

	return &Stored{URL: s.serveRoot.JoinPath(name).String(), Key: name}, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid photo key %q", key)
	}
	err := os.Remove(filepath.Join(s.root, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "photo"
	}
	return b.String()
}
