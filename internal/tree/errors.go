package tree

import (
	"errors"
	"fmt"
)

// ErrInvalidPath is the root of the directory-tree error taxonomy: a
// path was not well formed, or the store misbehaved in a way that
// isn't one of the more specific errors below. NoSuchDirectory and
// NoSuchFile are subsets of it: every error a Tree operation returns
// satisfies errors.Is(err, ErrInvalidPath). Errors from the
// constructors (New, NewInMemory) are not wrapped this way.
var ErrInvalidPath = errors.New("invalid path")

// ErrNoSuchDirectory means a path segment did not resolve to an
// existing directory.
var ErrNoSuchDirectory = errors.New("no such directory")

// ErrNoSuchFile means a file lookup or delete found nothing matching.
var ErrNoSuchFile = errors.New("no such file")

// ErrAlreadyExists means a create would produce a second node with
// the same (parent, name) in the same directory.
var ErrAlreadyExists = errors.New("already exists")

func noSuchDirectoryErr(path string) error {
	return fmt.Errorf("%w: %w: %s", ErrInvalidPath, ErrNoSuchDirectory, path)
}

func noSuchFileErr(path, filename string) error {
	return fmt.Errorf("%w: %w: %s/%s", ErrInvalidPath, ErrNoSuchFile, path, filename)
}

func alreadyExistsErr(path, name string) error {
	return fmt.Errorf("%w: %w: %s/%s", ErrInvalidPath, ErrAlreadyExists, path, name)
}

func invalidErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidPath, err)
}
