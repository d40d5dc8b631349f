// Package pathresolve parses slash-separated logical paths and walks
// them against a directory lookup to obtain a stable node id.
package pathresolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoSuchDirectory is returned when a path segment does not resolve
// to an existing directory.
var ErrNoSuchDirectory = errors.New("no such directory")

// Lookup resolves a single path segment under parent to a directory
// node id. ok is false when no directory named name exists under
// parent.
type Lookup[ID any] interface {
	LookupDir(ctx context.Context, parent ID, name string) (id ID, ok bool, err error)
}

// Split normalizes a slash-separated path into its non-empty
// segments. Leading/trailing slashes are stripped and empty segments
// (from repeated slashes) are discarded. The empty string and "/"
// both split to an empty slice, denoting root.
func Split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// Resolve walks path left to right starting at root, using lookup to
// find each intermediate directory. It never creates nodes.
func Resolve[ID any](ctx context.Context, root ID, path string, lookup Lookup[ID]) (ID, error) {
	current := root
	for _, segment := range Split(path) {
		next, ok, err := lookup.LookupDir(ctx, current, segment)
		if err != nil {
			var zero ID
			return zero, err
		}
		if !ok {
			var zero ID
			return zero, fmt.Errorf("%w: %s", ErrNoSuchDirectory, path)
		}
		current = next
	}
	return current, nil
}
