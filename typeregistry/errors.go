package typeregistry

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/reflect/protoregistry"
)

// ErrUnknownTypeURL is the sentinel matched (via errors.Is) by every error the
// registry returns for a URL that has not been registered.
var ErrUnknownTypeURL = errors.New("unknown type URL")

// UnknownTypeURLError reports a lookup of a URL that is not in the registry.
//
// It matches both ErrUnknownTypeURL and protoregistry.NotFound, so the protobuf
// runtime treats it like any other unresolvable type when the registry is used
// as a resolver.
type UnknownTypeURLError struct {
	URL string
}

func (e *UnknownTypeURLError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnknownTypeURL, e.URL)
}

// Is lets errors.Is match ErrUnknownTypeURL and protoregistry.NotFound.
func (e *UnknownTypeURLError) Is(target error) bool {
	return target == ErrUnknownTypeURL || target == protoregistry.NotFound
}

// IsUnknownTypeURL returns true if err indicates an unregistered type URL.
func IsUnknownTypeURL(err error) bool {
	return errors.Is(err, ErrUnknownTypeURL)
}
