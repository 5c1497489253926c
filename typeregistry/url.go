package typeregistry

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// URLFor returns the canonical type URL for the given message name, which is
// the name prefixed with a slash.
func URLFor(name protoreflect.FullName) string {
	return "/" + string(name)
}

// NameFromURL extracts the fully-qualified message name from the given URL. The
// last path component is the name. For canonical URLs this is everything after
// the leading slash.
func NameFromURL(url string) protoreflect.FullName {
	pos := strings.LastIndexByte(url, '/')
	return protoreflect.FullName(url[pos+1:])
}

// ValidateURL returns an error if url is not in canonical form. Canonical URLs
// start with a slash followed by a package-qualified message name.
func ValidateURL(url string) error {
	if !strings.HasPrefix(url, "/") {
		return fmt.Errorf("type URL %q must start with '/'", url)
	}
	name := protoreflect.FullName(url[1:])
	if !name.IsValid() {
		return fmt.Errorf("type URL %q does not name a valid message", url)
	}
	if name.Parent() == "" {
		return fmt.Errorf("type URL %q is missing a package", url)
	}
	return nil
}
