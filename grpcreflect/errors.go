package grpcreflect

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// elementNotFoundError reports a file or symbol the server does not know. A
// file may be missing because one of its dependencies is, in which case cause
// names that dependency.
type elementNotFoundError struct {
	file   string
	symbol protoreflect.FullName
	cause  *elementNotFoundError
}

func fileNotFound(file string, cause *elementNotFoundError) *elementNotFoundError {
	return &elementNotFoundError{file: file, cause: cause}
}

func symbolNotFound(symbol protoreflect.FullName, cause *elementNotFoundError) *elementNotFoundError {
	return &elementNotFoundError{symbol: symbol, cause: cause}
}

func (e *elementNotFoundError) Error() string {
	var lines []string
	for ; e != nil; e = e.cause {
		if e.symbol != "" {
			lines = append(lines, fmt.Sprintf("symbol not found: %s", e.symbol))
		} else {
			lines = append(lines, fmt.Sprintf("file not found: %s", e.file))
		}
	}
	return strings.Join(lines, "\ncaused by: ")
}

// IsElementNotFoundError determines if the given error indicates that a file
// name or symbol name could not be found by the server.
func IsElementNotFoundError(err error) bool {
	var e *elementNotFoundError
	return errors.As(err, &e)
}

// asNotFound turns a NOT_FOUND status, or a not-found error for a dependency,
// into the not-found error built by wrap. Other errors are returned as is.
func asNotFound(err error, wrap func(cause *elementNotFoundError) *elementNotFoundError) error {
	if err == nil {
		return nil
	}
	var cause *elementNotFoundError
	if errors.As(err, &cause) {
		return wrap(cause)
	}
	if status.Code(err) == codes.NotFound {
		return wrap(nil)
	}
	return err
}

// ProtocolError is an error returned when the server sends a response of the
// wrong type.
type ProtocolError struct {
	missingType reflect.Type
}

func (p ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: response was missing %v", p.missingType)
}
