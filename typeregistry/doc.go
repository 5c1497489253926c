// Package typeregistry maps protobuf type URLs, such as
// "/cosmwasm.wasm.v1.MsgStoreCode", to the message types that can encode and
// decode them.
//
// A Registry is normally populated once at start-up, from tables produced by the
// schemas package, and then handed explicitly to whatever needs to turn a
// (type URL, bytes) pair into a typed message (see the anycodec package). There
// is no package-level registry.
//
// Lookups are exact and case-sensitive. A URL is never normalized: a URL with a
// "type.googleapis.com" host does not match the same name registered under the
// canonical "/<package>.<Message>" form.
//
// Registering a URL that is already present replaces the previous entry. When
// the replacement has a different shape (a different message name or defining
// file), the registry logs a warning and invokes the hook configured with
// WithReplaceHook, so that silent collisions between modules can be noticed.
//
// The Registry also implements the message and extension resolver interfaces
// from the protoregistry package, so it can be used directly as the Resolver in
// proto.UnmarshalOptions, protojson options, and anypb functions.
package typeregistry
