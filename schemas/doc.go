// Package schemas builds type registry tables from compiled protobuf schemas,
// instead of maintaining them by hand.
//
// A table is a list of typeregistry.Entry values, one per message, keyed by the
// message's canonical type URL. Tables can be produced from .proto sources
// (compiled with protocompile), from serialized FileDescriptorSets (protosets),
// from the generated Go types linked into the program, or from a running
// node's gRPC reflection service. A Loader combines several such sources into
// one registry.
//
// By default only top-level messages are included, which matches the tables
// that code generators emit for Cosmos SDK modules. Set Options.IncludeNested
// to include nested messages as well.
package schemas
