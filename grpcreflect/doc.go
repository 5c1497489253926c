// Package grpcreflect provides a client for the [gRPC reflection service].
//
// Cosmos SDK nodes expose the reflection service on their gRPC port. The
// client asks such a server for the files that declare its services, and the
// transitive imports of those files, so that a type registry can be filled
// with every message the node knows about without any local schema files.
//
// [gRPC reflection service]: https://github.com/grpc/grpc/blob/master/src/proto/grpc/reflection/v1/reflection.proto
package grpcreflect
