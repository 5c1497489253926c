// Package testprotos holds small Cosmos-style schemas used by tests across the
// repo. They are compiled in memory, so no generated Go code is needed.
package testprotos

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/linker"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Paths of the files in Files.
const (
	CoinProto     = "test/base/v1beta1/coin.proto"
	WasmTypes     = "test/wasm/v1/types.proto"
	WasmTx        = "test/wasm/v1/tx.proto"
	FeegrantProto = "test/feegrant/v1beta1/feegrant.proto"
	FeegrantTx    = "test/feegrant/v1beta1/tx.proto"
	// ConflictProto redefines test.wasm.v1.MsgStoreCode in another file. It is
	// kept out of Files because it cannot be linked together with WasmTx.
	ConflictProto = "other/wasm/v1/tx.proto"
)

// Files maps file paths to proto sources.
var Files = map[string]string{
	CoinProto: `syntax = "proto3";
package test.base.v1beta1;

message Coin {
  string denom = 1;
  string amount = 2;
}

message DecCoin {
  string denom = 1;
  string amount = 2;
}
`,
	WasmTypes: `syntax = "proto3";
package test.wasm.v1;

enum AccessType {
  ACCESS_TYPE_UNSPECIFIED = 0;
  ACCESS_TYPE_NOBODY = 1;
  ACCESS_TYPE_EVERYBODY = 3;
  ACCESS_TYPE_ANY_OF_ADDRESSES = 4;
}

message AccessConfig {
  AccessType permission = 1;
  repeated string addresses = 3;
}

message Params {
  message Limits {
    uint64 max_wasm_code_size = 1;
  }
  AccessConfig code_upload_access = 1;
  AccessType instantiate_default_permission = 2;
  Limits limits = 3;
}
`,
	WasmTx: `syntax = "proto3";
package test.wasm.v1;

import "test/base/v1beta1/coin.proto";
import "test/wasm/v1/types.proto";

service Msg {
  rpc StoreCode(MsgStoreCode) returns (MsgStoreCodeResponse);
  rpc ExecuteContract(MsgExecuteContract) returns (MsgExecuteContractResponse);
}

message MsgStoreCode {
  string sender = 1;
  bytes wasm_byte_code = 2;
  AccessConfig instantiate_permission = 5;
}

message MsgStoreCodeResponse {
  uint64 code_id = 1;
  bytes checksum = 2;
}

message MsgExecuteContract {
  string sender = 1;
  string contract = 2;
  bytes msg = 3;
  repeated test.base.v1beta1.Coin funds = 5;
}

message MsgExecuteContractResponse {
  bytes data = 1;
}
`,
	FeegrantProto: `syntax = "proto3";
package test.feegrant.v1beta1;

import "google/protobuf/any.proto";
import "google/protobuf/timestamp.proto";
import "test/base/v1beta1/coin.proto";

message BasicAllowance {
  repeated test.base.v1beta1.Coin spend_limit = 1;
  google.protobuf.Timestamp expiration = 2;
}

message AllowedMsgAllowance {
  google.protobuf.Any allowance = 1;
  repeated string allowed_messages = 2;
}

message Grant {
  string granter = 1;
  string grantee = 2;
  google.protobuf.Any allowance = 3;
}
`,
	FeegrantTx: `syntax = "proto3";
package test.feegrant.v1beta1;

import "google/protobuf/any.proto";

service Msg {
  rpc GrantAllowance(MsgGrantAllowance) returns (MsgGrantAllowanceResponse);
  rpc RevokeAllowance(MsgRevokeAllowance) returns (MsgRevokeAllowanceResponse);
}

message MsgGrantAllowance {
  string granter = 1;
  string grantee = 2;
  google.protobuf.Any allowance = 3;
}

message MsgGrantAllowanceResponse {}

message MsgRevokeAllowance {
  string granter = 1;
  string grantee = 2;
}

message MsgRevokeAllowanceResponse {}
`,
}

// ConflictFiles holds ConflictProto, whose MsgStoreCode has the same URL as the
// one in WasmTx but a different shape.
var ConflictFiles = map[string]string{
	ConflictProto: `syntax = "proto3";
package test.wasm.v1;

message MsgStoreCode {
  string creator = 1;
}
`,
}

// Paths returns the paths of all files in Files, sorted.
func Paths() []string {
	paths := make([]string, 0, len(Files))
	for path := range Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Compile compiles the named files from Files. If no names are given, all
// files are compiled.
func Compile(ctx context.Context, names ...string) (linker.Files, error) {
	return CompileSources(ctx, Files, names...)
}

// CompileSources compiles the named files from the given sources, with the
// standard well-known imports available.
func CompileSources(ctx context.Context, sources map[string]string, names ...string) (linker.Files, error) {
	if len(names) == 0 {
		for path := range sources {
			names = append(names, path)
		}
		sort.Strings(names)
	}
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(sources),
		}),
	}
	return compiler.Compile(ctx, names...)
}

// WriteTo writes the given sources below dir, creating directories as needed.
func WriteTo(dir string, sources map[string]string) error {
	for path, src := range sources {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, []byte(src), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// FindMessage returns the message with the given name from files, searching
// nested messages too, or nil if there is none.
func FindMessage(files linker.Files, name protoreflect.FullName) protoreflect.MessageDescriptor {
	for _, file := range files {
		if md := findMessage(file.Messages(), name); md != nil {
			return md
		}
	}
	return nil
}

func findMessage(msgs protoreflect.MessageDescriptors, name protoreflect.FullName) protoreflect.MessageDescriptor {
	for i, length := 0, msgs.Len(); i < length; i++ {
		md := msgs.Get(i)
		if md.FullName() == name {
			return md
		}
		if nested := findMessage(md.Messages(), name); nested != nil {
			return nested
		}
	}
	return nil
}

// MessageType is like FindMessage but returns a dynamic message type. It
// panics if the message is not found.
func MessageType(files linker.Files, name protoreflect.FullName) protoreflect.MessageType {
	md := FindMessage(files, name)
	if md == nil {
		panic("message " + string(name) + " not found")
	}
	return dynamicpb.NewMessageType(md)
}
