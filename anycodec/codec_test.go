package anycodec_test

import (
	"context"
	"testing"

	"github.com/bufbuild/protocompile/linker"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fairblock/typereg/anycodec"
	"github.com/fairblock/typereg/internal/testprotos"
	"github.com/fairblock/typereg/typeregistry"
)

func newTestCodec(t *testing.T) (*anycodec.Codec, linker.Files) {
	t.Helper()
	files, err := testprotos.Compile(context.Background())
	require.NoError(t, err)
	reg := typeregistry.New()
	for _, file := range files {
		msgs := file.Messages()
		for i, length := 0, msgs.Len(); i < length; i++ {
			reg.Register(typeregistry.EntryFor(dynamicpb.NewMessageType(msgs.Get(i))))
		}
	}
	return anycodec.New(reg), files
}

func newMessage(t *testing.T, files linker.Files, name protoreflect.FullName, fields map[string]protoreflect.Value) proto.Message {
	t.Helper()
	mt := testprotos.MessageType(files, name)
	msg := mt.New()
	for fieldName, val := range fields {
		fd := mt.Descriptor().Fields().ByName(protoreflect.Name(fieldName))
		require.NotNil(t, fd, fieldName)
		msg.Set(fd, val)
	}
	return msg.Interface()
}

func TestPackUnpackRoundTrip(t *testing.T) {
	codec, files := newTestCodec(t)
	storeCode := newMessage(t, files, "test.wasm.v1.MsgStoreCode", map[string]protoreflect.Value{
		"sender":         protoreflect.ValueOfString("wasm1creator"),
		"wasm_byte_code": protoreflect.ValueOfBytes([]byte{0x00, 0x61, 0x73, 0x6d}),
	})

	a, err := codec.Pack(storeCode)
	require.NoError(t, err)
	assert.Equal(t, "/test.wasm.v1.MsgStoreCode", a.GetTypeUrl())

	decoded, err := codec.Unpack(a)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(storeCode, decoded, protocmp.Transform()))
	assert.Equal(t, protoreflect.FullName("test.wasm.v1.MsgStoreCode"), decoded.ProtoReflect().Descriptor().FullName())
}

func TestDecodeMatchesEncode(t *testing.T) {
	codec, files := newTestCodec(t)
	resp := newMessage(t, files, "test.wasm.v1.MsgStoreCodeResponse", map[string]protoreflect.Value{
		"code_id":  protoreflect.ValueOfUint64(42),
		"checksum": protoreflect.ValueOfBytes([]byte("sha256")),
	})
	b, err := codec.Encode(resp)
	require.NoError(t, err)

	decoded, err := codec.Decode("/test.wasm.v1.MsgStoreCodeResponse", b)
	require.NoError(t, err)
	assert.True(t, proto.Equal(resp, decoded))

	// encoding is deterministic
	again, err := codec.Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestDecodeUnknownTypeURL(t *testing.T) {
	codec, _ := newTestCodec(t)

	msg, err := codec.Decode("/test.wasm.v1.MsgMigrateContract", []byte{0x0a, 0x01, 0x61})
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, typeregistry.ErrUnknownTypeURL)

	msg, err = codec.Unpack(&anypb.Any{TypeUrl: "type.googleapis.com/test.wasm.v1.MsgStoreCode"})
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, typeregistry.ErrUnknownTypeURL)

	_, err = codec.UnmarshalJSON("/pkg.Bar", []byte(`{}`))
	assert.ErrorIs(t, err, typeregistry.ErrUnknownTypeURL)
}

func TestDecodeMalformedBytes(t *testing.T) {
	codec, _ := newTestCodec(t)
	msg, err := codec.Decode("/test.wasm.v1.MsgStoreCode", []byte{0x0a, 0xff})
	assert.Nil(t, msg)
	require.Error(t, err)
	assert.NotErrorIs(t, err, typeregistry.ErrUnknownTypeURL)
	assert.Contains(t, err.Error(), "/test.wasm.v1.MsgStoreCode")
}

func TestUnpackNil(t *testing.T) {
	codec, _ := newTestCodec(t)
	_, err := codec.Unpack(nil)
	assert.ErrorContains(t, err, "nil Any")
}

func TestUnpackAll(t *testing.T) {
	codec, files := newTestCodec(t)
	grant := newMessage(t, files, "test.feegrant.v1beta1.MsgRevokeAllowance", map[string]protoreflect.Value{
		"granter": protoreflect.ValueOfString("cosmos1granter"),
		"grantee": protoreflect.ValueOfString("cosmos1grantee"),
	})
	exec := newMessage(t, files, "test.wasm.v1.MsgExecuteContract", map[string]protoreflect.Value{
		"sender":   protoreflect.ValueOfString("wasm1sender"),
		"contract": protoreflect.ValueOfString("wasm1contract"),
		"msg":      protoreflect.ValueOfBytes([]byte(`{"ping":{}}`)),
	})
	a1, err := codec.Pack(grant)
	require.NoError(t, err)
	a2, err := codec.Pack(exec)
	require.NoError(t, err)

	msgs, err := codec.UnpackAll([]*anypb.Any{a1, a2})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, proto.Equal(grant, msgs[0]))
	assert.True(t, proto.Equal(exec, msgs[1]))

	_, err = codec.UnpackAll([]*anypb.Any{a1, {TypeUrl: "/pkg.Bar"}, a2})
	assert.ErrorIs(t, err, typeregistry.ErrUnknownTypeURL)
	assert.ErrorContains(t, err, "message 1")

	msgs, err = codec.UnpackAll(nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPackUnregistered(t *testing.T) {
	codec, _ := newTestCodec(t)

	_, err := codec.Pack(wrapperspb.String("not registered"))
	assert.ErrorIs(t, err, typeregistry.ErrUnknownTypeURL)
	_, err = codec.Encode(wrapperspb.String("not registered"))
	assert.ErrorIs(t, err, typeregistry.ErrUnknownTypeURL)
	_, err = codec.Pack(nil)
	assert.ErrorContains(t, err, "nil message")
}

func TestJSONRoundTripWithNestedAny(t *testing.T) {
	codec, _ := newTestCodec(t)
	input := `{
		"granter": "cosmos1granter",
		"grantee": "cosmos1grantee",
		"allowance": {
			"@type": "/test.feegrant.v1beta1.AllowedMsgAllowance",
			"allowance": {
				"@type": "/test.feegrant.v1beta1.BasicAllowance",
				"spendLimit": [{"denom": "uatom", "amount": "100"}],
				"expiration": "2026-01-02T03:04:05Z"
			},
			"allowedMessages": ["/test.wasm.v1.MsgExecuteContract"]
		}
	}`

	msg, err := codec.UnmarshalJSON("/test.feegrant.v1beta1.MsgGrantAllowance", []byte(input))
	require.NoError(t, err)

	out, err := codec.MarshalJSON(msg)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))

	// the binary form survives a round trip through Pack/Unpack as well
	a, err := codec.Pack(msg)
	require.NoError(t, err)
	decoded, err := codec.Unpack(a)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(msg, decoded, protocmp.Transform()))
}

func TestJSONNestedAnyUnknown(t *testing.T) {
	codec, _ := newTestCodec(t)
	input := `{"granter": "g", "allowance": {"@type": "/test.feegrant.v1beta1.PeriodicAllowance"}}`
	_, err := codec.UnmarshalJSON("/test.feegrant.v1beta1.MsgGrantAllowance", []byte(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PeriodicAllowance")

	_, err = codec.MarshalJSON(nil)
	assert.Error(t, err)
}

func TestPackRejectsDifferentShape(t *testing.T) {
	codec, files := newTestCodec(t)
	storeCode := newMessage(t, files, "test.wasm.v1.MsgStoreCode", map[string]protoreflect.Value{
		"sender":         protoreflect.ValueOfString("wasm1creator"),
		"wasm_byte_code": protoreflect.ValueOfBytes([]byte("code")),
	})

	// a schema elsewhere that reuses the name but not the fields
	conflicts, err := testprotos.CompileSources(context.Background(), testprotos.ConflictFiles)
	require.NoError(t, err)
	reg := typeregistry.New()
	reg.Register(typeregistry.EntryFor(testprotos.MessageType(conflicts, "test.wasm.v1.MsgStoreCode")))
	other := anycodec.New(reg)

	_, err = other.Pack(storeCode)
	require.Error(t, err)
	assert.ErrorContains(t, err, testprotos.ConflictProto)
	_, err = other.Encode(storeCode)
	assert.ErrorContains(t, err, testprotos.WasmTx)

	// the matching schema still packs
	_, err = codec.Pack(storeCode)
	assert.NoError(t, err)
}
