// Package anycodec turns (type URL, bytes) pairs, usually carried in a
// google.protobuf.Any, into typed messages and back, using a type registry to
// map URLs to message types.
//
// The codec does not implement any wire format itself; binary and JSON
// encoding are done by the protobuf runtime. An unregistered type URL is always
// reported as an error that matches typeregistry.ErrUnknownTypeURL. The codec
// never falls back to a default type and never returns a partially decoded
// message.
package anycodec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/fairblock/typereg/typeregistry"
)

// Resolver maps type URLs to message types. *typeregistry.Registry implements
// it. The protoregistry methods are used when decoding messages that contain
// nested Any fields.
type Resolver interface {
	Resolve(url string) (protoreflect.MessageType, error)
	protoregistry.MessageTypeResolver
	protoregistry.ExtensionTypeResolver
}

var _ Resolver = (*typeregistry.Registry)(nil)

// Codec encodes and decodes messages identified by type URL.
type Codec struct {
	res Resolver
}

// New returns a codec that resolves type URLs with res.
func New(res Resolver) *Codec {
	return &Codec{res: res}
}

// Decode unmarshals b as the message type registered for url.
func (c *Codec) Decode(url string, b []byte) (proto.Message, error) {
	mt, err := c.res.Resolve(url)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	msg := mt.New().Interface()
	opts := proto.UnmarshalOptions{Resolver: c.res}
	if err := opts.Unmarshal(b, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return msg, nil
}

// Unpack decodes the contents of a.
func (c *Codec) Unpack(a *anypb.Any) (proto.Message, error) {
	if a == nil {
		return nil, errors.New("unpack: nil Any")
	}
	return c.Decode(a.GetTypeUrl(), a.GetValue())
}

// UnpackAll decodes every element of anys, such as the messages of a
// transaction body. It stops at the first failure, whose index is included in
// the returned error.
func (c *Codec) UnpackAll(anys []*anypb.Any) ([]proto.Message, error) {
	msgs := make([]proto.Message, len(anys))
	for i, a := range anys {
		msg, err := c.Unpack(a)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		msgs[i] = msg
	}
	return msgs, nil
}

// Encode marshals msg deterministically. The message's type must be
// registered under its canonical URL, with the same defining file.
func (c *Codec) Encode(msg proto.Message) ([]byte, error) {
	if _, err := c.urlFor(msg); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

// Pack wraps msg in an Any whose type URL is the canonical URL for the
// message. Messages whose URL is not registered are rejected, so that
// everything this codec packs can also be unpacked by it.
func (c *Codec) Pack(msg proto.Message) (*anypb.Any, error) {
	url, err := c.urlFor(msg)
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	value, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", url, err)
	}
	return &anypb.Any{TypeUrl: url, Value: value}, nil
}

func (c *Codec) urlFor(msg proto.Message) (string, error) {
	if msg == nil {
		return "", errors.New("nil message")
	}
	url := typeregistry.URLFor(msg.ProtoReflect().Descriptor().FullName())
	mt, err := c.res.Resolve(url)
	if err != nil {
		return "", err
	}
	if !typeregistry.SameShape(mt, msg.ProtoReflect().Type()) {
		return "", fmt.Errorf("%s is registered as %s, not %s", url,
			mt.Descriptor().ParentFile().Path(), msg.ProtoReflect().Descriptor().ParentFile().Path())
	}
	return url, nil
}

// MarshalJSON renders msg using the protobuf JSON mapping. Nested Any fields
// are resolved through the codec's resolver.
func (c *Codec) MarshalJSON(msg proto.Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("marshal JSON: nil message")
	}
	opts := protojson.MarshalOptions{Resolver: c.res}
	return opts.Marshal(msg)
}

// UnmarshalJSON parses data as the protobuf JSON form of the message type
// registered for url.
func (c *Codec) UnmarshalJSON(url string, data []byte) (proto.Message, error) {
	mt, err := c.res.Resolve(url)
	if err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	msg := mt.New().Interface()
	opts := protojson.UnmarshalOptions{Resolver: c.res}
	if err := opts.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("unmarshal JSON %s: %w", url, err)
	}
	return msg, nil
}
