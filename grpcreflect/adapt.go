package grpcreflect

import (
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	refv1alpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/protobuf/proto"
)

// adaptStreamFromV1Alpha lets a v1alpha stream be used where a v1 stream is
// expected. The two versions of the protocol are identical on the wire, so
// messages are converted by re-encoding them.
type adaptStreamFromV1Alpha struct {
	refv1alpha.ServerReflection_ServerReflectionInfoClient
}

func (a adaptStreamFromV1Alpha) Send(req *refv1.ServerReflectionRequest) error {
	var alphaReq refv1alpha.ServerReflectionRequest
	if err := convert(req, &alphaReq); err != nil {
		return err
	}
	return a.ServerReflection_ServerReflectionInfoClient.Send(&alphaReq)
}

func (a adaptStreamFromV1Alpha) Recv() (*refv1.ServerReflectionResponse, error) {
	alphaResp, err := a.ServerReflection_ServerReflectionInfoClient.Recv()
	if err != nil {
		return nil, err
	}
	var resp refv1.ServerReflectionResponse
	if err := convert(alphaResp, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func convert(from, to proto.Message) error {
	b, err := proto.Marshal(from)
	if err != nil {
		return err
	}
	return proto.Unmarshal(b, to)
}
