package testprotos

import (
	"context"
	"net"

	"github.com/bufbuild/protocompile/linker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	refv1alpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Target is the dial target of a ReflectionServer. It must be used together
// with the server's DialOptions.
const Target = "passthrough:///bufnet"

// Registry returns a file registry holding files and all of their transitive
// imports.
func Registry(files linker.Files) (*protoregistry.Files, error) {
	reg := &protoregistry.Files{}
	var add func(protoreflect.FileDescriptor) error
	add = func(fd protoreflect.FileDescriptor) error {
		if _, err := reg.FindFileByPath(fd.Path()); err == nil {
			return nil
		}
		imports := fd.Imports()
		for i, length := 0, imports.Len(); i < length; i++ {
			if err := add(imports.Get(i).FileDescriptor); err != nil {
				return err
			}
		}
		return reg.RegisterFile(fd)
	}
	for _, fd := range files {
		if err := add(fd); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// ReflectionServer serves the gRPC reflection service for a set of compiled
// files over an in-memory connection.
type ReflectionServer struct {
	server   *grpc.Server
	listener *bufconn.Listener
}

// ReflectionVersions selects which versions of the reflection service a
// ReflectionServer exposes.
type ReflectionVersions struct {
	V1      bool
	V1Alpha bool
}

type serviceNames []string

func (s serviceNames) GetServiceInfo() map[string]grpc.ServiceInfo {
	info := make(map[string]grpc.ServiceInfo, len(s))
	for _, name := range s {
		info[name] = grpc.ServiceInfo{}
	}
	return info
}

// NewReflectionServer starts a server that describes files and lists the
// services they declare. The caller must call Stop.
func NewReflectionServer(files linker.Files, versions ReflectionVersions) (*ReflectionServer, error) {
	reg, err := Registry(files)
	if err != nil {
		return nil, err
	}
	var services serviceNames
	for _, fd := range files {
		svcs := fd.Services()
		for i, length := 0, svcs.Len(); i < length; i++ {
			services = append(services, string(svcs.Get(i).FullName()))
		}
	}
	opts := reflection.ServerOptions{
		Services:           services,
		DescriptorResolver: reg,
		ExtensionResolver:  &protoregistry.Types{},
	}

	svr := grpc.NewServer()
	if versions.V1 {
		refv1.RegisterServerReflectionServer(svr, reflection.NewServerV1(opts))
	}
	if versions.V1Alpha {
		refv1alpha.RegisterServerReflectionServer(svr, reflection.NewServer(opts))
	}
	l := bufconn.Listen(1 << 20)
	go func() {
		_ = svr.Serve(l)
	}()
	return &ReflectionServer{server: svr, listener: l}, nil
}

// DialOptions returns the options needed to reach the server at Target.
func (s *ReflectionServer) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return s.listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

// Dial returns a client connection to the server.
func (s *ReflectionServer) Dial() (*grpc.ClientConn, error) {
	return grpc.NewClient(Target, s.DialOptions()...)
}

// Stop stops the server and closes its listener.
func (s *ReflectionServer) Stop() {
	s.server.Stop()
	_ = s.listener.Close()
}
