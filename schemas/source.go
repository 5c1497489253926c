package schemas

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/fairblock/typereg/grpcreflect"
	"github.com/fairblock/typereg/typeregistry"
)

// Source produces a type table.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string
	// Entries builds the table.
	Entries(ctx context.Context) ([]typeregistry.Entry, error)
}

// ProtoSource compiles .proto files. See CompileProtos.
type ProtoSource struct {
	ImportPaths []string
	Files       []string
	Options     Options
}

func (s *ProtoSource) Name() string {
	return "proto:" + strings.Join(s.ImportPaths, ",")
}

func (s *ProtoSource) Entries(ctx context.Context) ([]typeregistry.Entry, error) {
	files, err := CompileProtos(ctx, s.ImportPaths, s.Files)
	if err != nil {
		return nil, err
	}
	return EntriesFromFiles(files, s.Options), nil
}

// ProtosetSource reads a serialized FileDescriptorSet. See LoadProtoset.
type ProtosetSource struct {
	Path    string
	Options Options
}

func (s *ProtosetSource) Name() string {
	return "protoset:" + s.Path
}

func (s *ProtosetSource) Entries(context.Context) ([]typeregistry.Entry, error) {
	files, err := LoadProtoset(s.Path)
	if err != nil {
		return nil, err
	}
	return EntriesFromFiles(files, s.Options), nil
}

// GlobalSource uses the generated types linked into the program. See
// GlobalEntries.
type GlobalSource struct {
	Options Options
}

func (s *GlobalSource) Name() string {
	return "global"
}

func (s *GlobalSource) Entries(context.Context) ([]typeregistry.Entry, error) {
	return GlobalEntries(s.Options), nil
}

// ReflectionSource asks a running server for its schemas through the gRPC
// reflection service.
type ReflectionSource struct {
	// Endpoint is the gRPC target, such as "localhost:9090".
	Endpoint string
	Options  Options
	// Timeout bounds the whole exchange with the server. Zero means no
	// timeout other than the context's.
	Timeout time.Duration
	// DialOptions replace the default options, which use an insecure
	// transport.
	DialOptions []grpc.DialOption
}

func (s *ReflectionSource) Name() string {
	return "reflection:" + s.Endpoint
}

func (s *ReflectionSource) Entries(ctx context.Context) ([]typeregistry.Entry, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	opts := s.DialOptions
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	cc, err := grpc.NewClient(s.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.Endpoint, err)
	}
	defer cc.Close()

	client := grpcreflect.NewClientAuto(ctx, cc)
	defer client.Reset()
	files, err := client.Files(s.Options.Packages...)
	if err != nil {
		return nil, err
	}
	return EntriesFromFiles(files, s.Options), nil
}
