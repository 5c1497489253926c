package grpcreflect

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	refv1alpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Client asks a server for its schema files over one reflection stream and
// caches every file it receives.
type Client struct {
	ctx         context.Context
	stubV1      refv1.ServerReflectionClient
	stubV1Alpha refv1alpha.ServerReflectionClient

	connMu     sync.Mutex
	cancel     context.CancelFunc
	stream     refv1.ServerReflection_ServerReflectionInfoClient
	useV1Alpha bool

	cacheMu sync.RWMutex
	// raw files as sent by the server, some not yet built
	protosByName map[string]*descriptorpb.FileDescriptorProto
	descriptors  protoregistry.Files
}

// NewClientAuto returns a client that talks to the reflection service on cc.
// It uses version v1 of the service and falls back to v1alpha, for the rest
// of the client's life, if the server does not implement v1. Streams are
// opened with ctx; call Reset to close the current one.
func NewClientAuto(ctx context.Context, cc grpc.ClientConnInterface) *Client {
	cr := &Client{
		ctx:          ctx,
		stubV1:       refv1.NewServerReflectionClient(cc),
		stubV1Alpha:  refv1alpha.NewServerReflectionClient(cc),
		protosByName: map[string]*descriptorpb.FileDescriptorProto{},
	}
	// don't leak a grpc stream
	runtime.SetFinalizer(cr, (*Client).Reset)
	return cr
}

// FileByFilename returns the file with the given path, asking the server
// unless it has been received before.
func (cr *Client) FileByFilename(filename string) (protoreflect.FileDescriptor, error) {
	cr.cacheMu.RLock()
	fd, findErr := cr.descriptors.FindFileByPath(filename)
	fdp, received := cr.protosByName[filename]
	cr.cacheMu.RUnlock()
	switch {
	case findErr == nil:
		return fd, nil
	case received:
		// sent along with an earlier answer but not built yet
		return cr.build(fdp)
	}

	req := &refv1.ServerReflectionRequest{
		MessageRequest: &refv1.ServerReflectionRequest_FileByFilename{FileByFilename: filename},
	}
	fd, err := cr.fetch(req, func(fd protoreflect.FileDescriptor) bool {
		return fd.Path() == filename
	})
	return fd, asNotFound(err, func(cause *elementNotFoundError) *elementNotFoundError {
		return fileNotFound(filename, cause)
	})
}

// FileContainingSymbol returns the file that declares the given
// fully-qualified message, enum, service or other element.
func (cr *Client) FileContainingSymbol(symbol protoreflect.FullName) (protoreflect.FileDescriptor, error) {
	if fd := cr.cachedFileContaining(symbol); fd != nil {
		return fd, nil
	}

	req := &refv1.ServerReflectionRequest{
		MessageRequest: &refv1.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: string(symbol)},
	}
	fd, err := cr.fetch(req, func(fd protoreflect.FileDescriptor) bool {
		cached := cr.cachedFileContaining(symbol)
		return cached != nil && cached.Path() == fd.Path()
	})
	return fd, asNotFound(err, func(cause *elementNotFoundError) *elementNotFoundError {
		return symbolNotFound(symbol, cause)
	})
}

func (cr *Client) cachedFileContaining(symbol protoreflect.FullName) protoreflect.FileDescriptor {
	cr.cacheMu.RLock()
	defer cr.cacheMu.RUnlock()
	d, err := cr.descriptors.FindDescriptorByName(symbol)
	if err != nil {
		return nil
	}
	return d.ParentFile()
}

// fetch sends a file request and returns the file from the response that
// accept picks. Every file in the response is cached: the server sends the
// answer together with those of its dependencies it has not sent on this
// stream before, and may leave them out of later responses.
func (cr *Client) fetch(req *refv1.ServerReflectionRequest, accept func(protoreflect.FileDescriptor) bool) (protoreflect.FileDescriptor, error) {
	resp, err := cr.send(req)
	if err != nil {
		return nil, err
	}
	fdResp := resp.GetFileDescriptorResponse()
	if fdResp == nil {
		return nil, &ProtocolError{reflect.TypeOf(fdResp).Elem()}
	}

	received := make([]*descriptorpb.FileDescriptorProto, 0, len(fdResp.FileDescriptorProto))
	for _, b := range fdResp.FileDescriptorProto {
		fdp := &descriptorpb.FileDescriptorProto{}
		if err := proto.Unmarshal(b, fdp); err != nil {
			return nil, err
		}
		received = append(received, cr.remember(fdp))
	}
	for _, fdp := range received {
		fd, err := cr.build(fdp)
		if err != nil {
			return nil, err
		}
		if accept(fd) {
			return fd, nil
		}
	}
	return nil, status.Errorf(codes.NotFound, "response does not include expected file")
}

// remember caches fdp unless a file with that name was received before, and
// returns the cached copy.
func (cr *Client) remember(fdp *descriptorpb.FileDescriptorProto) *descriptorpb.FileDescriptorProto {
	cr.cacheMu.Lock()
	defer cr.cacheMu.Unlock()
	if existing, ok := cr.protosByName[fdp.GetName()]; ok {
		return existing
	}
	cr.protosByName[fdp.GetName()] = fdp
	return fdp
}

// build links fdp after making sure its imports are available, fetching them
// by name as needed.
func (cr *Client) build(fdp *descriptorpb.FileDescriptorProto) (protoreflect.FileDescriptor, error) {
	for _, dep := range fdp.GetDependency() {
		if _, err := cr.FileByFilename(dep); err != nil {
			return nil, err
		}
	}
	cr.cacheMu.Lock()
	defer cr.cacheMu.Unlock()
	if fd, err := cr.descriptors.FindFileByPath(fdp.GetName()); err == nil {
		return fd, nil
	}
	fd, err := protodesc.NewFile(fdp, &cr.descriptors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fdp.GetName(), err)
	}
	if err := cr.descriptors.RegisterFile(fd); err != nil {
		return nil, err
	}
	return fd, nil
}

// ListServices asks the server for the fully-qualified names of all exposed
// services.
func (cr *Client) ListServices() ([]protoreflect.FullName, error) {
	req := &refv1.ServerReflectionRequest{
		// the value is not used by servers
		MessageRequest: &refv1.ServerReflectionRequest_ListServices{ListServices: "*"},
	}
	resp, err := cr.send(req)
	if err != nil {
		return nil, err
	}
	listResp := resp.GetListServicesResponse()
	if listResp == nil {
		return nil, &ProtocolError{reflect.TypeOf(listResp).Elem()}
	}
	names := make([]protoreflect.FullName, len(listResp.Service))
	for i, s := range listResp.Service {
		names[i] = protoreflect.FullName(s.Name)
	}
	return names, nil
}

// Files returns the files that declare the server's services, together with
// all of their transitive imports. Every file comes after its imports. If
// packages are given, only files in those proto packages are returned, though
// imports are still followed through files of other packages.
//
// Services whose files the server cannot provide are skipped. This is common
// for nodes that register some services with a different protobuf runtime.
func (cr *Client) Files(packages ...string) ([]protoreflect.FileDescriptor, error) {
	services, err := cr.ListServices()
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var files []protoreflect.FileDescriptor
	var add func(protoreflect.FileDescriptor)
	add = func(fd protoreflect.FileDescriptor) {
		if _, ok := seen[fd.Path()]; ok {
			return
		}
		seen[fd.Path()] = struct{}{}
		imports := fd.Imports()
		for i, length := 0, imports.Len(); i < length; i++ {
			add(imports.Get(i).FileDescriptor)
		}
		files = append(files, fd)
	}
	for _, svc := range services {
		fd, err := cr.FileContainingSymbol(svc)
		if IsElementNotFoundError(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svc, err)
		}
		add(fd)
	}
	if len(packages) == 0 {
		return files, nil
	}
	wanted := make(map[protoreflect.FullName]struct{}, len(packages))
	for _, pkg := range packages {
		wanted[protoreflect.FullName(pkg)] = struct{}{}
	}
	filtered := files[:0]
	for _, fd := range files {
		if _, ok := wanted[fd.Package()]; ok {
			filtered = append(filtered, fd)
		}
	}
	return filtered, nil
}
