package schemas

import (
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// LoadProtoset reads the serialized FileDescriptorSet at path, as produced by
// "buf build -o" or "protoc --descriptor_set_out --include_imports". The set
// must contain every file's dependencies.
func LoadProtoset(path string) ([]protoreflect.FileDescriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fds, err := ParseProtoset(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fds, nil
}

// ParseProtoset parses a serialized FileDescriptorSet. The files are returned
// in the order they appear in the set.
func ParseProtoset(b []byte) ([]protoreflect.FileDescriptor, error) {
	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(b, &set); err != nil {
		return nil, err
	}
	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, err
	}
	fds := make([]protoreflect.FileDescriptor, 0, len(set.File))
	for _, fdp := range set.File {
		fd, err := files.FindFileByPath(fdp.GetName())
		if err != nil {
			return nil, err
		}
		fds = append(fds, fd)
	}
	return fds, nil
}
