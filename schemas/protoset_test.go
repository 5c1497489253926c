package schemas_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/fairblock/typereg/internal/testprotos"
	"github.com/fairblock/typereg/schemas"
)

// writeProtoset writes a FileDescriptorSet with all test files and their
// imports, dependencies first, and returns its path.
func writeProtoset(t *testing.T) string {
	t.Helper()
	files, err := testprotos.Compile(context.Background())
	require.NoError(t, err)

	var set descriptorpb.FileDescriptorSet
	seen := map[string]bool{}
	var add func(fd protoreflect.FileDescriptor)
	add = func(fd protoreflect.FileDescriptor) {
		if seen[fd.Path()] {
			return
		}
		seen[fd.Path()] = true
		for i := 0; i < fd.Imports().Len(); i++ {
			add(fd.Imports().Get(i).FileDescriptor)
		}
		set.File = append(set.File, protodesc.ToFileDescriptorProto(fd))
	}
	for _, fd := range files {
		add(fd)
	}

	b, err := proto.Marshal(&set)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "test.binpb")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestLoadProtoset(t *testing.T) {
	path := writeProtoset(t)

	fds, err := schemas.LoadProtoset(path)
	require.NoError(t, err)
	paths := map[string]bool{}
	for _, fd := range fds {
		paths[fd.Path()] = true
	}
	for _, p := range testprotos.Paths() {
		assert.True(t, paths[p], p)
	}
	assert.True(t, paths["google/protobuf/any.proto"])
	assert.True(t, paths["google/protobuf/timestamp.proto"])

	entries := schemas.EntriesFromFiles(fds, schemas.Options{Packages: []string{"test.feegrant.v1beta1"}})
	assert.Len(t, entries, 7)
}

func TestParseProtosetErrors(t *testing.T) {
	_, err := schemas.ParseProtoset([]byte{0x0a, 0xff})
	assert.Error(t, err)

	// a set without the dependencies of its files cannot be linked
	files, err := testprotos.Compile(context.Background(), testprotos.WasmTx)
	require.NoError(t, err)
	set := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{protodesc.ToFileDescriptorProto(files[0])},
	}
	b, err := proto.Marshal(set)
	require.NoError(t, err)
	_, err = schemas.ParseProtoset(b)
	assert.Error(t, err)

	_, err = schemas.LoadProtoset(filepath.Join(t.TempDir(), "missing.binpb"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
