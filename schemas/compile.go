package schemas

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// CompileProtos compiles the given .proto files, which are paths relative to
// one of importPaths. If files is empty, every .proto file found below the
// import paths is compiled, skipping directories whose names start with a dot. The well-known google/protobuf imports are always
// available, even if they are not present in any import path.
func CompileProtos(ctx context.Context, importPaths []string, files []string) ([]protoreflect.FileDescriptor, error) {
	if len(importPaths) == 0 {
		importPaths = []string{"."}
	}
	if len(files) == 0 {
		var err error
		files, err = findProtoFiles(importPaths)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no .proto files found in %s", strings.Join(importPaths, ", "))
		}
	}
	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			ImportPaths: importPaths,
		}),
	}
	results, err := compiler.Compile(ctx, files...)
	if err != nil {
		return nil, err
	}
	fds := make([]protoreflect.FileDescriptor, len(results))
	for i, res := range results {
		fds[i] = res
	}
	return fds, nil
}

func findProtoFiles(importPaths []string) ([]string, error) {
	seen := map[string]struct{}{}
	var files []string
	for _, root := range importPaths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				// .git, .cache and the like
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".proto" {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			// The first import path that provides a file wins, as in protoc.
			if _, ok := seen[rel]; ok {
				return nil
			}
			seen[rel] = struct{}{}
			files = append(files, rel)
			return nil
		})
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("import path %q does not exist", root)
		}
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
