package schemas

import (
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/fairblock/typereg/typeregistry"
)

// Options controls which messages of a schema end up in a table.
type Options struct {
	// IncludeNested adds messages declared inside other messages. Map entry
	// messages are never included.
	IncludeNested bool
	// Packages restricts the table to messages in the given proto packages.
	// When empty, messages from every package are included.
	Packages []string
}

func (o Options) wantPackage(pkg protoreflect.FullName) bool {
	if len(o.Packages) == 0 {
		return true
	}
	for _, p := range o.Packages {
		if protoreflect.FullName(p) == pkg {
			return true
		}
	}
	return false
}

// EntriesFromFile returns entries for the messages declared in file. The
// message types are dynamic types created with the dynamicpb package. Imports
// of file are not visited.
func EntriesFromFile(file protoreflect.FileDescriptor, opts Options) []typeregistry.Entry {
	if !opts.wantPackage(file.Package()) {
		return nil
	}
	var entries []typeregistry.Entry
	return appendMessages(entries, file.Messages(), opts)
}

// EntriesFromFiles returns entries for all messages declared in files, in
// order. A file that appears more than once is only visited once.
func EntriesFromFiles(files []protoreflect.FileDescriptor, opts Options) []typeregistry.Entry {
	pathsSeen := map[string]struct{}{}
	var entries []typeregistry.Entry
	for _, file := range files {
		if _, ok := pathsSeen[file.Path()]; ok {
			continue
		}
		pathsSeen[file.Path()] = struct{}{}
		entries = append(entries, EntriesFromFile(file, opts)...)
	}
	return entries
}

func appendMessages(entries []typeregistry.Entry, msgs protoreflect.MessageDescriptors, opts Options) []typeregistry.Entry {
	for i, length := 0, msgs.Len(); i < length; i++ {
		msg := msgs.Get(i)
		if msg.IsMapEntry() {
			continue
		}
		entries = append(entries, typeregistry.EntryFor(dynamicpb.NewMessageType(msg)))
		if opts.IncludeNested {
			entries = appendMessages(entries, msg.Messages(), opts)
		}
	}
	return entries
}
