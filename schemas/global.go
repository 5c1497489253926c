package schemas

import (
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/fairblock/typereg/typeregistry"
)

// GlobalEntries returns entries for the generated message types linked into
// the program, i.e. those in protoregistry.GlobalTypes. Unlike the other
// tables, these use the generated Go types rather than dynamic ones, so
// decoded messages can be type-asserted to their Go structs. The entries are
// sorted by URL.
func GlobalEntries(opts Options) []typeregistry.Entry {
	var entries []typeregistry.Entry
	protoregistry.GlobalTypes.RangeMessages(func(mt protoreflect.MessageType) bool {
		md := mt.Descriptor()
		if md.IsMapEntry() || !opts.wantPackage(md.ParentFile().Package()) {
			return true
		}
		if _, nested := md.Parent().(protoreflect.MessageDescriptor); nested && !opts.IncludeNested {
			return true
		}
		entries = append(entries, typeregistry.EntryFor(mt))
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].URL < entries[j].URL
	})
	return entries
}
