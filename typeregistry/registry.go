package typeregistry

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Entry associates a type URL with the message type used to encode and decode
// values identified by that URL.
type Entry struct {
	URL  string
	Type protoreflect.MessageType
}

// EntryFor returns the entry for mt under its canonical URL.
func EntryFor(mt protoreflect.MessageType) Entry {
	return Entry{URL: URLFor(mt.Descriptor().FullName()), Type: mt}
}

// ReplaceHook is called when Register replaces an existing entry with a message
// type of a different shape.
type ReplaceHook func(url string, prev, next protoreflect.MessageType)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report replaced entries. By default the
// registry does not log.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithReplaceHook sets a function that is invoked, while the registry's write
// lock is held, whenever an entry is replaced by one of a different shape.
func WithReplaceHook(hook ReplaceHook) Option {
	return func(r *Registry) {
		r.onReplace = hook
	}
}

// Registry maps type URLs to message types. It is safe for concurrent use.
//
// Reads never block: Resolve loads an immutable snapshot. Register builds a new
// snapshot and publishes it, and concurrent calls to Register are serialized.
// The zero value is an empty registry that does not log.
type Registry struct {
	logger    zerolog.Logger
	onReplace ReplaceHook

	mu      sync.Mutex // serializes writers
	entries atomic.Pointer[map[string]protoreflect.MessageType]
}

var _ interface {
	protoregistry.MessageTypeResolver
	protoregistry.ExtensionTypeResolver
} = (*Registry)(nil)

// New returns an empty registry configured with the given options.
func New(opts ...Option) *Registry {
	r := &Registry{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) snapshot() map[string]protoreflect.MessageType {
	if r == nil {
		return nil
	}
	if m := r.entries.Load(); m != nil {
		return *m
	}
	return nil
}

// Register adds the given entries. An entry whose URL is already present
// replaces the existing one, so when the same URL appears more than once the
// last one wins. Entries with a nil type are ignored.
func (r *Registry) Register(entries ...Entry) {
	if len(entries) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.snapshot()
	next := make(map[string]protoreflect.MessageType, len(prev)+len(entries))
	for url, mt := range prev {
		next[url] = mt
	}
	for _, e := range entries {
		if e.Type == nil {
			continue
		}
		if existing, ok := next[e.URL]; ok && !SameShape(existing, e.Type) {
			r.logger.Warn().
				Str("url", e.URL).
				Str("previous", describe(existing)).
				Str("replacement", describe(e.Type)).
				Msg("type URL re-registered with a different message type")
			if r.onReplace != nil {
				r.onReplace(e.URL, existing, e.Type)
			}
		}
		next[e.URL] = e.Type
	}
	r.entries.Store(&next)
}

// Resolve returns the message type registered for url. If there is none, the
// returned error is an *UnknownTypeURLError.
func (r *Registry) Resolve(url string) (protoreflect.MessageType, error) {
	if mt, ok := r.snapshot()[url]; ok {
		return mt, nil
	}
	return nil, &UnknownTypeURLError{URL: url}
}

// Len returns the number of registered URLs.
func (r *Registry) Len() int {
	return len(r.snapshot())
}

// URLs returns all registered URLs in sorted order.
func (r *Registry) URLs() []string {
	m := r.snapshot()
	urls := make([]string, 0, len(m))
	for url := range m {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Entries returns a snapshot of all entries, sorted by URL.
func (r *Registry) Entries() []Entry {
	m := r.snapshot()
	entries := make([]Entry, 0, len(m))
	for url, mt := range m {
		entries = append(entries, Entry{URL: url, Type: mt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].URL < entries[j].URL
	})
	return entries
}

// Range calls fn for each entry, in no particular order, until fn returns
// false. Entries registered after iteration starts are not visited.
func (r *Registry) Range(fn func(Entry) bool) {
	for url, mt := range r.snapshot() {
		if !fn(Entry{URL: url, Type: mt}) {
			return
		}
	}
}

// FindMessageByURL implements protoregistry.MessageTypeResolver. The URL must
// match a registered URL exactly. Unlike Resolve, a miss is reported as
// protoregistry.NotFound itself, since the protobuf runtime compares against
// that value directly.
func (r *Registry) FindMessageByURL(url string) (protoreflect.MessageType, error) {
	if mt, ok := r.snapshot()[url]; ok {
		return mt, nil
	}
	return nil, protoregistry.NotFound
}

// FindMessageByName implements protoregistry.MessageTypeResolver by looking up
// the canonical URL for the given name.
func (r *Registry) FindMessageByName(name protoreflect.FullName) (protoreflect.MessageType, error) {
	return r.FindMessageByURL(URLFor(name))
}

// FindExtensionByName implements protoregistry.ExtensionTypeResolver. The
// registry holds no extensions, so this always returns protoregistry.NotFound.
func (r *Registry) FindExtensionByName(protoreflect.FullName) (protoreflect.ExtensionType, error) {
	return nil, protoregistry.NotFound
}

// FindExtensionByNumber implements protoregistry.ExtensionTypeResolver. The
// registry holds no extensions, so this always returns protoregistry.NotFound.
func (r *Registry) FindExtensionByNumber(protoreflect.FullName, protoreflect.FieldNumber) (protoreflect.ExtensionType, error) {
	return nil, protoregistry.NotFound
}

// SameShape reports whether two message types describe the same message: the
// same descriptor, or descriptors with the same full name from the same file.
// Dynamic types built twice from one schema are the same shape.
func SameShape(a, b protoreflect.MessageType) bool {
	da, db := a.Descriptor(), b.Descriptor()
	if da == db {
		return true
	}
	if da.FullName() != db.FullName() {
		return false
	}
	return da.ParentFile().Path() == db.ParentFile().Path()
}

func describe(mt protoreflect.MessageType) string {
	md := mt.Descriptor()
	return string(md.FullName()) + " (" + md.ParentFile().Path() + ")"
}
