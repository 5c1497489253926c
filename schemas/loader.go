package schemas

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/fairblock/typereg/typeregistry"
)

// ConflictError reports a type URL that two sources map to different message
// shapes.
type ConflictError struct {
	URL          string
	FirstSource  string
	First        protoreflect.MessageType
	SecondSource string
	Second       protoreflect.MessageType
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("type URL %s is %s in %s but %s in %s", e.URL,
		describe(e.First), e.FirstSource, describe(e.Second), e.SecondSource)
}

func describe(mt protoreflect.MessageType) string {
	md := mt.Descriptor()
	return fmt.Sprintf("%s (%s)", md.FullName(), md.ParentFile().Path())
}

// Loader fills a registry from several sources.
type Loader struct {
	Sources []Source
	// Strict makes Load fail with a *ConflictError, without registering
	// anything, when two entries for the same URL have different shapes,
	// including an entry that is already in the registry. Otherwise later
	// sources win.
	Strict bool
	// Logger defaults to a no-op logger.
	Logger zerolog.Logger
}

// Load fetches all sources concurrently and registers their entries in the
// order the sources are listed, so the outcome does not depend on which
// source finishes first. If any source fails, nothing is registered.
func (l *Loader) Load(ctx context.Context, reg *typeregistry.Registry) error {
	tables := make([][]typeregistry.Entry, len(l.Sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range l.Sources {
		g.Go(func() error {
			entries, err := src.Entries(ctx)
			if err != nil {
				return fmt.Errorf("source %s: %w", src.Name(), err)
			}
			l.Logger.Debug().Str("source", src.Name()).Int("entries", len(entries)).Msg("loaded type table")
			tables[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if l.Strict {
		if err := l.checkConflicts(reg, tables); err != nil {
			return err
		}
	}
	total := 0
	for _, entries := range tables {
		reg.Register(entries...)
		total += len(entries)
	}
	l.Logger.Info().Int("sources", len(l.Sources)).Int("entries", total).Int("types", reg.Len()).Msg("type registry loaded")
	return nil
}

// registrySource names the registry's existing entries in a ConflictError.
const registrySource = "registry"

func (l *Loader) checkConflicts(reg *typeregistry.Registry, tables [][]typeregistry.Entry) error {
	type origin struct {
		source string
		mt     protoreflect.MessageType
	}
	seen := map[string]origin{}
	for i, entries := range tables {
		name := l.Sources[i].Name()
		for _, e := range entries {
			if e.Type == nil {
				continue
			}
			prev, ok := seen[e.URL]
			if !ok {
				if mt, err := reg.Resolve(e.URL); err == nil {
					prev, ok = origin{source: registrySource, mt: mt}, true
					seen[e.URL] = prev
				}
			}
			if ok && !typeregistry.SameShape(prev.mt, e.Type) {
				return &ConflictError{
					URL:          e.URL,
					FirstSource:  prev.source,
					First:        prev.mt,
					SecondSource: name,
					Second:       e.Type,
				}
			}
			if !ok {
				seen[e.URL] = origin{source: name, mt: e.Type}
			}
		}
	}
	return nil
}
