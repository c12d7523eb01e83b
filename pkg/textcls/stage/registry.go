package stage

import (
	"fmt"
	"sort"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// Profile supplies per-verb defaults from a configuration file.
type Profile interface {
	Decode(verb string, into any) error
}

// Constructor builds a configured stage once flags have been parsed.
type Constructor func(log *zap.Logger) (Stage, error)

// Entry describes one CLI verb.
type Entry struct {
	Verb    string
	Module  string
	Summary string
	// Setup applies profile defaults to a fresh options value, binds its
	// flags and returns the constructor that validates it after parsing.
	Setup func(fs *pflag.FlagSet, prof Profile) (Constructor, error)
}

// Registry maps verbs to stage constructors. It is populated explicitly at
// process start.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds e. Verbs must be unique.
func (r *Registry) Register(e Entry) error {
	if e.Verb == "" || e.Setup == nil {
		return fmt.Errorf("register %q: verb and setup are required", e.Verb)
	}
	if _, dup := r.entries[e.Verb]; dup {
		return fmt.Errorf("register %q: verb already registered", e.Verb)
	}
	r.entries[e.Verb] = e
	return nil
}

// MustRegister is Register for static tables.
func (r *Registry) MustRegister(entries ...Entry) {
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the entry for verb.
func (r *Registry) Lookup(verb string) (Entry, bool) {
	e, ok := r.entries[verb]
	return e, ok
}

// Entries returns the registered entries sorted by verb. A non-empty module
// restricts the list to that module.
func (r *Registry) Entries(module string) []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if module != "" && e.Module != module {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verb < out[j].Verb })
	return out
}

// Modules returns the sorted distinct module names.
func (r *Registry) Modules() []string {
	seen := make(map[string]struct{})
	for _, e := range r.entries {
		seen[e.Module] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Define builds an Entry for an options type O whose pointer binds flags.
// defaults returns a fresh options value; build turns validated options into
// a stage.
func Define[O any, PO interface {
	*O
	BindFlags(fs *pflag.FlagSet)
}](verb, module, summary string, defaults func() O, build func(opts O, log *zap.Logger) (Stage, error)) Entry {
	return Entry{
		Verb:    verb,
		Module:  module,
		Summary: summary,
		Setup: func(fs *pflag.FlagSet, prof Profile) (Constructor, error) {
			opts := defaults()
			if prof != nil {
				if err := prof.Decode(verb, &opts); err != nil {
					return nil, err
				}
			}
			PO(&opts).BindFlags(fs)
			return func(log *zap.Logger) (Stage, error) {
				if err := Validate(&opts); err != nil {
					return nil, err
				}
				return build(opts, log)
			}, nil
		},
	}
}
