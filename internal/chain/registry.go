package chain

import "etl-records/internal/record"

// Registry maps a record kind to the builder of its chain. It is fixed at
// construction and safe for concurrent reads.
type Registry struct {
	builders map[record.Kind]Builder
}

// NewRegistry copies builders into a new registry. KindUnknown entries are
// ignored; unknown records never get a chain.
func NewRegistry(builders map[record.Kind]Builder) *Registry {
	m := make(map[record.Kind]Builder, len(builders))
	for k, b := range builders {
		if k == record.KindUnknown || b == nil {
			continue
		}
		m[k] = b
	}
	return &Registry{builders: m}
}

// DefaultRegistry wires the builder of every known kind with the given
// rules.
func DefaultRegistry(rules Rules) *Registry {
	rules = rules.WithDefaults()
	return NewRegistry(map[record.Kind]Builder{
		record.KindAccessLog:   AccessLogBuilder(rules.AccessLog),
		record.KindTransaction: TransactionBuilder(rules.Transaction),
		record.KindSystemError: SystemErrorBuilder(rules.SystemError),
	})
}

// Lookup returns the builder for kind. A missing entry is not an error; the
// caller decides what to do with records it cannot process.
func (r *Registry) Lookup(kind record.Kind) (Builder, bool) {
	b, ok := r.builders[kind]
	return b, ok
}
