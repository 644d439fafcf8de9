package chain

import (
	"errors"
	"fmt"

	"etl-records/internal/record"
)

// ErrChainReused is returned when Handle is called twice on the same chain.
// Chains keep per-invocation state, so every record gets a fresh one from
// its Builder.
var ErrChainReused = errors.New("chain instance already handled a record")

// Failure is the expected way for a link to refuse a record: a missing
// field, a malformed value, a value out of range. Any other error coming out
// of a chain is treated as unexpected by the caller.
type Failure struct {
	Link   string
	Reason string
}

// Error returns the reason alone so it can be used verbatim as the
// rejection reason.
func (f *Failure) Error() string { return f.Reason }

// Rejectf builds a Failure. The link name is filled in by the chain.
func Rejectf(format string, args ...interface{}) error {
	return &Failure{Reason: fmt.Sprintf(format, args...)}
}

// Link is a single validation or transformation step. It receives the
// record produced by the previous link and either returns it (possibly
// modified) or fails. Links never retry.
type Link interface {
	Name() string
	Process(rec record.Record) (record.Record, error)
}

// LinkFunc adapts a plain function to the Link interface.
type LinkFunc struct {
	name string
	fn   func(rec record.Record) (record.Record, error)
}

// NewLink wraps fn as a named link.
func NewLink(name string, fn func(rec record.Record) (record.Record, error)) Link {
	return &LinkFunc{name: name, fn: fn}
}

// Name implements Link.
func (l *LinkFunc) Name() string { return l.name }

// Process implements Link.
func (l *LinkFunc) Process(rec record.Record) (record.Record, error) { return l.fn(rec) }

// Builder produces a freshly composed chain for one record kind. Builders
// take no arguments and every call returns an independent instance.
type Builder func() *Chain

// Chain is an ordered list of links for one record kind. Later links may
// rely on fields guaranteed by earlier ones, so the order given to New is
// part of the chain's contract.
type Chain struct {
	kind  record.Kind
	links []Link

	// per-invocation state
	used  bool
	trace []string
}

// New composes a chain from links in the given order.
func New(kind record.Kind, links ...Link) *Chain {
	ls := make([]Link, len(links))
	copy(ls, links)
	return &Chain{kind: kind, links: ls}
}

// Kind returns the record kind the chain was built for.
func (c *Chain) Kind() record.Kind { return c.kind }

// Len returns the number of links.
func (c *Chain) Len() int { return len(c.links) }

// Trace returns the names of the links that completed during Handle, in
// order. On failure the failing link is not included.
func (c *Chain) Trace() []string {
	out := make([]string, len(c.trace))
	copy(out, c.trace)
	return out
}

// Handle runs rec through every link. The input record is never modified;
// on success the returned record is the output of the last link.
//
// A *Failure from a link is returned with its Link field set. Other errors
// are wrapped with the link name, and a panic inside a link is recovered and
// returned as an error.
func (c *Chain) Handle(rec record.Record) (out record.Record, err error) {
	if c.used {
		return rec, ErrChainReused
	}
	c.used = true

	current := rec.Clone()
	for _, l := range c.links {
		current, err = c.step(l, current)
		if err != nil {
			return rec, err
		}
		c.trace = append(c.trace, l.Name())
	}
	return current, nil
}

func (c *Chain) step(l Link, rec record.Record) (out record.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("link %q panicked: %v", l.Name(), p)
		}
	}()

	out, err = l.Process(rec)
	if err == nil {
		return out, nil
	}

	var f *Failure
	if errors.As(err, &f) {
		if f.Link == "" {
			f.Link = l.Name()
		}
		return rec, f
	}
	return rec, fmt.Errorf("link %q: %w", l.Name(), err)
}
