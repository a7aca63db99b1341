package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/classpatch/patch"
	"github.com/chazu/classpatch/scope"
	"github.com/chazu/classpatch/universe"
)

var log = commonlog.GetLogger("classpatch.engine")

// DefaultMaxSteps bounds the number of search steps of one Match call.
const DefaultMaxSteps = 1 << 20

// ErrBudgetExceeded is returned by Match when the search takes more steps
// than the session allows.
var ErrBudgetExceeded = errors.New("engine: search budget exceeded")

// InvariantError reports that the rewrite disagrees with the match that
// produced its scope. It always indicates a defect, never a template that
// simply does not apply.
type InvariantError struct {
	Class string
	Msg   string
	Err   error
}

func (e *InvariantError) Error() string {
	msg := "engine: invariant violated"
	if e.Class != "" {
		msg += " in " + e.Class
	}
	msg += ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

func invariantf(class string, err error, format string, args ...any) *InvariantError {
	return &InvariantError{Class: class, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Result is the outcome of a match: either a scope or nothing.
type Result struct {
	scope *scope.Scope
	asg   *assignment
}

// NotMatched is the result of a template that does not apply.
var NotMatched = Result{}

// Matched reports whether the template applies.
func (r Result) Matched() bool {
	return r.scope != nil
}

// Scope returns the bindings of a successful match, or nil.
func (r Result) Scope() *scope.Scope {
	return r.scope
}

// Session matches and applies templates against one universe. A session is
// not safe for concurrent use; separate sessions must own separate
// universes.
type Session struct {
	ID       uuid.UUID
	Classes  *universe.ClassSet
	log      commonlog.Logger
	maxSteps int
	seed     *scope.Scope
}

// Option configures a Session.
type Option func(*Session)

// WithMaxSteps bounds the search. Zero or less means unbounded.
func WithMaxSteps(n int) Option {
	return func(s *Session) {
		s.maxSteps = n
	}
}

// WithSeed starts every search from the bindings of sc. Seeded bindings
// constrain the match and are never replaced.
func WithSeed(sc *scope.Scope) Option {
	return func(s *Session) {
		s.seed = sc
	}
}

// WithLogger replaces the package logger.
func WithLogger(l commonlog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// NewSession simplifies cs and returns a session over it.
func NewSession(cs *universe.ClassSet, opts ...Option) *Session {
	s := &Session{
		ID:       uuid.New(),
		Classes:  cs,
		log:      log,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !cs.IsSimplified() {
		cs.Simplify()
	}
	return s
}

func (s *Session) rootScope() *scope.Scope {
	if s.seed != nil {
		return s.seed.Fork()
	}
	return scope.New()
}

// Patch matches tmpl and, when it applies, rewrites the universe. The
// returned result carries the scope extended by the rewrite.
func (s *Session) Patch(tmpl *patch.Classes) (Result, error) {
	res, err := s.Match(tmpl)
	if err != nil || !res.Matched() {
		return res, err
	}
	sc, err := s.apply(tmpl, res.scope, res.asg)
	if err != nil {
		return NotMatched, err
	}
	return Result{scope: sc, asg: res.asg}, nil
}
