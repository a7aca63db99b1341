package patch

import "strings"

// WeakMarker prefixes identifiers whose concrete name is discovered by
// matching.
const WeakMarker = '~'

// Wildcard matches any value and never binds.
const Wildcard = "*"

// IdentKind classifies an identifier.
type IdentKind uint8

const (
	Literal IdentKind = iota
	Weak
	Any
)

func (k IdentKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Weak:
		return "weak"
	case Any:
		return "wildcard"
	}
	return "unknown"
}

// Ident is a template name. Name is Raw without the weak marker; it is the
// concrete name for literals and the binding key for weak identifiers.
type Ident struct {
	Raw  string
	Name string
	Kind IdentKind
}

// ParseIdent classifies a token.
func ParseIdent(raw string) Ident {
	name := strings.TrimPrefix(raw, string(WeakMarker))
	switch {
	case name == Wildcard:
		return Ident{Raw: raw, Name: Wildcard, Kind: Any}
	case len(name) != len(raw):
		return Ident{Raw: raw, Name: name, Kind: Weak}
	}
	return Ident{Raw: raw, Name: raw, Kind: Literal}
}

// IsWeak reports whether the identifier is bound through a scope.
func (id Ident) IsWeak() bool { return id.Kind == Weak }

// IsWildcard reports whether the identifier matches anything.
func (id Ident) IsWildcard() bool { return id.Kind == Any }

// IsLiteral reports whether the identifier names a concrete entity.
func (id Ident) IsLiteral() bool { return id.Kind == Literal }

func (id Ident) String() string { return id.Raw }

// Mode is the intent of a template element.
type Mode uint8

const (
	Match Mode = iota
	Add
	Remove
)

// Mode prefix characters.
const (
	matchPrefix  = '.'
	addPrefix    = '+'
	removePrefix = '-'
)

// ModeFromPrefix maps a command line prefix to a mode.
func ModeFromPrefix(c byte) (Mode, bool) {
	switch c {
	case matchPrefix:
		return Match, true
	case addPrefix:
		return Add, true
	case removePrefix:
		return Remove, true
	}
	return Match, false
}

// Prefix returns the command line prefix of the mode.
func (m Mode) Prefix() byte {
	switch m {
	case Add:
		return addPrefix
	case Remove:
		return removePrefix
	}
	return matchPrefix
}

func (m Mode) String() string {
	switch m {
	case Match:
		return "match"
	case Add:
		return "add"
	case Remove:
		return "remove"
	}
	return "unknown"
}
