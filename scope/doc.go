// Package scope records what weak template identifiers are bound to.
//
// A Scope maps weak class names to classes, weak field and method names to
// member wrappers (keyed by owner, name and descriptor) and weak labels to
// label nodes. Scopes form a chain: Fork returns an empty child that reads
// through to its parent, so the matcher can try a candidate and throw the
// trial bindings away by dropping the child.
//
// Bindings are added, never replaced. Binding a key that is already bound
// to something else is a caller bug and reported as *BindConflictError.
package scope
