// Package universe indexes a set of classes for matching.
//
// A ClassSet wraps every class, field and method in a wrapper with a stable
// arena handle. After Simplify, a method that is declared once and inherited
// or overridden down a hierarchy is a single MethodWrapper with one owner per
// class that can see it, so callers never need to re-walk the hierarchy to
// decide whether two references name the same member.
package universe
