// Package patch holds the template model: identifiers, modes, the class,
// field, method and instruction templates, and the line-oriented template
// text format.
//
// A template looks like:
//
//	.class ~Counter
//	.field ~count I private
//	+field total I
//	.method ~inc ()V
//	.load-object 0
//	.load-object 0
//	.get-field ~Counter ~count I
//	.push-int 1
//	.iadd
//	.put-field ~Counter ~count I
//	+push-int 0
//	+pop
//	.return
//	.end-method
//	.end-class
//
// The first character of every command line is its mode: '.' match,
// '+' add, '-' remove. Identifiers prefixed with '~' are weak and are bound
// during matching; '*' matches anything.
package patch
