// Package insn matches, creates and prints method body instructions.
//
// Every template instruction family (patch.Op) has one Handler. A handler
// checks a template instruction against a concrete one, binding weak names
// as it goes; creates the concrete instruction for an added template
// instruction; prints a concrete instruction back as a template
// instruction; and validates template operands before matching starts.
//
// MatchBody aligns a whole template body with a concrete body; EachBody
// enumerates every alignment for callers that backtrack over them.
package insn
