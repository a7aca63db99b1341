// Package engine matches class templates against a class universe and
// applies them.
//
// A Session owns one simplified universe. Match searches for a single scope
// under which every template element is satisfied, Apply rewrites the
// universe through such a scope and Render turns concrete classes back into
// template text.
//
// Matching is a depth-first search over template classes in declaration
// order. For each class it picks a concrete candidate, then checks
// supertypes, fields, method signatures and finally method bodies. Every
// decision point forks the scope; a failed branch simply drops its fork.
package engine
