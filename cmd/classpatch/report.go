package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chazu/classpatch/scope"
)

func (r *report) print(w io.Writer) {
	applied := 0
	for _, res := range r.results {
		if res.outcome == outcomeApplied {
			applied++
		}
	}
	fmt.Fprintf(w, "%s: %d of %d templates applied\n", r.image, applied, len(r.results))
	for _, res := range r.results {
		status := "no match"
		if res.outcome == outcomeApplied {
			status = "applied"
		}
		if res.cached {
			status += " (cached)"
		}
		fmt.Fprintf(w, "  %-8s %s\n", status, res.template)
	}
	if r.output != "" {
		fmt.Fprintf(w, "  -> %s\n", r.output)
	}
}

// printSnapshot writes one binding per line, classes first.
func printSnapshot(w io.Writer, snap *scope.Snapshot) {
	keys := make([]string, 0, len(snap.Classes))
	for k := range snap.Classes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "class  %s = %s\n", weakKey(k), snap.Classes[k])
	}
	for _, b := range snap.Fields {
		fmt.Fprintf(w, "field  %s %s = %s.%s %s\n", weakKey(b.Key), b.Desc, b.Declarer, b.Name, b.Concrete)
	}
	for _, b := range snap.Methods {
		fmt.Fprintf(w, "method %s%s = %s.%s%s\n", weakKey(b.Key), b.Desc, b.Declarer, b.Name, b.Concrete)
	}
	for _, k := range snap.Reserved {
		fmt.Fprintf(w, "new    %s\n", weakKey(k))
	}
}

func weakKey(k string) string {
	if strings.HasPrefix(k, "~") {
		return k
	}
	return "~" + k
}
