// Package reconciler compares desired inventory records with the records in
// the store and classifies them into create, update and delete operations.
// It never writes to the store.
package reconciler

import "sort"

// Update pairs an existing record with the desired state it must take
type Update[E any, D any] struct {
	Before E
	After  D
}

// Plan is the categorized outcome for one entity type
type Plan[E any, D any] struct {
	Create   []D
	Update   []Update[E, D]
	Delete   []E
	Warnings []string
}

// Empty reports whether the plan contains no operation
func (p *Plan[E, D]) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// warnings collects unique messages in insertion-independent order
type warnings map[string]struct{}

func (w warnings) add(msg string) {
	w[msg] = struct{}{}
}

func (w warnings) list() []string {
	out := make([]string, 0, len(w))
	for msg := range w {
		out = append(out, msg)
	}
	sort.Strings(out)
	return out
}
