package reconciler

import (
	"fmt"
	"strings"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/inventory"
)

// TagPlan is the categorized tag batch
type TagPlan = Plan[*models.Tag, inventory.Tag]

// Tags matches desired tags by name. Every tag whose name is missing from the
// desired set is deleted; the applier skips the names it was told to keep.
// Tags with a foreign slug are never updated.
func (r *Reconciler) Tags(existing []models.Tag, desired []inventory.Tag) *TagPlan {
	records := pointers(existing)

	byName := newMatcher(records,
		func(t *models.Tag) []string { return []string{t.Name} },
		func(t inventory.Tag) (string, bool) { return t.Name, true },
	)

	plan := &TagPlan{}
	plan.Create, plan.Update, _ = categorize(desired,
		func(t inventory.Tag) string { return t.Name },
		[]matcher[*models.Tag, inventory.Tag]{byName},
		func(t *models.Tag) uint { return t.ID },
		TagsEqual,
	)

	desiredNames := make(map[string]struct{}, len(desired))
	for _, t := range desired {
		desiredNames[t.Name] = struct{}{}
	}
	for _, t := range records {
		if _, ok := desiredNames[t.Name]; !ok {
			plan.Delete = append(plan.Delete, t)
		}
	}

	plan.Warnings = TagWarnings(records, desired)
	return plan
}

// TagsEqual compares an existing tag with its desired state. A tag whose slug
// differs belongs to someone else and is considered equal.
func TagsEqual(existing *models.Tag, desired inventory.Tag) bool {
	if existing.Slug != desired.Slug {
		return true
	}
	return strings.EqualFold(existing.Color, desired.Color)
}

// TagWarnings flags desired tags colliding with tags not owned by the sync
func TagWarnings(existing []*models.Tag, desired []inventory.Tag) []string {
	byName := make(map[string]*models.Tag, len(existing))
	for _, t := range existing {
		byName[t.Name] = t
	}
	w := warnings{}
	for _, d := range desired {
		if e, ok := byName[d.Name]; ok && e.Slug != d.Slug {
			w.add(fmt.Sprintf("Tag '%s' already exists and is not managed by proxsync!", d.Name))
		}
	}
	return w.list()
}

func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
