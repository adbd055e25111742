package reconciler

// matcher finds existing records sharing one identity key with a desired record
type matcher[E any, D any] struct {
	index  map[string][]E
	key    func(D) (string, bool)
	accept func(E, D) bool
}

// newMatcher indexes existing records under every key they expose, in
// input order.
func newMatcher[E any, D any](existing []E, keys func(E) []string, key func(D) (string, bool)) matcher[E, D] {
	index := make(map[string][]E, len(existing))
	for _, e := range existing {
		for _, k := range keys(e) {
			if k == "" {
				continue
			}
			index[k] = append(index[k], e)
		}
	}
	return matcher[E, D]{index: index, key: key}
}

// filtered returns a copy of m rejecting candidates for which accept is false
func (m matcher[E, D]) filtered(accept func(E, D) bool) matcher[E, D] {
	m.accept = accept
	return m
}

// find returns the first candidate not yet claimed
func (m matcher[E, D]) find(d D, id func(E) uint, claimed map[uint]struct{}) (E, bool) {
	var zero E
	k, ok := m.key(d)
	if !ok || k == "" {
		return zero, false
	}
	for _, e := range m.index[k] {
		if _, taken := claimed[id(e)]; taken {
			continue
		}
		if m.accept != nil && !m.accept(e, d) {
			continue
		}
		return e, true
	}
	return zero, false
}

// categorize returns the creates and updates together with the IDs of
// claimed existing records. Desired records sharing an identity key collapse
// into the first one. Each matcher runs as a pass over all records still
// unmatched, so a stronger key always wins over a weaker one regardless of
// input order. An existing record is claimed at most once; a desired record
// left without an unclaimed match is created.
func categorize[E any, D any](
	desired []D,
	identity func(D) string,
	matchers []matcher[E, D],
	id func(E) uint,
	equal func(E, D) bool,
) (create []D, update []Update[E, D], claimed map[uint]struct{}) {
	seen := make(map[string]struct{}, len(desired))
	var unique []D
	for _, d := range desired {
		key := identity(d)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, d)
	}

	claimed = make(map[uint]struct{})
	matched := make([]E, len(unique))
	found := make([]bool, len(unique))
	for _, m := range matchers {
		for i, d := range unique {
			if found[i] {
				continue
			}
			if e, ok := m.find(d, id, claimed); ok {
				claimed[id(e)] = struct{}{}
				matched[i] = e
				found[i] = true
			}
		}
	}

	for i, d := range unique {
		switch {
		case !found[i]:
			create = append(create, d)
		case !equal(matched[i], d):
			update = append(update, Update[E, D]{Before: matched[i], After: d})
		}
	}
	return create, update, claimed
}
