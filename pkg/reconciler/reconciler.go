package reconciler

import (
	"strings"

	"github.com/proxsync/proxsync/pkg/normalizer"
)

// Options holds the ownership and protection rules
type Options struct {
	TagSlugPrefix               string
	ProtectedInterfacePrefixes  []string
	ProtectedDescriptionMarkers []string
}

type Reconciler struct {
	opts Options
}

func New(opts Options) *Reconciler {
	if opts.TagSlugPrefix == "" {
		opts.TagSlugPrefix = normalizer.TagSlugPrefix
	}
	return &Reconciler{opts: opts}
}

// TagSlugPrefix returns the slug prefix marking owned tags
func (r *Reconciler) TagSlugPrefix() string {
	return r.opts.TagSlugPrefix
}

// isProtectedInterface reports whether a VM interface is managed by something
// else than the sync: its name (or the part after the VM name) starts with a
// protected prefix, or its description names a protected manager.
func (r *Reconciler) isProtectedInterface(name, description string) bool {
	slot := name
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		slot = name[idx+1:]
	}
	for _, prefix := range r.opts.ProtectedInterfacePrefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(name, prefix) || strings.HasPrefix(slot, prefix) {
			return true
		}
	}
	for _, marker := range r.opts.ProtectedDescriptionMarkers {
		if marker != "" && strings.Contains(description, marker) {
			return true
		}
	}
	return false
}
