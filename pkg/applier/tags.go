package applier

import (
	"context"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/reconciler"
)

// Tags applies a tag plan. Tags named in protected are still referenced by
// another cluster and are neither deleted nor reported.
func (a *Applier) Tags(ctx context.Context, plan *reconciler.TagPlan, protected map[string]struct{}) *Result {
	result := newResult(plan.Warnings)
	logger := a.logger.With().Str("type", "tag").Logger()

	for _, desired := range plan.Create {
		tag := &models.Tag{
			Name:        desired.Name,
			Slug:        desired.Slug,
			Color:       desired.Color,
			ObjectTypes: []string{models.ObjectTypeVirtualMachine},
		}
		if err := a.stores.Tags.Create(ctx, tag); err != nil {
			result.fail(logger, err, "failed to create tag %q", desired.Name)
			continue
		}
		result.Created = append(result.Created, tag.Summary())
	}

	for _, u := range plan.Update {
		tag := u.Before
		tag.Slug = u.After.Slug
		tag.Color = u.After.Color
		tag.ObjectTypes = []string{models.ObjectTypeVirtualMachine}
		if err := a.stores.Tags.Update(ctx, tag); err != nil {
			result.fail(logger, err, "failed to update tag %q", tag.Name)
			continue
		}
		result.Updated = append(result.Updated, tag.Summary())
	}

	for _, tag := range plan.Delete {
		if _, ok := protected[tag.Name]; ok {
			logger.Debug().Str("tag", tag.Name).Msg("Tag still used by another cluster, keeping it")
			continue
		}
		if err := a.stores.Tags.Delete(ctx, tag.ID); err != nil && !isGone(err) {
			result.fail(logger, err, "failed to delete tag %q", tag.Name)
			continue
		}
		result.Deleted = append(result.Deleted, tag.Summary())
	}

	return result
}
