package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/proxsync/proxsync/pkg/syncer"
)

// Syncer runs connection syncs
type Syncer interface {
	SyncConnection(ctx context.Context, id uint) (*syncer.Result, error)
	SyncAll(ctx context.Context) (*syncer.SweepReport, error)
}

// SyncHandlers contains handlers triggering sync runs
type SyncHandlers struct {
	syncer Syncer
}

func NewSyncHandlers(s Syncer) *SyncHandlers {
	return &SyncHandlers{syncer: s}
}

// SyncConnection handles POST /api/v1/connections/:id/sync. The run is
// synchronous and answers with the result document.
func (h *SyncHandlers) SyncConnection(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.syncer.SyncConnection(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, syncer.ErrConnectionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, syncer.ErrSyncInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// SyncAll handles POST /api/v1/sync
func (h *SyncHandlers) SyncAll(c *gin.Context) {
	report, err := h.syncer.SyncAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
