package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/api/types"
	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/proxmox"
)

// ConnectionStore is the persistence the connection handlers need
type ConnectionStore interface {
	Create(ctx context.Context, clusterName string, conn *models.Connection) error
	ListPaged(ctx context.Context, limit, offset int, sort string) ([]models.Connection, int64, error)
	GetByID(ctx context.Context, id uint) (*models.Connection, error)
	Update(ctx context.Context, conn *models.Connection) error
	Delete(ctx context.Context, id uint) error
}

// ConnectionHandlers contains handlers for Proxmox connection endpoints
type ConnectionHandlers struct {
	store ConnectionStore
}

// CreateConnectionRequest represents the request body for creating a connection
type CreateConnectionRequest struct {
	Cluster     string `json:"cluster" binding:"required"`
	Domain      string `json:"domain" binding:"required"`
	Port        int    `json:"port"`
	User        string `json:"user" binding:"required"`
	TokenID     string `json:"token_id" binding:"required"`
	TokenSecret string `json:"token_secret" binding:"required"`
	VerifySSL   *bool  `json:"verify_ssl"`
}

// UpdateConnectionRequest represents the request body for updating a
// connection. Omitted fields keep their value.
type UpdateConnectionRequest struct {
	Domain      string `json:"domain"`
	Port        int    `json:"port"`
	User        string `json:"user"`
	TokenID     string `json:"token_id"`
	TokenSecret string `json:"token_secret"`
	VerifySSL   *bool  `json:"verify_ssl"`
}

func NewConnectionHandlers(store ConnectionStore) *ConnectionHandlers {
	return &ConnectionHandlers{store: store}
}

// parseID reads the :id path parameter, answering 400 when it is invalid
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection ID"})
		return 0, false
	}
	return uint(id), true
}

// ListConnections handles GET /api/v1/connections
func (h *ConnectionHandlers) ListConnections(c *gin.Context) {
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "25"))
	if err != nil || pageSize < 1 {
		pageSize = 25
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	conns, total, err := h.store.ListPaged(c.Request.Context(), pageSize, (page-1)*pageSize, c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve connections"})
		return
	}

	c.JSON(http.StatusOK, types.NewPage(conns, page, pageSize, total))
}

// GetConnection handles GET /api/v1/connections/:id
func (h *ConnectionHandlers) GetConnection(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	conn, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve connection"})
		return
	}

	c.JSON(http.StatusOK, conn)
}

// CreateConnection handles POST /api/v1/connections
func (h *ConnectionHandlers) CreateConnection(c *gin.Context) {
	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := validateConnection(req.Domain, req.Port, req.User, req.TokenID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection", "details": err.Error()})
		return
	}

	conn := &models.Connection{
		Host:        req.Domain,
		Port:        req.Port,
		User:        req.User,
		TokenID:     req.TokenID,
		TokenSecret: req.TokenSecret,
		VerifySSL:   true,
	}
	if conn.Port == 0 {
		conn.Port = proxmox.DefaultPort
	}
	if req.VerifySSL != nil {
		conn.VerifySSL = *req.VerifySSL
	}

	if err := h.store.Create(c.Request.Context(), req.Cluster, conn); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to create connection", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, conn)
}

// UpdateConnection handles PUT /api/v1/connections/:id
func (h *ConnectionHandlers) UpdateConnection(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := validateConnection(req.Domain, req.Port, req.User, req.TokenID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection", "details": err.Error()})
		return
	}

	conn, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve connection"})
		return
	}

	if req.Domain != "" {
		conn.Host = req.Domain
	}
	if req.Port != 0 {
		conn.Port = req.Port
	}
	if req.User != "" {
		conn.User = req.User
	}
	if req.TokenID != "" {
		conn.TokenID = req.TokenID
	}
	if req.TokenSecret != "" {
		conn.TokenSecret = req.TokenSecret
	}
	if req.VerifySSL != nil {
		conn.VerifySSL = *req.VerifySSL
	}

	if err := h.store.Update(c.Request.Context(), conn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update connection"})
		return
	}

	c.JSON(http.StatusOK, conn)
}

// DeleteConnection handles DELETE /api/v1/connections/:id
func (h *ConnectionHandlers) DeleteConnection(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete connection"})
		return
	}

	c.Status(http.StatusNoContent)
}
