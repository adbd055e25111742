package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/applier"
	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/syncer"
)

// MockConnectionStore mocks the connection repository
type MockConnectionStore struct {
	mock.Mock
}

func (m *MockConnectionStore) Create(ctx context.Context, clusterName string, conn *models.Connection) error {
	args := m.Called(clusterName, conn)
	if args.Error(0) == nil {
		conn.ID = 1
		conn.Cluster = &models.Cluster{ID: 1, Name: clusterName}
	}
	return args.Error(0)
}

func (m *MockConnectionStore) ListPaged(ctx context.Context, limit, offset int, sort string) ([]models.Connection, int64, error) {
	args := m.Called(limit, offset, sort)
	conns, _ := args.Get(0).([]models.Connection)
	return conns, args.Get(1).(int64), args.Error(2)
}

func (m *MockConnectionStore) GetByID(ctx context.Context, id uint) (*models.Connection, error) {
	args := m.Called(id)
	if conn := args.Get(0); conn != nil {
		return conn.(*models.Connection), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConnectionStore) Update(ctx context.Context, conn *models.Connection) error {
	return m.Called(conn).Error(0)
}

func (m *MockConnectionStore) Delete(ctx context.Context, id uint) error {
	return m.Called(id).Error(0)
}

// MockSyncer mocks the orchestrator
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) SyncConnection(ctx context.Context, id uint) (*syncer.Result, error) {
	args := m.Called(id)
	if r := args.Get(0); r != nil {
		return r.(*syncer.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockSyncer) SyncAll(ctx context.Context) (*syncer.SweepReport, error) {
	args := m.Called()
	if r := args.Get(0); r != nil {
		return r.(*syncer.SweepReport), args.Error(1)
	}
	return nil, args.Error(1)
}

func setupTest() (*gin.Engine, *MockConnectionStore, *MockSyncer) {
	gin.SetMode(gin.TestMode)

	store := new(MockConnectionStore)
	s := new(MockSyncer)
	conns := NewConnectionHandlers(store)
	syncs := NewSyncHandlers(s)

	router := gin.New()
	router.GET("/connections", conns.ListConnections)
	router.POST("/connections", conns.CreateConnection)
	router.GET("/connections/:id", conns.GetConnection)
	router.PUT("/connections/:id", conns.UpdateConnection)
	router.DELETE("/connections/:id", conns.DeleteConnection)
	router.POST("/connections/:id/sync", syncs.SyncConnection)
	router.POST("/sync", syncs.SyncAll)

	return router, store, s
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateConnection(t *testing.T) {
	router, store, _ := setupTest()
	store.On("Create", "lab", mock.MatchedBy(func(c *models.Connection) bool {
		return c.Host == "pve.lab" && c.Port == 8006 && c.VerifySSL
	})).Return(nil)

	w := doRequest(router, http.MethodPost, "/connections", CreateConnectionRequest{
		Cluster: "lab", Domain: "pve.lab", User: "root@pam", TokenID: "sync", TokenSecret: "s3cret",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "s3cret")
	store.AssertExpectations(t)
}

func TestCreateConnectionInvalid(t *testing.T) {
	router, _, _ := setupTest()
	w := doRequest(router, http.MethodPost, "/connections", map[string]string{"cluster": "lab"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListConnections(t *testing.T) {
	router, store, _ := setupTest()
	store.On("ListPaged", 10, 10, "host").Return([]models.Connection{{ID: 3, Host: "pve.lab"}}, int64(11), nil)

	w := doRequest(router, http.MethodGet, "/connections?page=2&page_size=10&sort=host", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		ResultTotal int64               `json:"resultTotal"`
		PageCount   int                 `json:"pageCount"`
		Values      []models.Connection `json:"values"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(11), page.ResultTotal)
	assert.Equal(t, 2, page.PageCount)
	assert.Len(t, page.Values, 1)
}

func TestGetConnection(t *testing.T) {
	router, store, _ := setupTest()
	store.On("GetByID", uint(1)).Return(&models.Connection{ID: 1, Host: "pve.lab"}, nil)
	store.On("GetByID", uint(2)).Return(nil, gorm.ErrRecordNotFound)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/connections/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/connections/2", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/connections/abc", nil).Code)
}

func TestUpdateConnectionKeepsSecret(t *testing.T) {
	router, store, _ := setupTest()
	store.On("GetByID", uint(1)).Return(&models.Connection{ID: 1, Host: "pve.lab", Port: 8006, TokenSecret: "old", VerifySSL: true}, nil)
	store.On("Update", mock.MatchedBy(func(c *models.Connection) bool {
		return c.Host == "pve2.lab" && c.TokenSecret == "old" && !c.VerifySSL
	})).Return(nil)

	verify := false
	w := doRequest(router, http.MethodPut, "/connections/1", UpdateConnectionRequest{Domain: "pve2.lab", VerifySSL: &verify})
	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}

func TestDeleteConnection(t *testing.T) {
	router, store, _ := setupTest()
	store.On("Delete", uint(1)).Return(nil)
	store.On("Delete", uint(2)).Return(gorm.ErrRecordNotFound)

	assert.Equal(t, http.StatusNoContent, doRequest(router, http.MethodDelete, "/connections/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodDelete, "/connections/2", nil).Code)
}

func TestSyncConnection(t *testing.T) {
	router, _, s := setupTest()
	s.On("SyncConnection", uint(1)).Return(&syncer.Result{
		RunID:   "run",
		Cluster: "lab",
		Tags:    &applier.Result{Created: []models.RecordSummary{{ID: 1, Model: models.ObjectTypeTag, Name: "prod"}}},
	}, nil)
	s.On("SyncConnection", uint(2)).Return(nil, syncer.ErrConnectionNotFound)
	s.On("SyncConnection", uint(3)).Return(nil, syncer.ErrSyncInProgress)
	s.On("SyncConnection", uint(4)).Return(nil, errors.New("failed to fetch inventory"))

	w := doRequest(router, http.MethodPost, "/connections/1/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pk":1`)

	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodPost, "/connections/2/sync", nil).Code)
	assert.Equal(t, http.StatusConflict, doRequest(router, http.MethodPost, "/connections/3/sync", nil).Code)

	w = doRequest(router, http.MethodPost, "/connections/4/sync", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to fetch inventory"}`, w.Body.String())
}

func TestSyncAll(t *testing.T) {
	router, _, s := setupTest()
	s.On("SyncAll").Return(&syncer.SweepReport{RunID: "sweep", Failures: []syncer.Failure{{ConnectionID: 2, Error: "unreachable"}}}, nil)

	w := doRequest(router, http.MethodPost, "/sync", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "unreachable")
}

func TestValidateConnection(t *testing.T) {
	assert.NoError(t, validateConnection("pve.lab", 8006, "root@pam", "sync"))
	assert.NoError(t, validateConnection("10.0.0.1", 0, "root@pam", "root@pam!sync"))
	assert.NoError(t, validateConnection("fd00::1", 443, "", ""))

	assert.Error(t, validateConnection("pve lab", 8006, "root@pam", "sync"))
	assert.Error(t, validateConnection("pve.lab", 70000, "root@pam", "sync"))
	assert.Error(t, validateConnection("pve.lab", 8006, "root", "sync"))
	assert.Error(t, validateConnection("pve.lab", 8006, "root@pam", "bad token"))
}

func TestCreateConnectionRejectsBadDomain(t *testing.T) {
	router, store, _ := setupTest()

	w := doRequest(router, http.MethodPost, "/connections", CreateConnectionRequest{
		Cluster: "lab", Domain: "https://pve.lab", User: "root@pam", TokenID: "sync", TokenSecret: "s3cret",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
