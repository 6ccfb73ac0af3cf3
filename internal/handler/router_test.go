package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/cache"
	"github.com/xxxsen/ragchat/internal/graph"
	"github.com/xxxsen/ragchat/internal/index"
	"github.com/xxxsen/ragchat/internal/memory"
	"github.com/xxxsen/ragchat/internal/pkg/errcode"
	"github.com/xxxsen/ragchat/internal/repo"
	"github.com/xxxsen/ragchat/internal/service"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	db, err := repo.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repo.ApplyMigrations(db, "../../migrations"))

	jwtSecret := []byte("test-secret")
	userRepo := repo.NewUserRepo(db)
	docRepo := repo.NewDocumentRepo(db)
	chunkRepo := repo.NewChunkRepo(db)
	store := index.NewStore(dir)
	graphs := graph.NewRegistry(store)
	answers := cache.New(16, time.Minute)
	locks := service.NewLockSet()

	authService := service.NewAuthService(userRepo, jwtSecret, time.Hour)
	documentService := service.NewDocumentService(docRepo, chunkRepo, store, graphs, answers, locks)
	memoryService := service.NewMemoryService(memory.NewStore(dir), nil)
	graphService := service.NewGraphService(graphs)

	engine := gin.New()
	RegisterRoutes(engine.Group("/api/v1"), RouterDeps{
		Auth:      NewAuthHandler(authService),
		Documents: NewDocumentHandler(documentService, nil),
		Chat:      NewChatHandler(nil),
		Memory:    NewMemoryHandler(memoryService),
		Graph:     NewGraphHandler(graphService),
		Health:    NewHealthHandler(db, answers),
		JWTSecret: jwtSecret,
	})
	return engine
}

type envelope struct {
	Code int                    `json:"code"`
	Msg  string                 `json:"msg"`
	Data map[string]interface{} `json:"data"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var result envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	return resp, result
}

func TestAuthRegisterLoginMe(t *testing.T) {
	router := setupRouter(t)

	resp, result := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"email": "Test@Example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Zero(t, result.Code)
	token, _ := result.Data["token"].(string)
	require.NotEmpty(t, token)

	_, result = doJSON(t, router, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "test@example.com", "password": "secret123"})
	require.Zero(t, result.Code)
	token, _ = result.Data["token"].(string)
	require.NotEmpty(t, token)

	_, result = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Zero(t, result.Code)
	assert.Equal(t, "test@example.com", result.Data["email"])
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	router := setupRouter(t)

	_, result := doJSON(t, router, http.MethodGet, "/api/v1/documents", "", nil)
	assert.Equal(t, errcode.ErrUnauthorized, result.Code)

	_, result = doJSON(t, router, http.MethodGet, "/api/v1/documents", "not-a-jwt", nil)
	assert.Equal(t, errcode.ErrUnauthorized, result.Code)
}

func TestHealthRoute(t *testing.T) {
	router := setupRouter(t)

	resp, result := doJSON(t, router, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Zero(t, result.Code)
	assert.Equal(t, "ok", result.Data["status"])
	assert.NotEmpty(t, result.Data["version"])
}

func TestGraphAndMemoryRoutesForFreshUser(t *testing.T) {
	router := setupRouter(t)

	_, result := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"email": "fresh@example.com", "password": "secret123"})
	require.Zero(t, result.Code)
	token, _ := result.Data["token"].(string)
	require.NotEmpty(t, token)

	_, result = doJSON(t, router, http.MethodGet, "/api/v1/graph/stats", token, nil)
	require.Zero(t, result.Code)
	assert.Equal(t, float64(0), result.Data["nodes"])

	_, result = doJSON(t, router, http.MethodGet, "/api/v1/graph/full", token, nil)
	require.Zero(t, result.Code)

	_, result = doJSON(t, router, http.MethodGet, "/api/v1/memory", token, nil)
	require.Zero(t, result.Code)
	assert.Equal(t, "", result.Data["user_memory"])

	_, result = doJSON(t, router, http.MethodDelete, "/api/v1/memory/user", token, nil)
	require.Zero(t, result.Code)

	_, result = doJSON(t, router, http.MethodDelete, "/api/v1/memory/bogus", token, nil)
	assert.Equal(t, errcode.ErrInvalid, result.Code)
}
