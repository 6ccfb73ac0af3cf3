package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/ragchat/internal/pkg/jwt"
)

func newJWTTestContext(authorization string) *gin.Context {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	if authorization != "" {
		c.Request.Header.Set("Authorization", authorization)
	}
	return c
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")
	token, err := jwt.GenerateToken("u1", "u1@example.com", secret, time.Hour)
	require.NoError(t, err)

	c := newJWTTestContext("Bearer " + token)
	JWTAuth(secret)(c)

	require.False(t, c.IsAborted())
	uid, _ := c.Get(ContextUserIDKey)
	assert.Equal(t, "u1", uid)
}

func TestJWTAuthRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")

	// missing header
	c := newJWTTestContext("")
	JWTAuth(secret)(c)
	assert.True(t, c.IsAborted())

	// malformed scheme
	c = newJWTTestContext("Token abc")
	JWTAuth(secret)(c)
	assert.True(t, c.IsAborted())

	// wrong secret
	token, err := jwt.GenerateToken("u1", "", []byte("other-secret"), time.Hour)
	require.NoError(t, err)
	c = newJWTTestContext("Bearer " + token)
	JWTAuth(secret)(c)
	assert.True(t, c.IsAborted())

	// expired
	token, err = jwt.GenerateToken("u1", "", secret, -time.Minute)
	require.NoError(t, err)
	c = newJWTTestContext("Bearer " + token)
	JWTAuth(secret)(c)
	assert.True(t, c.IsAborted())
}
