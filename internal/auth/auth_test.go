package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testKey    = "test-key"
	testIssuer = "pjkr-test"
)

func TestIssueAndParse(t *testing.T) {
	s, err := Issue("panitia", "panitia", testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, time.Minute)

	claims, err := Parse(s.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "panitia", claims.Subject)
	assert.Equal(t, "panitia", claims.Role)

	_, err = Parse(s.AccessToken, "other-key", testIssuer)
	assert.Error(t, err)

	_, err = Parse(s.AccessToken, testKey, "other-issuer")
	assert.Error(t, err)

	expired, err := Issue("panitia", "panitia", testIssuer, testKey, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired.AccessToken, testKey, testIssuer)
	assert.Error(t, err)
}

func TestCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia"), bcrypt.MinCost)
	require.NoError(t, err)
	c := Credentials{Username: "panitia", PasswordHash: string(hash)}

	assert.True(t, c.Verify("panitia", "rahasia"))
	assert.False(t, c.Verify("panitia", "salah"))
	assert.False(t, c.Verify("crew", "rahasia"))
	assert.False(t, Credentials{Username: "panitia"}.Verify("panitia", ""))

	h, err := HashPassword("lain")
	require.NoError(t, err)
	assert.True(t, Credentials{Username: "x", PasswordHash: h}.Verify("x", "lain"))
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/p", RequireRole(testKey, testIssuer, "panitia"), func(c *gin.Context) {
		claims, ok := FromContext(c)
		assert.True(t, ok)
		c.String(http.StatusOK, claims.Subject)
	})

	panitia, err := Issue("budi", "panitia", testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	crew, err := Issue("andi", "crew", testIssuer, testKey, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{name: "no header", header: "", code: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", code: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc", code: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer " + crew.AccessToken, code: http.StatusUnauthorized},
		{name: "organizer", header: "Bearer " + panitia.AccessToken, code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}
