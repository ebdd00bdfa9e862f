package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	m, err := NewManager("admin", hash, "jwt-secret", time.Hour)
	require.NoError(t, err)
	return m
}

func TestLogin(t *testing.T) {
	m := newTestManager(t)

	token, exp, err := m.Login("admin", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	_, _, err = m.Login("admin", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = m.Login("root", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateRejects(t *testing.T) {
	m := newTestManager(t)

	// 过期
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := m.Issue("admin")
	require.NoError(t, err)
	m.now = time.Now
	_, err = m.Validate(old)
	assert.ErrorIs(t, err, ErrTokenExpired)

	// 其他密钥签发
	other, err := NewManager("admin", string(m.passwordHash), "other-secret", time.Hour)
	require.NoError(t, err)
	forged, _, err := other.Issue("admin")
	require.NoError(t, err)
	_, err = m.Validate(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// alg=none
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager("admin", "", "s", time.Hour)
	assert.Error(t, err)
	_, err = NewManager("admin", "plaintext", "s", time.Hour)
	assert.Error(t, err)
	_, err = HashPassword("short")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestManager(t)
	token, _, err := m.Issue("admin")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/private", Middleware(m), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextKeyUser))
	})

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer " + token, "", http.StatusOK},
		{"query", "", "?token=" + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "admin", w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"success":false`)
			}
		})
	}
}
