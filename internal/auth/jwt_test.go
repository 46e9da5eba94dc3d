package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-signing-key"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateJWTToken(42, testKey, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWTToken(token, testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestValidateJWTToken_Rejects(t *testing.T) {
	expired, err := GenerateJWTToken(42, testKey, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWTToken(expired, testKey)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := GenerateJWTToken(42, "another-key", time.Hour)
	require.NoError(t, err)
	_, err = ValidateJWTToken(other, testKey)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ValidateJWTToken("not-a-token", testKey)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	if id, ok := GetUserIDFromContext(r.Context()); ok && id == 7 {
		w.Header().Set("X-User", "yes")
	}
	w.WriteHeader(http.StatusNoContent)
}

func TestJWTMiddleware(t *testing.T) {
	token, err := GenerateJWTToken(7, testKey, time.Hour)
	require.NoError(t, err)
	h := JWTMiddleware(http.HandlerFunc(echoUser), testKey, nil)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"invalid", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestOptionalJWTMiddleware(t *testing.T) {
	token, err := GenerateJWTToken(7, testKey, time.Hour)
	require.NoError(t, err)
	h := OptionalJWTMiddleware(http.HandlerFunc(echoUser), testKey, nil)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-User"))

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-User"))

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
