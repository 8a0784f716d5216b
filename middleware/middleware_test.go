package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nomanqadri34/vcx-mart-sub002/auth"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (f fakeBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	return f.revoked[token], f.err
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func protectedRouter(tm *auth.TokenManager, bl Blacklist, roles ...string) *gin.Engine {
	r := gin.New()
	chain := []gin.HandlerFunc{Authenticate(tm, bl)}
	if len(roles) > 0 {
		chain = append(chain, RequireRoles(roles...))
	}
	chain = append(chain, func(c *gin.Context) {
		id, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id.Hex(), "ok": ok, "role": Role(c)})
	})
	r.GET("/p", chain...)
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	buf := captureLog(t)
	tm := auth.NewTokenManager("s", time.Hour)
	tok, _, err := tm.Issue("64b7f0c2a1b2c3d4e5f60718", "customer")
	require.NoError(t, err)

	r := protectedRouter(tm, fakeBlacklist{revoked: map[string]bool{}})

	w := get(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token required", decode(t, w).Error.Message)
	assert.Contains(t, buf.String(), `"action":"auth.token.missing"`)

	w = get(r, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"64b7f0c2a1b2c3d4e5f60718"`)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestAuthenticateRevokedToken(t *testing.T) {
	tm := auth.NewTokenManager("s", time.Hour)
	tok, _, _ := tm.Issue("64b7f0c2a1b2c3d4e5f60718", "customer")

	w := get(protectedRouter(tm, fakeBlacklist{revoked: map[string]bool{tok: true}}), tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token has been revoked", decode(t, w).Error.Message)

	w = get(protectedRouter(tm, fakeBlacklist{err: errors.New("down")}), tok)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireRoles(t *testing.T) {
	captureLog(t)
	tm := auth.NewTokenManager("s", time.Hour)
	cust, _, _ := tm.Issue("64b7f0c2a1b2c3d4e5f60718", "customer")
	admin, _, _ := tm.Issue("64b7f0c2a1b2c3d4e5f60719", "admin")
	r := protectedRouter(tm, fakeBlacklist{}, "admin", "seller")

	assert.Equal(t, http.StatusForbidden, get(r, cust).Code)
	assert.Equal(t, http.StatusOK, get(r, admin).Code)
}

func TestOptionalAuth(t *testing.T) {
	tm := auth.NewTokenManager("s", time.Hour)
	tok, _, _ := tm.Issue("64b7f0c2a1b2c3d4e5f60718", "seller")

	r := gin.New()
	r.GET("/p", OptionalAuth(tm, fakeBlacklist{}), func(c *gin.Context) {
		_, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{"ok": ok})
	})

	assert.Contains(t, get(r, "").Body.String(), `"ok":false`)
	assert.Contains(t, get(r, "bad").Body.String(), `"ok":false`)
	assert.Contains(t, get(r, tok).Body.String(), `"ok":true`)
}

func TestRequestIDAndAccessLog(t *testing.T) {
	buf := captureLog(t)
	r := gin.New()
	r.Use(RequestID(), AccessLog())
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := get(r, "")
	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"action":"http.request"`)
	assert.Contains(t, buf.String(), `"req_id":"`+id+`"`)

	known := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set(RequestIDHeader, known)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, known, w.Header().Get(RequestIDHeader))
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	buf := captureLog(t)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/p", func(c *gin.Context) { panic("secret internals") })

	w := get(r, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "Internal server error", env.Error.Message)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.Contains(t, buf.String(), "http.panic")
}

func TestBodyLimit(t *testing.T) {
	captureLog(t)
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/p", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			response.ValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/p", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/p", strings.NewReader(`{"a":1}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionCookie(t *testing.T) {
	r := gin.New()
	r.Use(Session(SessionCookie{Name: "vcx_sid", TTL: time.Hour}))
	r.GET("/p", func(c *gin.Context) { c.String(http.StatusOK, SessionID(c)) })

	w := get(r, "")
	sid := w.Body.String()
	_, err := uuid.Parse(sid)
	require.NoError(t, err)
	require.NotEmpty(t, w.Result().Cookies())
	assert.Equal(t, sid, w.Result().Cookies()[0].Value)
	assert.True(t, w.Result().Cookies()[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.AddCookie(&http.Cookie{Name: "vcx_sid", Value: sid})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, sid, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/p", nil)
	req.AddCookie(&http.Cookie{Name: "vcx_sid", Value: "../../etc"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "../../etc", w.Body.String())
}
