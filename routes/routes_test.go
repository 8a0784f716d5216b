package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nomanqadri34/vcx-mart-sub002/auth"
	"github.com/nomanqadri34/vcx-mart-sub002/config"
	"github.com/nomanqadri34/vcx-mart-sub002/database"
	"github.com/nomanqadri34/vcx-mart-sub002/middleware"
	"github.com/nomanqadri34/vcx-mart-sub002/notify"
	"github.com/nomanqadri34/vcx-mart-sub002/payment"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
	"github.com/nomanqadri34/vcx-mart-sub002/session"
)

// testEngine wires the real router on a client that never reaches a server.
// Only requests that stop before the database are exercised.
func testEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client, err := mongo.Connect(context.Background(), options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(200*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	store := database.NewStore(client, "vcx_routes_test")

	cfg := config.Config{
		Env:               "test",
		CORSOrigins:       []string{"http://localhost:5173"},
		SessionCookieName: "vcx_sid",
		SessionTTL:        time.Hour,
		TaxRate:           0.18,
		ShippingFee:       50,
	}
	return New(Deps{
		Config:    cfg,
		Store:     store,
		Tokens:    auth.NewTokenManager("routes-test-secret", time.Hour),
		Blacklist: database.NewTokenBlacklist(store.BlacklistTokens),
		Sessions:  session.NewMemoryStore(time.Hour),
		Gateway:   payment.NewGateway("", "", "", "INR"),
		Notifier:  notify.Log{},
	})
}

func do(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, response.Envelope) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env response.Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestUnknownRoute(t *testing.T) {
	w, env := do(testEngine(t), httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Route not found", env.Error.Message)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r := testEngine(t)
	for _, target := range []string{"/api/orders", "/api/auth/me", "/api/seller/products", "/api/admin/dashboard", "/api/seller-applications/me"} {
		w, env := do(r, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
		require.NotNil(t, env.Error, target)
		assert.Equal(t, "Token required", env.Error.Message)
	}
}

func TestAnonymousCartGetsSessionCookie(t *testing.T) {
	w, env := do(testEngine(t), httptest.NewRequest(http.MethodGet, "/api/cart", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.True(t, strings.HasPrefix(w.Header().Get("Set-Cookie"), "vcx_sid="))
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	w, _ := do(testEngine(t), req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
