package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/middleware"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
	"github.com/nomanqadri34/vcx-mart-sub002/validation"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validation.Register()
	os.Exit(m.Run())
}

var fixedNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	products map[primitive.ObjectID]models.Product
	coupons  map[string]models.Coupon
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[primitive.ObjectID]models.Product{},
		coupons:  map[string]models.Coupon{},
	}
}

func (f *fakeCatalog) ProductByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &p, nil
}

func (f *fakeCatalog) CouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	cp, ok := f.coupons[models.NormalizeCouponCode(code)]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &cp, nil
}

func (f *fakeCatalog) add(p models.Product) models.Product {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	f.products[p.ID] = p
	return p
}

// identity sets the caller the way the auth middleware does.
func identity(userID primitive.ObjectID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(logger.UserIDKey, userID.Hex())
		c.Set(logger.RoleKey, role)
		c.Next()
	}
}

func withSessionID(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.SessionIDKey, id)
		c.Next()
	}
}

func send(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

// data decodes the envelope's data field into T.
func data[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := envelope(t, w)
	require.NotNil(t, env.Error, "body: %s", w.Body.String())
	return env.Error.Message
}

func hasDetail(env response.Envelope, field string) bool {
	if env.Error == nil {
		return false
	}
	for _, d := range env.Error.Details {
		if d.Field == field || strings.HasSuffix(d.Field, "."+field) {
			return true
		}
	}
	return false
}
