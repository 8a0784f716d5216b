package response

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nomanqadri34/vcx-mart-sub002/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Register()
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestPageParamsClamp(t *testing.T) {
	cases := []struct {
		query       string
		page, limit int
	}{
		{"", 1, DefaultLimit},
		{"page=3&limit=10", 3, 10},
		{"page=-2&limit=0", 1, DefaultLimit},
		{"page=x&limit=5000", 1, MaxLimit},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
		page, limit := PageParams(c)
		assert.Equal(t, tc.page, page, tc.query)
		assert.Equal(t, tc.limit, limit, tc.query)
	}
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Page: 2, Limit: 10, Total: 21, Pages: 3}, NewPagination(2, 10, 21))
	assert.Equal(t, 0, NewPagination(1, 10, 0).Pages)
	assert.Equal(t, int64(20), Skip(3, 10))
}

func TestValidationErrorDetails(t *testing.T) {
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var body struct {
			Email string  `json:"email" binding:"required,email"`
			Price float64 `json:"price" binding:"required,gt=0"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			ValidationError(c, err)
			return
		}
		OK(c, body)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", jsonBody(`{"email":"nope"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)

	m := decode(t, w)
	assert.Equal(t, false, m["success"])
	errBody := m["error"].(map[string]any)
	assert.Equal(t, "Validation failed", errBody["message"])
	details := errBody["details"].([]any)
	require.Len(t, details, 2)
	assert.Equal(t, "email", details[0].(map[string]any)["field"])
	assert.Equal(t, "price", details[1].(map[string]any)["field"])
}

func TestValidationErrorMalformedJSON(t *testing.T) {
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var body struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			ValidationError(c, err)
			return
		}
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", jsonBody(`{"name":`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Malformed JSON body", decode(t, w)["error"].(map[string]any)["message"])
}

func TestDBErrorNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	DBError(c, mongo.ErrNoDocuments, "Product not found")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product not found", decode(t, w)["error"].(map[string]any)["message"])
}

func TestPaginatedShape(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Paginated(c, []string{"a", "b"}, 1, 2, 5)

	m := decode(t, w)
	assert.Equal(t, true, m["success"])
	data := m["data"].(map[string]any)
	assert.Len(t, data["items"], 2)
	p := data["pagination"].(map[string]any)
	assert.EqualValues(t, 3, p["pages"])
	assert.EqualValues(t, 5, p["total"])
}
