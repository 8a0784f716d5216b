package response

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nomanqadri34/vcx-mart-sub002/validation"
)

type FieldError = validation.FieldError

type ErrorBody struct {
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

type Envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type Page struct {
	Items      any        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

func Message(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Error: &ErrorBody{Message: message}})
}

func BadRequest(c *gin.Context, message string)   { Fail(c, http.StatusBadRequest, message) }
func Unauthorized(c *gin.Context, message string) { Fail(c, http.StatusUnauthorized, message) }
func Forbidden(c *gin.Context, message string)    { Fail(c, http.StatusForbidden, message) }
func NotFound(c *gin.Context, message string)     { Fail(c, http.StatusNotFound, message) }
func Conflict(c *gin.Context, message string)     { Fail(c, http.StatusConflict, message) }

func InternalError(c *gin.Context) {
	Fail(c, http.StatusInternalServerError, "Internal server error")
}

// ValidationError turns a binding error into a 400 with field-level details.
func ValidationError(c *gin.Context, err error) {
	body := ErrorBody{Message: "Validation failed"}

	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		Fail(c, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	case errors.As(err, &verrs):
		body.Details = validation.Details(verrs)
	case errors.As(err, &typeErr):
		body.Details = []FieldError{{Field: typeErr.Field, Message: "must be of type " + typeErr.Type.String()}}
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		body.Message = "Malformed JSON body"
	default:
		body.Message = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{Error: &body})
}

// DBError maps driver errors onto the API's status codes.
func DBError(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		NotFound(c, notFound)
	case mongo.IsDuplicateKeyError(err):
		Conflict(c, "Resource already exists")
	default:
		_ = c.Error(err)
		InternalError(c)
	}
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// PageParams reads page and limit from the query string, clamping bad values.
func PageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit"))
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func Skip(page, limit int) int64 { return int64((page - 1) * limit) }

func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

func Paginated(c *gin.Context, items any, page, limit int, total int64) {
	OK(c, Page{Items: items, Pagination: NewPagination(page, limit, total)})
}
