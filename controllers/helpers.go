package controllers

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nomanqadri34/vcx-mart-sub002/middleware"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

const (
	queryTimeout = 5 * time.Second
	writeTimeout = 10 * time.Second
)

func requestContext(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

// bind decodes the JSON body into dst, answering 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.ValidationError(c, err)
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		response.ValidationError(c, err)
		return false
	}
	return true
}

func paramID(c *gin.Context, name, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		response.BadRequest(c, "Invalid "+label+" ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

func currentUser(c *gin.Context) (primitive.ObjectID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
	}
	return id, ok
}

func isAdmin(c *gin.Context) bool { return middleware.Role(c) == models.RoleAdmin }

// containsFold builds a case-insensitive "contains" regex for user input.
func containsFold(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(strings.TrimSpace(s)), "$options": "i"}
}

func equalsFold(s string) bson.M {
	return bson.M{"$regex": "^" + regexp.QuoteMeta(strings.TrimSpace(s)) + "$", "$options": "i"}
}

// sentence upper-cases the first letter of an error message for API output.
func sentence(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
