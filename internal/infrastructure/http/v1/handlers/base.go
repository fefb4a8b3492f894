package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lifeline/internal/core/apperror"
	appctx "lifeline/internal/core/context"
	"lifeline/internal/core/id"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct {
	// now supplies the default snapshot instant.
	now func() time.Time
}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{now: time.Now}
}

// BindJSON decodes the request body. Numbers stay json.Number so that
// selector literals reach column coercion without float rounding.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the gin context and aborts the request.
// The JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses an integer query parameter with default value.
// Malformed values are reported instead of silently replaced.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int64) (int64, bool) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, true
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		h.Error(c, apperror.NewQueryError("query parameter is not an integer").
			WithDetail("param", key).
			WithDetail("value", val))
		return 0, false
	}
	return parsed, true
}

// At returns the snapshot instant of the request: ?at= in Unix milliseconds,
// or the current time.
func (h *BaseHandler) At(c *gin.Context) (int64, bool) {
	return h.ParseIntQuery(c, "at", h.now().UnixMilli())
}

// OwnerID extracts the owner bound by the Auth middleware.
func (h *BaseHandler) OwnerID(c *gin.Context) (id.ID, bool) {
	owner := appctx.GetOwnerID(c.Request.Context())
	if id.IsNil(owner) {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return owner, false
	}
	return owner, true
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}
