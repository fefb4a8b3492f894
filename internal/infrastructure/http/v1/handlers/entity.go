package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lifeline/internal/core/apperror"
	"lifeline/internal/domain/entities"
	"lifeline/internal/versionstore"
)

// EntityHandler serves every registered entity type under /entities/:type.
type EntityHandler struct {
	BaseHandler
	services *entities.Services
}

func NewEntityHandler(services *entities.Services) *EntityHandler {
	return &EntityHandler{
		BaseHandler: *NewBaseHandler(),
		services:    services,
	}
}

// SyncRequest is the body of POST /entities/:type/sync.
type SyncRequest struct {
	// At is the snapshot instant in Unix milliseconds; now when omitted
	At    *int64          `json:"at"`
	Items json.RawMessage `json:"items"`
}

// service resolves :type, writing the error when it is unknown.
func (h *EntityHandler) service(c *gin.Context) (entities.Service, bool) {
	svc, err := h.services.Lookup(c.Param("type"))
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return svc, true
}

// key collects the natural-key columns from the query string.
func (h *EntityHandler) key(c *gin.Context, svc entities.Service) versionstore.Key {
	key := versionstore.Key{}
	for _, col := range svc.Def().NaturalKey {
		if v, ok := c.GetQuery(col); ok {
			key[col] = v
		}
	}
	return key
}

// Live returns the version of one identity live at ?at=.
// GET /api/v1/entities/:type/live?<key columns>&at=
func (h *EntityHandler) Live(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	owner, ok := h.OwnerID(c)
	if !ok {
		return
	}
	at, ok := h.At(c)
	if !ok {
		return
	}

	v, err := svc.Get(c.Request.Context(), owner, h.key(c, svc), at)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, v)
}

// List returns the live set at ?at=.
//
//	?by=<column>&value=<v>   narrow by a discriminator (unpaged)
//	?limit=&cursor=&cursor_id=&reverse=true   one keyset page
//
// Without by or limit the whole live set is returned.
// GET /api/v1/entities/:type
func (h *EntityHandler) List(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	owner, ok := h.OwnerID(c)
	if !ok {
		return
	}
	at, ok := h.At(c)
	if !ok {
		return
	}

	opts := entities.ListOptions{
		By:    c.Query("by"),
		Value: c.Query("value"),
	}
	if _, paged := c.GetQuery("limit"); paged {
		limit, ok := h.ParseIntQuery(c, "limit", 0)
		if !ok {
			return
		}
		if limit <= 0 {
			h.Error(c, apperror.NewQueryError("limit must be positive").WithDetail("limit", limit))
			return
		}
		opts.Limit = int(limit)
	}
	if raw, has := c.GetQuery("cursor"); has {
		recordID, ok := h.ParseIntQuery(c, "cursor_id", 0)
		if !ok {
			return
		}
		opts.Cursor = versionstore.Cursor{Key: raw, RecordID: recordID}
		if opts.Limit == 0 {
			opts.Limit = versionstore.MaxPageSize
		}
	}
	if raw := c.Query("reverse"); raw != "" {
		reverse, err := strconv.ParseBool(raw)
		if err != nil {
			h.Error(c, apperror.NewQueryError("reverse must be a boolean").WithDetail("value", raw))
			return
		}
		opts.Reverse = reverse
		if opts.Limit == 0 {
			opts.Limit = versionstore.MaxPageSize
		}
	}

	page, err := svc.List(c.Request.Context(), owner, at, opts)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, page)
}

// Query pages the live versions matching a predicate.
// POST /api/v1/entities/:type/query?at=
func (h *EntityHandler) Query(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	owner, ok := h.OwnerID(c)
	if !ok {
		return
	}
	at, ok := h.At(c)
	if !ok {
		return
	}

	var q versionstore.Query
	if !h.BindJSON(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = versionstore.MaxPageSize
	}

	page, err := svc.Query(c.Request.Context(), owner, at, q)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, page)
}

// History returns every version of one identity, oldest first.
// GET /api/v1/entities/:type/history?<key columns>
func (h *EntityHandler) History(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	owner, ok := h.OwnerID(c)
	if !ok {
		return
	}

	versions, err := svc.History(c.Request.Context(), owner, h.key(c, svc))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, versions)
}

// Sync applies a complete upstream snapshot for the caller's owner.
// POST /api/v1/entities/:type/sync
func (h *EntityHandler) Sync(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	owner, ok := h.OwnerID(c)
	if !ok {
		return
	}

	var req SyncRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if len(req.Items) == 0 || string(req.Items) == "null" {
		h.Error(c, apperror.NewValidation("items is required"))
		return
	}
	at := h.now().UnixMilli()
	if req.At != nil {
		at = *req.At
	}

	res, err := svc.Sync(c.Request.Context(), owner, at, req.Items)
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"at":     at,
		"result": res,
	})
}

// Syncs lists the latest applied snapshots of the caller's owner.
// GET /api/v1/entities/:type/syncs?limit=&payload=true
func (h *EntityHandler) Syncs(c *gin.Context) {
	svc, ok := h.service(c)
	if !ok {
		return
	}
	owner, ok := h.OwnerID(c)
	if !ok {
		return
	}
	limit, ok := h.ParseIntQuery(c, "limit", 20)
	if !ok {
		return
	}
	withPayload, _ := strconv.ParseBool(c.Query("payload"))

	entries, err := svc.Syncs(c.Request.Context(), owner, int(min(limit, versionstore.MaxPageSize)), withPayload)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entries)
}
