package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"collections-platform/internal/auth"
	"collections-platform/internal/calls"
	"collections-platform/internal/rbac"
	"collections-platform/internal/reporting"
	"collections-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Calls   calls.Store
	Reports *reporting.Service

	// AllowLogin enables the credential-less login route. Never set in production.
	AllowLogin bool
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair without checking credentials. Development only.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || !h.AllowLogin {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "login disabled"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	if !rbac.IsKnown(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.ExpiresAt,
	})
}

// --- Call logs ---

func (h Handlers) ListCalls(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call store not configured"})
		return
	}
	var f calls.ListFilter
	var err error
	if f.BillID, err = queryInt64(c, "bill_id"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bill_id must be an integer"})
		return
	}
	if s := c.Query("status"); s != "" {
		f.Status = calls.Status(s)
		if !f.Status.Valid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
	}
	limit, err := queryInt64(c, "limit")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	offset, err := queryInt64(c, "offset")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
		return
	}
	f.Limit, f.Offset = int(limit), int(offset)
	if f.From, err = queryTime(c, "from"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	if f.To, err = queryTime(c, "to"); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}

	rows, err := h.Calls.List(c.Request.Context(), f)
	if err != nil {
		logger.FromGin(c).Error("call list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call store not configured"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return
	}
	rec, err := h.Calls.FindByID(c.Request.Context(), id)
	h.writeCall(c, rec, err)
}

func (h Handlers) GetCallByExternalID(c *gin.Context) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call store not configured"})
		return
	}
	ext := c.Param("external_id")
	if ext == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "external_id required"})
		return
	}
	rec, err := h.Calls.FindByExternalID(c.Request.Context(), ext)
	h.writeCall(c, rec, err)
}

func (h Handlers) writeCall(c *gin.Context, rec calls.Record, err error) {
	switch {
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case err != nil:
		logger.FromGin(c).Error("call lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
	default:
		c.JSON(http.StatusOK, rec)
	}
}

// --- Reports ---

func (h Handlers) CallsReport(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	from, err := queryTime(c, "from")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	to, err := queryTime(c, "to")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}
	billID, err := queryInt64(c, "bill_id")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bill_id must be an integer"})
		return
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		Range:  reporting.TimeRange{From: from, To: to},
		BillID: billID,
	})
	switch {
	case errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to are required and from must be before to"})
	case err != nil:
		logger.FromGin(c).Error("calls report failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls report failed"})
	default:
		c.JSON(http.StatusOK, out)
	}
}

// Convenience middleware bundles.

func RequireIdentityAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireIdentity(), rbac.RequireAnyRole(roles...)}
}

func queryInt64(c *gin.Context, key string) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func queryTime(c *gin.Context, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
