package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"collections-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serve(userID, role string, allowed ...string) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireIdentity(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serve("u", RoleAdmin, RoleAnalyst); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AllowedRole(t *testing.T) {
	if code := serve("u", RoleCollector, RoleCollector, RoleAnalyst); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_OtherRoleForbidden(t *testing.T) {
	if code := serve("u", RoleCollector, RoleAnalyst); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_HiddenRoleDeniedUnlessAllowed(t *testing.T) {
	if code := serve("u", RoleAuditor, RoleAnalyst); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serve("u", RoleAuditor, RoleAnalyst, RoleAuditor); code != 200 {
		t.Fatalf("expected 200 when explicitly allowed, got %d", code)
	}
}

func TestRequireIdentity(t *testing.T) {
	if code := serve("", RoleAdmin); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRequireAnyRole_MissingRole(t *testing.T) {
	if code := serve("u", "", RoleAdmin); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}
