package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"crm-call-tracker/internal/auth"

	"github.com/gin-gonic/gin"
)

func roleRouter(role string, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if role != "" {
			ctx := auth.WithIdentity(c.Request.Context(), "u", role)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}, RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})
	return r
}

func hit(r *gin.Engine) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := hit(roleRouter(RoleAdmin, RoleSupervisor)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AllowedRolePasses(t *testing.T) {
	if code := hit(roleRouter(RoleAgent, RoleAgent, RoleSupervisor)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_OutsideSetForbidden(t *testing.T) {
	if code := hit(roleRouter(RoleAgent, RoleSupervisor)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_EmptySetIsAdminOnly(t *testing.T) {
	if code := hit(roleRouter(RoleSupervisor)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := hit(roleRouter(RoleAdmin)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_MissingRoleUnauthorized(t *testing.T) {
	if code := hit(roleRouter("", RoleAgent)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleAgent, RoleSupervisor, RoleAdmin} {
		if !ValidRole(r) {
			t.Fatalf("expected %q valid", r)
		}
	}
	if ValidRole("root") || ValidRole("") {
		t.Fatalf("unexpected role accepted")
	}
}
