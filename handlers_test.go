package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gleamops/fieldops_backend/models"
	"github.com/gleamops/fieldops_backend/utils"
)

// boardRouter builds the operations router with a fixed identity attached,
// standing in for the auth middleware.
func boardRouter(userId string, roles []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := c.Request.Context()
		if userId != "" {
			ctx = utils.SetUserIdInContext(ctx, userId)
			ctx = utils.SetTenantIdInContext(ctx, "tenant-1")
			ctx = utils.SetRolesInContext(ctx, roles)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	registerOperationRoutes(r)
	return r
}

func getTonightBoard(t *testing.T, r *gin.Engine) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/operations/shifts-time/tonight-board", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTonightBoardRequiresAuthentication(t *testing.T) {
	w := getTonightBoard(t, boardRouter("", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated board read: got %d, want 401", w.Code)
	}
	var p map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal problem body: %v", err)
	}
	if p["code"] != "AUTH_001" {
		t.Fatalf("expected AUTH_001, got %v", p["code"])
	}
}

func TestTonightBoardAnswersPilotDisabled(t *testing.T) {
	t.Setenv("FF_SHIFTS_TIME_V1", "")
	w := getTonightBoard(t, boardRouter("user-1", []string{models.RoleCleaner}))
	if w.Code != http.StatusOK {
		t.Fatalf("disabled pilot board read: got %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["pilot_enabled"] != false {
		t.Fatalf("expected pilot_enabled=false, got %v", body["pilot_enabled"])
	}
}

func TestTonightBoardForbidsNonOperationsRoles(t *testing.T) {
	t.Setenv("FF_SHIFTS_TIME_V1", "true")
	for _, roles := range [][]string{{models.RoleSales}, {models.RoleInspector}, {}} {
		w := getTonightBoard(t, boardRouter("user-1", roles))
		if w.Code != http.StatusForbidden {
			t.Fatalf("roles %v: got %d, want 403", roles, w.Code)
		}
		var p map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
			t.Fatalf("unmarshal problem body: %v", err)
		}
		if p["code"] != "AUTH_002" {
			t.Fatalf("roles %v: expected AUTH_002, got %v", roles, p["code"])
		}
	}
}
