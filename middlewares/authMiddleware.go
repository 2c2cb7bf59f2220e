package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gleamops/fieldops_backend/problem"
	"github.com/gleamops/fieldops_backend/utils"
)

// AuthMiddleware validates the bearer token and attaches the caller's
// identity (user, tenant, staff link, roles) to the request context.
// Requests without an Authorization header pass through unauthenticated;
// handlers decide whether identity is required.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			p := problem.Unauthenticated()
			c.JSON(http.StatusUnauthorized, p)
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			p := problem.Unauthenticated()
			c.JSON(http.StatusUnauthorized, p)
			c.Abort()
			return
		}

		claims, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || claims.UserID == "" || claims.TenantID == "" {
			p := problem.Unauthenticated()
			c.JSON(http.StatusUnauthorized, p)
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), auth)
		ctx = utils.SetUserIdInContext(ctx, claims.UserID)
		ctx = utils.SetTenantIdInContext(ctx, claims.TenantID)
		if claims.StaffID != "" {
			ctx = utils.SetStaffIdInContext(ctx, claims.StaffID)
		}
		ctx = utils.SetRolesInContext(ctx, claims.Roles)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
