package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/estate-crm/utils"
)

// Key context yang dibaca controllers.currentUser.
const (
	ctxUserID    = "userID"
	ctxCompanyID = "companyID"
	ctxRole      = "role"
)

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("authorization header missing"))
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("format token tidak valid"))
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid or expired token"))
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

func setClaims(c *gin.Context, claims *utils.CustomClaims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxCompanyID, claims.CompanyID)
	c.Set(ctxRole, claims.Role)
}
