package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"polysynergy/file-manager/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// jwtClaims defines the structure we expect in the JWT payload.
type jwtClaims struct {
	TenantID  string `json:"tid"`
	ProjectID string `json:"pid"`
	jwt.RegisteredClaims
}

// NewToken signs a caller token for scope. Used by tooling and tests.
func NewToken(secret string, scope domain.TenantScope, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		TenantID:  scope.TenantID,
		ProjectID: scope.ProjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AuthMiddleware creates a Gin middleware for JWT authentication. The
// caller scope from the token is placed on the request context, where the
// services read it.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "Token has expired")
			} else {
				abortWithError(c, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
			}
			return
		}
		if !token.Valid || claims.TenantID == "" || claims.ProjectID == "" {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}

		scope := domain.TenantScope{TenantID: claims.TenantID, ProjectID: claims.ProjectID}
		c.Request = c.Request.WithContext(domain.WithTenant(c.Request.Context(), scope))

		c.Next()
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// pathScope is the target scope named by the route.
func pathScope(c *gin.Context) domain.TenantScope {
	return domain.TenantScope{TenantID: c.Param("tenantId"), ProjectID: c.Param("projectId")}
}
