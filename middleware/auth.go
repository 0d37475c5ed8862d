package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avolkov/blogcms/utils"
)

const (
	// ContextUserIDKey stores the authenticated user ID in the Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username in the Gin context.
	ContextUsernameKey = "username"
)

// AuthRequired ensures the request carries a valid JWT. Anonymous requests to
// protected actions get a 401 so clients can send the user to the login flow.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, code, msg := claimsFromHeader(ctx)
		if claims == nil {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			ctx.Abort()
			return
		}
		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

// IdentifyViewer extracts the viewer identity when a valid token is present
// and lets the request through either way. Listing and detail visibility
// depends on who is asking, so public routes still need to know the viewer.
func IdentifyViewer() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if claims, _, _ := claimsFromHeader(ctx); claims != nil {
			ctx.Set(ContextUserIDKey, claims.UserID)
			ctx.Set(ContextUsernameKey, claims.Username)
		}
		ctx.Next()
	}
}

func claimsFromHeader(ctx *gin.Context) (*utils.SessionClaims, int, string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, 40101, "authorization header missing"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, 40102, "invalid authorization header format"
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, 40103, "empty bearer token"
	}

	claims, err := utils.ParseToken(tokenString)
	if err != nil {
		return nil, 40104, "invalid token"
	}
	return claims, 0, ""
}

// ViewerID returns the authenticated user ID from the context, zero when the
// viewer is anonymous.
func ViewerID(ctx *gin.Context) uint {
	value, exists := ctx.Get(ContextUserIDKey)
	if !exists {
		return 0
	}
	id, _ := value.(uint)
	return id
}
