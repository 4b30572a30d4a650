package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/fieldrunner/internal/auth/domain"
	obscontext "github.com/smallbiznis/fieldrunner/internal/observability/context"
)

const contextPrincipalKey = "principal"

// AuthRequired verifies the bearer session token and stores the principal on
// the request.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, authdomain.ErrUnauthorized)
			return
		}

		principal, err := s.sessions.VerifySessionToken(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActorID(c.Request.Context(), principal.UserID)
		if principal.HasOrganization() {
			ctx = obscontext.WithOrgID(ctx, principal.OrgID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

// RequireOrganization rejects principals without an active organization.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, authdomain.ErrUnauthorized)
			return
		}
		if !principal.HasOrganization() {
			AbortWithError(c, authdomain.ErrOrganizationRequired)
			return
		}
		c.Next()
	}
}

// SecurityHeaders sets the response headers every API response carries.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")
		c.Next()
	}
}

func principalFromContext(c *gin.Context) (*authdomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*authdomain.Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
