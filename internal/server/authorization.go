package server

import (
	"github.com/gin-gonic/gin"
)

func (s *Server) authorizeOrgAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeOrgActionWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeOrgActionWithContext(c *gin.Context, object string, action string) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), *principal, object, action)
}
