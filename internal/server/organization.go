package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type debugUser struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// DebugMe echoes the verified session.
func (s *Server) DebugMe(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	org, err := principal.Organization()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": debugUser{
			UserID:    principal.UserID,
			SessionID: principal.SessionID,
		},
		"organization": org,
	})
}

// GetMe returns the synced user row of the caller.
func (s *Server) GetMe(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.directorySvc.GetUser(c.Request.Context(), principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) GetOrganization(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	org, err := s.directorySvc.GetOrganization(c.Request.Context(), principal.OrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": org})
}

func (s *Server) ListOrganizationMembers(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	members, err := s.directorySvc.ListOrganizationMembers(c.Request.Context(), principal.OrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}
