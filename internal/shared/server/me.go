package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-bridge/internal/resumes"
	"resume-bridge/internal/shared/server/middleware"
	"resume-bridge/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

// meHandler echoes the identity the access rules will see.
func meHandler(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	role := resumes.ParseRole(middleware.UserRoleFromContext(c))
	response := gin.H{
		"userId":   userID,
		"role":     role,
		"elevated": role.Elevated(),
		"isGuest":  middleware.IsGuest(c),
	}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}

	respond.JSON(c, http.StatusOK, response)
}
