package api

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/wardrobe/internal/server/services"
	"github.com/gin-gonic/gin"
)

const userNotFound = "user not found"

type createUserRequest struct {
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	ExternalID string `json:"externalId"`
	ImageURL   string `json:"imageUrl"`
}

func (r createUserRequest) toNewUser() services.NewUser {
	return services.NewUser{
		Email:      r.Email,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		ExternalID: r.ExternalID,
		ImageURL:   r.ImageURL,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

// Register creates an unverified directory record. Registering an existing
// e-mail returns the stored record with 200.
func (h *Handler) Register(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, created, err := h.users.Register(c.Request.Context(), req.toNewUser())
	if err != nil {
		h.respondError(c, err, userNotFound)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, user)
}

func (h *Handler) OAuthLogin(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !h.ownsEmail(c, req.Email) {
		return
	}

	user, created, err := h.users.OAuthLogin(c.Request.Context(), req.toNewUser())
	if err != nil {
		h.respondError(c, err, userNotFound)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, user)
}

func (h *Handler) GetUser(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		badRequest(c, "email is required")
		return
	}
	if !h.ownsEmail(c, req.Email) {
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, err, userNotFound)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) Verify(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		badRequest(c, "email is required")
		return
	}
	if !h.ownsEmail(c, req.Email) {
		return
	}

	user, err := h.users.Verify(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, err, userNotFound)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ownsEmail rejects requests about an e-mail other than the session's.
func (h *Handler) ownsEmail(c *gin.Context, email string) bool {
	claims := sessionClaims(c)
	if claims == nil || services.NormalizeEmail(claims.Email) != services.NormalizeEmail(email) {
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "email does not match session"})
		return false
	}
	return true
}
