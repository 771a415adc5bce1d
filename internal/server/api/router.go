package api

import (
	"github.com/dmitrijs2005/wardrobe/internal/logging"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the handlers onto a gin engine.
func NewRouter(h *Handler, secret []byte, log logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(log))

	auth := RequireSession(secret)

	users := r.Group("/api/users")
	users.POST("/register", h.Register)
	users.POST("/oauth-login", auth, h.OAuthLogin)
	users.POST("/getuser", auth, h.GetUser)
	users.POST("/verify", auth, h.Verify)

	inv := r.Group("/api/inventory", auth)
	inv.GET("", h.ListItems)
	inv.POST("", h.CreateItem)
	inv.GET("/:id", h.GetItem)
	inv.PUT("/:id", h.UpdateItem)
	inv.DELETE("/:id", h.DeleteItem)

	r.POST("/upload/image", auth, h.PresignImage)

	return r
}
