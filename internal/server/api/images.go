package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type uploadRequest struct {
	ContentType string `json:"contentType"`
}

type uploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	ImageURL  string `json:"imageUrl"`
}

// PresignImage hands out a presigned PUT URL for one image.
func (h *Handler) PresignImage(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ContentType) == "" {
		badRequest(c, "contentType is required")
		return
	}

	uploadURL, imageURL, err := h.images.PresignUpload(c.Request.Context(), sessionClaims(c).Subject, req.ContentType)
	if err != nil {
		h.respondError(c, err, "not found")
		return
	}
	c.JSON(http.StatusOK, uploadResponse{UploadURL: uploadURL, ImageURL: imageURL})
}
