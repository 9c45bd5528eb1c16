package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/placement-attendance-api/pkg/response"
)

type photoOpener interface {
	Open(token string, thumbnail bool) ([]byte, error)
}

// PhotoHandler serves verification photos behind signed links.
type PhotoHandler struct {
	photos photoOpener
}

// NewPhotoHandler builds a new handler.
func NewPhotoHandler(photos photoOpener) *PhotoHandler {
	return &PhotoHandler{photos: photos}
}

// Download godoc
// @Summary Download a verification photo
// @Tags Photos
// @Produce image/jpeg
// @Param token path string true "Signed token"
// @Param thumb query bool false "Serve the thumbnail when rendered"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /placement-attendance/photos/{token} [get]
func (h *PhotoHandler) Download(c *gin.Context) {
	data, err := h.photos.Open(c.Param("token"), queryBool(c, "thumb"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/jpeg", data)
}
