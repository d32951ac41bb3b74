package cats

import (
	"fmt"
	"net/http"

	"github.com/anoixa/catdex/api/common"
	"github.com/anoixa/catdex/internal/apperrors"
	"github.com/gin-gonic/gin"
)

// Submit POST /add_cat_form，成功后重定向回首页
func (h *Handler) Submit(c *gin.Context) {
	if h.uploadMaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadMaxBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		common.RespondError(c, fmt.Errorf("%w: invalid multipart form: %w", apperrors.ErrBadRequest, err))
		return
	}
	defer func() { _ = form.RemoveAll() }()

	if _, err := h.upload.Upload(c.Request.Context(), form); err != nil {
		common.RespondError(c, err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}
