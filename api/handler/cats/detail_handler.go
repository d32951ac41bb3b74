package cats

import (
	"fmt"
	"strconv"

	"github.com/anoixa/catdex/api/common"
	"github.com/anoixa/catdex/internal/apperrors"
	"github.com/gin-gonic/gin"
)

// Detail GET /cat/:id
func (h *Handler) Detail(c *gin.Context) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		common.RespondError(c, fmt.Errorf("%w: invalid cat id %q", apperrors.ErrBadRequest, raw))
		return
	}

	cat, err := h.query.GetCat(c.Request.Context(), id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	h.render(c, TemplateDetail, cat)
}
