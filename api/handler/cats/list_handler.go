package cats

import (
	"github.com/anoixa/catdex/api/common"
	"github.com/gin-gonic/gin"
)

// List GET /
func (h *Handler) List(c *gin.Context) {
	list, err := h.query.ListCats(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	h.render(c, TemplateIndex, IndexPage{
		ProjectName: h.projectName,
		Cats:        list,
	})
}

// AddForm GET /add
func (h *Handler) AddForm(c *gin.Context) {
	h.render(c, TemplateAdd, struct{}{})
}

func (h *Handler) render(c *gin.Context, name string, data any) {
	html, err := h.renderer.Render(name, data)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondHTML(c, html)
}
