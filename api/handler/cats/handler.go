package cats

import (
	"context"
	"mime/multipart"

	"github.com/anoixa/catdex/database/models"
	"github.com/gin-gonic/gin"
)

// 页面模板名
const (
	TemplateIndex  = "index"
	TemplateAdd    = "add"
	TemplateDetail = "catdetail"
)

// Renderer 页面渲染
type Renderer interface {
	Render(name string, data any) (string, error)
}

// CatQuerier 猫咪查询
type CatQuerier interface {
	ListCats(ctx context.Context) ([]models.Cat, error)
	GetCat(ctx context.Context, id int64) (*models.Cat, error)
}

// CatUploader 表单上传
type CatUploader interface {
	Upload(ctx context.Context, form *multipart.Form) (*models.Cat, error)
}

// Dependencies 处理器依赖，启动时构建一次后注入
type Dependencies struct {
	Renderer       Renderer
	Query          CatQuerier
	Upload         CatUploader
	ProjectName    string
	UploadMaxBytes int64
}

// IndexPage 首页模板数据
type IndexPage struct {
	ProjectName string
	Cats        []models.Cat
}

// Handler 猫咪页面处理器
type Handler struct {
	renderer       Renderer
	query          CatQuerier
	upload         CatUploader
	projectName    string
	uploadMaxBytes int64
}

// NewHandler 猫咪页面处理器
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		renderer:       deps.Renderer,
		query:          deps.Query,
		upload:         deps.Upload,
		projectName:    deps.ProjectName,
		uploadMaxBytes: deps.UploadMaxBytes,
	}
}

// RegisterRoutes 注册页面路由，uploadMiddleware 只作用于表单提交
func (h *Handler) RegisterRoutes(router gin.IRoutes, uploadMiddleware ...gin.HandlerFunc) {
	router.GET("/", h.List)
	router.GET("/add", h.AddForm)
	router.GET("/cat/:id", h.Detail)

	submit := append(append([]gin.HandlerFunc{}, uploadMiddleware...), h.Submit)
	router.POST("/add_cat_form", submit...)
}
