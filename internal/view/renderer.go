// Package view 加载 HTML 模板并按名称渲染页面。
package view

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anoixa/catdex/internal/apperrors"
	"github.com/rs/zerolog/log"
)

// ErrNoTemplates 模板目录中没有任何 *.html 文件
var ErrNoTemplates = errors.New("no templates found")

const templateExt = ".html"

// funcs 模板可用的辅助函数
var funcs = template.FuncMap{
	"imageURL": ImageURL,
}

// ImageURL 把记录中的 image_path 转成站内绝对 URL，路径中的 %、空格等字符按路径规则转义
func ImageURL(imagePath string) string {
	u := url.URL{Path: "/" + strings.TrimPrefix(imagePath, "/")}
	return u.EscapedPath()
}

// Renderer 启动时加载一次的模板集合，并发安全
type Renderer struct {
	dir       string
	templates map[string]*template.Template
}

// New 加载 dir 下所有 *.html 模板，以去掉扩展名的文件名作为模板名。
// 目录不存在、不可读或没有模板时直接返回错误。
func New(dir string) (*Renderer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir %s: %w", dir, err)
	}

	r := &Renderer{dir: dir, templates: make(map[string]*template.Template)}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != templateExt {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), templateExt)
		path := filepath.Join(dir, entry.Name())

		tmpl, err := template.New(entry.Name()).Funcs(funcs).Option("missingkey=error").ParseFiles(path)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", path, err)
		}
		r.templates[name] = tmpl
	}

	if len(r.templates) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTemplates, dir)
	}

	log.Info().Str("dir", dir).Strs("templates", r.Names()).Msg("Templates loaded")
	return r, nil
}

// Render 渲染指定模板
func (r *Renderer) Render(name string, data any) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", apperrors.ErrTemplateNotFound, name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %s: %v", apperrors.ErrRender, name, err)
	}
	return buf.String(), nil
}

// Names 已注册的模板名，按字母序
func (r *Renderer) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Renderer) Dir() string {
	return r.dir
}
