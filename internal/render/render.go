package render

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/gofiber/template/html/v2"
	"github.com/valyala/bytebufferpool"
)

//go:embed templates/*.html
var embedFS embed.FS
var engine *html.Engine

// NewEngine returns an html engine over tmplDir, or over the embedded
// templates when tmplDir is empty.
func NewEngine(tmplDir string) (*html.Engine, error) {
	if tmplDir != "" {
		info, err := os.Stat(tmplDir)
		if err != nil {
			return nil, fmt.Errorf("template directory does not exist: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("template path is not a directory: %s", tmplDir)
		}
		return html.NewFileSystem(http.Dir(tmplDir), ".html"), nil
	}
	renderFS, err := fs.Sub(embedFS, "templates")
	if err != nil {
		return nil, err
	}
	return html.NewFileSystem(http.FS(renderFS), ".html"), nil
}

func Initialize(e *html.Engine) error {
	if err := e.Load(); err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	engine = e
	return nil
}

func RenderHTML(templateName string, vars map[string]interface{}) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := engine.Render(buf, templateName, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}
