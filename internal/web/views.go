package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templatesFS embed.FS

const layoutFile = "templates/layout.html"

// Views renders the embedded pages. It satisfies fiber.Views: fiber calls
// Load once when the app is created and Render from c.Render.
type Views struct {
	mu    sync.RWMutex
	pages map[string]*template.Template
	funcs template.FuncMap
}

// NewViews builds the page set; storeName is shown in the header of every page.
func NewViews(storeName string) *Views {
	return &Views{
		pages: make(map[string]*template.Template),
		funcs: template.FuncMap{
			"storeName": func() string { return storeName },
			"money":     func(d decimal.Decimal) string { return d.StringFixed(2) },
			"date":      func(t time.Time) string { return t.Local().Format("02 Jan 2006 15:04") },
		},
	}
}

// Load parses every page together with the shared layout.
func (v *Views) Load() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	files, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return err
	}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(file, "templates/"), ".html")
		tmpl, err := template.New(name).Funcs(v.funcs).ParseFS(templatesFS, layoutFile, file)
		if err != nil {
			slog.Error("Failed to parse template", "file", file, "error", err)
			return err
		}
		v.pages[name] = tmpl
		slog.Debug("Cached template", "name", name)
	}
	return nil
}

// Render executes page name inside the layout. Layout arguments are accepted
// for fiber.Views compatibility; every page shares the one layout.
func (v *Views) Render(w io.Writer, name string, bind interface{}, _ ...string) error {
	v.mu.RLock()
	tmpl, ok := v.pages[name]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("web: unknown page %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", bind)
}
