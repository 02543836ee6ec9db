package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"sync"

	apperrors "github.com/jrsteele09/fingreat/internal/errors"
)

//go:embed templates/*
var templateFiles embed.FS

var (
	templatesMu sync.Mutex
	templates   = make(map[string]*template.Template)
)

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate returns the named page template. Each name is parsed once.
func ParseTemplate(name string) (*template.Template, error) {
	templatesMu.Lock()
	defer templatesMu.Unlock()
	if tmpl, ok := templates[name]; ok {
		return tmpl, nil
	}

	content, err := fs.ReadFile(TemplateFilesFS(), name)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "[ParseTemplate] %s: %v", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, apperrors.Wrapf(err, "[ParseTemplate] %s", name)
	}
	templates[name] = tmpl
	return tmpl, nil
}

// renderTemplate executes the named template into a buffer first so a
// failed render becomes a 500 instead of a truncated page.
func renderTemplate(w http.ResponseWriter, status int, name string, data any) {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		logError(http.MethodGet, name, err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logError(http.MethodGet, name, err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
