// Package widget ships the browser chat client: its script, stylesheet and a
// demo host page.
package widget

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"path"
)

const DefaultGreeting = "How can we help you today?"

//go:embed static
var static embed.FS

//go:embed templates/page.html
var pageHTML string

var page = template.Must(template.New("page").Parse(pageHTML))

type PageData struct {
	SiteName string
	BotName  string
}

// Asset returns an embedded static file and its content type.
func Asset(name string) ([]byte, string, error) {
	b, err := fs.ReadFile(static, path.Join("static", path.Clean("/"+name)))
	if err != nil {
		return nil, "", err
	}
	return b, contentType(name), nil
}

func RenderPage(w io.Writer, d PageData) error {
	return page.Execute(w, d)
}

func contentType(name string) string {
	switch path.Ext(name) {
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	}
	return "application/octet-stream"
}
