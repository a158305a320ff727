package http_handlers

import (
	"embed"
	"html/template"
	"io"
)

const resetSubmitPath = "/auth/reseted_password"

//go:embed templates/reset_password.html.tmpl
var templatesFS embed.FS

var resetPage = template.Must(template.ParseFS(templatesFS, "templates/reset_password.html.tmpl"))

type resetPageData struct {
	Email  string
	Token  string
	Action string
}

func renderResetPage(w io.Writer, data resetPageData) error {
	return resetPage.Execute(w, data)
}
