package mail

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	htmlLayout = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/layout.html.tmpl"))
	textLayout = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/layout.txt.tmpl"))
)

type linkMail struct {
	Subject string
	Title   string
	Intro   string
	Button  string
	Link    string
	Expires string
}

func (lm linkMail) render(to string) (Message, error) {
	var h, t bytes.Buffer
	if err := htmlLayout.ExecuteTemplate(&h, "layout", lm); err != nil {
		return Message{}, err
	}
	if err := textLayout.ExecuteTemplate(&t, "layout", lm); err != nil {
		return Message{}, err
	}
	return Message{
		To:       to,
		Subject:  lm.Subject,
		HTMLBody: h.String(),
		TextBody: t.String(),
	}, nil
}
