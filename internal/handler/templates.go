package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// pageTemplates は埋め込みHTMLテンプレートのパース済みセット。
var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// renderPage は指定テンプレートをHTMLとして描画する。
func renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}

// StaticHandler は埋め込み静的ファイル（JS・CSS）を配信するハンドラーを返す。
// GET /static/*
func StaticHandler() http.Handler {
	return http.FileServer(http.FS(staticFS))
}
