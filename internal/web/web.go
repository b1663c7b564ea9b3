// Package web は埋め込みテンプレートを提供します。
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Templates は埋め込まれた全テンプレートを読み込みます。
// テンプレート名はファイル名（例: "login.html"）です。
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFiles, "templates/*.html")
}
