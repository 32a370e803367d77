// Package web embeds the HTML templates and static assets served by the UI.
package web

import "embed"

// TemplatesFS holds base.html plus one file per page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds css and images.
//
//go:embed static/*
var StaticFS embed.FS
