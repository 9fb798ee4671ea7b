package mdadapter

import (
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

type AssetsExtension struct {
	r    AssetResolver
	tmpl *template.Template
}

func NewAssetsExtension(r AssetResolver, tmpl *template.Template) goldmark.Extender {
	return &AssetsExtension{r: r, tmpl: tmpl}
}

func (e *AssetsExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithInlineParsers(
			util.Prioritized(NewAssetLinkParser(), 199),
		),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(
			util.Prioritized(NewAssetLinkRenderer(e.r, e.tmpl), 199),
		),
	)
}
