package mdadapter

import (
	"bytes"
	"fmt"
	"html/template"

	_ "embed"

	"github.com/jgivc/ghrelay/internal/entity"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

//go:embed templates/assets.html
var defaultTemplateContent string

// Renderer converts release notes and changelogs to HTML. Notes may start with a yaml
// front matter block, which is returned as metadata instead of being rendered.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("").Parse(defaultTemplateContent)
	if err != nil {
		return nil, fmt.Errorf("cannot parse assets template: %w", err)
	}

	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(src string, assets []entity.ReleaseAsset) (string, map[string]any, error) {
	if src == "" {
		return "", nil, nil
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			&frontmatter.Extender{},
			NewAssetsExtension(newAssetSet(assets), r.tmpl),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	var buf bytes.Buffer

	ctx := parser.NewContext()
	if err := md.Convert([]byte(src), &buf, parser.WithContext(ctx)); err != nil {
		return "", nil, fmt.Errorf("cannot convert markdown: %w", err)
	}

	var meta map[string]any
	if fm := frontmatter.Get(ctx); fm != nil {
		if err := fm.Decode(&meta); err != nil {
			return "", nil, fmt.Errorf("cannot decode front matter: %w", err)
		}
	}

	return buf.String(), meta, nil
}

type assetSet struct {
	assets []entity.ReleaseAsset
	byName map[string]int
}

func newAssetSet(assets []entity.ReleaseAsset) *assetSet {
	byName := make(map[string]int, len(assets))
	for i := range assets {
		byName[assets[i].Name] = i
	}

	return &assetSet{assets: assets, byName: byName}
}

func (s *assetSet) GetAsset(name string) (*entity.ReleaseAsset, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}

	return &s.assets[i], true
}

func (s *assetSet) GetAssets() []entity.ReleaseAsset {
	return s.assets
}
