package mdadapter

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/jgivc/ghrelay/internal/entity"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

const (
	tmplNameAsset   = "ASSET"
	tmplNameAssets  = "ASSETS"
	tmplNameMissing = "MISSING"
)

type AssetResolver interface {
	GetAsset(name string) (*entity.ReleaseAsset, bool)
	GetAssets() []entity.ReleaseAsset
}

type assetView struct {
	*entity.ReleaseAsset
	Label string
}

type AssetLinkRenderer struct {
	r    AssetResolver
	tmpl *template.Template
}

func NewAssetLinkRenderer(r AssetResolver, tmpl *template.Template) renderer.NodeRenderer {
	return &AssetLinkRenderer{r: r, tmpl: tmpl}
}

func (r *AssetLinkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindAssetLink, r.renderAssetLink)
}

func (r *AssetLinkRenderer) renderAssetLink(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	link, ok := n.(*AssetLink)
	if !ok {
		return ast.WalkStop, fmt.Errorf("unexpected node %T, expected *AssetLink", n)
	}

	if link.AllAssets {
		data, err := r.renderTemplate(tmplNameAssets, r.r.GetAssets())
		if err != nil {
			return ast.WalkStop, err
		}

		w.Write(data)

		return ast.WalkContinue, nil
	}

	label := link.Label
	if label == "" {
		label = link.Name
	}

	// Notes may mention assets that were never uploaded; those render as plain text.
	asset, found := r.r.GetAsset(link.Name)
	tmplName := tmplNameAsset
	if !found {
		tmplName = tmplNameMissing
	}

	data, err := r.renderTemplate(tmplName, &assetView{ReleaseAsset: asset, Label: label})
	if err != nil {
		return ast.WalkStop, err
	}

	w.Write(data)

	return ast.WalkContinue, nil
}

func (r *AssetLinkRenderer) renderTemplate(tmplName string, data any) ([]byte, error) {
	tmpl := r.tmpl.Lookup(tmplName)
	if tmpl == nil {
		return nil, fmt.Errorf("template with name %s must be defined", tmplName)
	}

	buf := &bytes.Buffer{}
	if err := tmpl.Execute(buf, data); err != nil {
		return nil, fmt.Errorf("cannot execute template %s: %w", tmplName, err)
	}

	return buf.Bytes(), nil
}
