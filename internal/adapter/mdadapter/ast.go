package mdadapter

import (
	"github.com/yuin/goldmark/ast"
)

var KindAssetLink = ast.NewNodeKind("AssetLink")

// AssetLink is a [[name]], [[name|label]] or [[ASSETS]] reference in release notes.
type AssetLink struct {
	ast.BaseInline
	Name      string
	Label     string
	AllAssets bool
}

func (n *AssetLink) Kind() ast.NodeKind {
	return KindAssetLink
}

func (n *AssetLink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Name":  n.Name,
		"Label": n.Label,
	}, nil)
}
