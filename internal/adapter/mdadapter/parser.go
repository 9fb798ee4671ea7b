package mdadapter

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const (
	nameMinLength = 1
)

var (
	startSeq  = []byte{'[', '['}
	endSeq    = []byte{']', ']'}
	labelSeq  = []byte{'|'}
	allAssets = []byte("ASSETS")
)

/*
 * [[app-arm64.apk]]
 * [[app-arm64.apk|Download for arm64]]
 * [[ASSETS]] - all assets of the release
 */
type AssetLinkParser struct{}

func NewAssetLinkParser() parser.InlineParser {
	return &AssetLinkParser{}
}

func (s *AssetLinkParser) Trigger() []byte {
	return []byte{'['}
}

func (s *AssetLinkParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	b, _ := block.PeekLine()
	if !bytes.HasPrefix(b, startSeq) {
		return nil
	}

	end := bytes.Index(b, endSeq)
	if end < len(startSeq) {
		return nil
	}

	line := bytes.TrimSpace(b[len(startSeq):end])
	if len(line) < nameMinLength {
		return nil
	}

	block.Advance(end + len(endSeq))

	if bytes.Equal(line, allAssets) {
		return &AssetLink{AllAssets: true}
	}

	if name, label, found := bytes.Cut(line, labelSeq); found {
		return &AssetLink{
			Name:  string(bytes.TrimSpace(name)),
			Label: string(bytes.TrimSpace(label)),
		}
	}

	return &AssetLink{Name: string(line)}
}
