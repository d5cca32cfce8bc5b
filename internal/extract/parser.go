package extract

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

const (
	MetaPages  = "pages"
	MetaSource = "source"
)

// Parser exposes first-page extraction as an eino document parser.
type Parser struct{}

var _ parser.Parser = (*Parser)(nil)

// Parse reads the whole PDF from reader and returns a single document holding
// the first page's text.
func (p *Parser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	options := parser.GetCommonOptions(&parser.Options{}, opts...)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	res := FirstPageText(data)
	if !res.OK() {
		return nil, res.Err
	}
	meta := map[string]any{
		MetaPages:  res.Pages,
		MetaSource: options.URI,
	}
	for k, v := range options.ExtraMeta {
		meta[k] = v
	}
	return []*schema.Document{{
		ID:       options.URI,
		Content:  res.Text,
		MetaData: meta,
	}}, nil
}
