// Package importer turns markdown contract drafts, the format the legal team
// writes first versions in, into full HTML template documents and submits
// them through the persistence gateway.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/evdealer/contractedit/internal/gateway"
	"github.com/evdealer/contractedit/internal/htmldoc"
	"github.com/evdealer/contractedit/internal/placeholder"
)

// draftStyle is the print-oriented stylesheet applied to imported drafts.
// Editors adjust it later through the template editor.
const draftStyle = `<style>
body { font-family: "Times New Roman", serif; font-size: 13pt; line-height: 1.5; margin: 2.5cm; }
h1, h2, h3 { font-family: Arial, sans-serif; }
table { border-collapse: collapse; width: 100%; }
td, th { border: 1px solid #333; padding: 4px 8px; }
.placeholder-variable { background: #fff3bf; border-radius: 2px; padding: 0 2px; }
</style>`

// Importer converts markdown drafts and saves them as contract templates.
type Importer struct {
	gw       *gateway.Client
	language string
}

// New creates an Importer that submits through gw. Imported documents get a
// root lang attribute of language.
func New(gw *gateway.Client, language string) *Importer {
	if language == "" {
		language = "en"
	}
	return &Importer{gw: gw, language: language}
}

// Convert renders markdown to an HTML body fragment. Placeholder tokens pass
// through goldmark untouched since {{ }} is not markdown syntax.
func Convert(markdown []byte) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	var buf bytes.Buffer
	if err := md.Convert(markdown, &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// ImportFile converts the markdown draft at path and saves it as the
// template body for templateID under the given subject. It returns the
// backend's save result together with the placeholder expressions found in
// the draft.
func (i *Importer) ImportFile(ctx context.Context, templateID, subject, path string) (*gateway.SaveResult, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading draft %s: %w", path, err)
	}

	body, err := Convert(data)
	if err != nil {
		return nil, nil, err
	}
	if body == "" {
		return nil, nil, fmt.Errorf("draft %s rendered to an empty body", path)
	}

	res, err := i.gw.Save(ctx, gateway.SaveRequest{
		TemplateID: templateID,
		Subject:    subject,
		Body:       body,
		Structure: htmldoc.Structure{
			StyleBlocks: draftStyle,
			RootAttrs:   fmt.Sprintf("lang=%q", i.language),
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("saving imported draft: %w", err)
	}

	return res, placeholder.Exprs(body), nil
}
