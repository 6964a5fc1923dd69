package manuscript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/generator"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/housestyle"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/logging"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/markdown"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/reconcile"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/refs"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/substitute"
)

// Converter turns Markdown manuscripts into documents in the house style. A Converter holds no
// per-document state and may be used for several conversions one after another.
type Converter struct {
	config *Config
	log    *logging.Logger
	parser *markdown.Parser
}

// NewConverter validates config, filling unset fields with defaults.
func NewConverter(config *Config) (*Converter, error) {
	config = NewConfigWithDefaults(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Converter{
		config: config,
		log:    config.logger(),
		parser: markdown.NewParser(),
	}, nil
}

// Config returns the effective configuration.
func (c *Converter) Config() *Config {
	cfg := *c.config
	return &cfg
}

// Convert reads the manuscript at source and writes the document to target. Relative image
// paths resolve against the directory of source. Nothing is written to target on failure.
func (c *Converter) Convert(ctx context.Context, source, target string) error {
	log := c.log.WithField("source", source)

	src, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read manuscript: %w", err)
	}
	doc, err := c.parser.Parse(src)
	if err != nil {
		return docerr.WithContext(err, "parse manuscript", map[string]interface{}{"source": source})
	}
	if c.config.DebugJSON {
		if err := writeDebugJSON(source+".json", doc); err != nil {
			log.Warn("could not write parsed document: %v", err)
		}
	}

	pkg, err := c.Render(ctx, doc, filepath.Dir(source))
	if err != nil {
		return err
	}
	if err := pkg.SaveFile(target); err != nil {
		return err
	}
	log.WithField("target", target).Info("wrote document")
	return nil
}

// ConvertReader converts a manuscript read from r and writes the package to w. baseDir resolves
// relative image paths.
func (c *Converter) ConvertReader(ctx context.Context, r io.Reader, w io.Writer, baseDir string) error {
	src, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read manuscript: %w", err)
	}
	doc, err := c.parser.Parse(src)
	if err != nil {
		return docerr.WithContext(err, "parse manuscript", nil)
	}
	pkg, err := c.Render(ctx, doc, baseDir)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := pkg.Save(&buf); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// Render runs the conversion stages on a parsed manuscript and returns the finished package:
// reference numbering, content generation, style reconciliation, body splicing, metadata fills
// and assembly. The context is checked between stages.
func (c *Converter) Render(ctx context.Context, doc *markdown.Document, baseDir string) (*ooxml.Package, error) {
	md := PaperMetadata(doc.Meta, c.config.MetaKey)

	references, err := refs.New(md.Get("links"),
		refs.WithDepthThreshold(c.config.HeadingDepthThreshold),
		refs.WithLogger(c.log))
	if err != nil {
		return nil, err
	}
	references.Apply(doc.Body)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := generator.Generate(doc.Body, generator.Options{
		BaseDir:             baseDir,
		MaxHeadingLevel:     c.config.MaxHeadingLevel,
		DefaultImageWidthCm: c.config.DefaultImageWidthCm,
		Logger:              c.log,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tpl, err := c.openTemplate()
	if err != nil {
		return nil, err
	}
	result, err := reconcile.Run(tpl, out, c.config.reconcileOptions(c.log))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fill, err := newFiller(tpl, md, c.config, result, c.log)
	if err != nil {
		return nil, err
	}
	if err := fill.fill(); err != nil {
		return nil, err
	}

	asm := newAssembler(tpl, out, c.log)
	if err := asm.transferRelationships(); err != nil {
		return nil, err
	}
	var styles *substitute.StyleMap
	if c.config.StrictStyles {
		if styles, err = c.houseStyleMap(out, result); err != nil {
			return nil, err
		}
	}
	if err := asm.splice(styles); err != nil {
		return nil, err
	}
	if err := asm.finish(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// openTemplate loads the configured template: a .docx file, an unpacked directory, or the
// built-in house template.
func (c *Converter) openTemplate() (*ooxml.Package, error) {
	if c.config.Template == "" {
		return housestyle.Open()
	}
	info, err := os.Stat(c.config.Template)
	if err != nil {
		return nil, docerr.Wrap(docerr.KindMissingResource, docerr.CodeMissingRequiredPart, "open template",
			c.config.Template, err)
	}
	if info.IsDir() {
		return ooxml.OpenDir(c.config.Template)
	}
	return ooxml.Open(c.config.Template)
}

// houseStyleMap admits the styles imported from the template plus the configured pass-through
// names; any other style left in the generated body is rejected.
func (c *Converter) houseStyleMap(out *ooxml.Package, result *reconcile.Result) (*substitute.StyleMap, error) {
	sheet, err := out.Styles()
	if err != nil {
		return nil, err
	}
	allowed := append([]string(nil), c.config.Styles.PassThrough...)
	for _, alias := range result.Aliases {
		if st := sheet.ByID(alias); st != nil {
			allowed = append(allowed, st.Name())
		}
	}
	return &substitute.StyleMap{Source: sheet, Target: sheet, PassThrough: allowed}, nil
}

func writeDebugJSON(name string, doc *markdown.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}
