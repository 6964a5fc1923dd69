package generator

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/docerr"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/logging"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/markdown"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/xml"
)

const (
	emuPerCm   = 360000
	pictureURI = "http://schemas.openxmlformats.org/drawingml/2006/picture"
)

// ImageConfig holds the pixel dimensions and format name of an encoded image.
type ImageConfig struct {
	Width, Height int
	Format        string
}

// DecodeImageConfig reads the dimensions of a PNG, JPEG, GIF, BMP, TIFF or WebP image without
// decoding its pixels.
func DecodeImageConfig(data []byte) (ImageConfig, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageConfig{}, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageConfig{}, fmt.Errorf("image has no area (%dx%d)", cfg.Width, cfg.Height)
	}
	return ImageConfig{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Size is a rendered image size in centimetres.
type Size struct {
	Width, Height float64
}

// EMU returns the size in English Metric Units.
func (s Size) EMU() (cx, cy int64) {
	return int64(s.Width * emuPerCm), int64(s.Height * emuPerCm)
}

// ParseLength reads a length attribute such as "5cm", "40 mm" or "2in" and returns it in
// centimetres.
func ParseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	units := []struct {
		suffix string
		cm     float64
	}{
		{"cm", 1},
		{"mm", 0.1},
		{"in", 2.54},
	}
	for _, u := range units {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
			if err != nil || v <= 0 {
				return 0, false
			}
			return v * u.cm, true
		}
	}
	return 0, false
}

// ImageSize resolves the rendered size of an image from its width and height attributes. A
// missing side follows the aspect ratio (width / height); with neither attribute the image is
// defaultWidth wide. ok is false when a side is missing and the aspect ratio is unknown.
func ImageSize(attrs map[string]string, aspect, defaultWidth float64) (size Size, ok bool) {
	width, hasWidth := ParseLength(attrs["width"])
	height, hasHeight := ParseLength(attrs["height"])
	switch {
	case hasWidth && hasHeight:
		return Size{width, height}, true
	case aspect <= 0:
		return Size{}, false
	case hasHeight:
		return Size{aspect * height, height}, true
	case !hasWidth:
		width = defaultWidth
	}
	return Size{width, width / aspect}, true
}

// MediaName turns the base name of an image path into a media file name made of ASCII letters,
// digits, dots and underscores. Accents are folded first so "Résumé.png" becomes "Resume.png".
func MediaName(p string) string {
	name := path.Base(filepath.ToSlash(p))
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(stripMarks, name); err == nil {
		name = folded
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			return r
		}
		return '_'
	}, name)
}

// image copies the image file into the package, relates it to the main part and returns the
// run that draws it.
func (g *generator) image(n *markdown.Node) (*xml.Node, error) {
	src := filepath.FromSlash(n.URL)
	if !filepath.IsAbs(src) && g.opts.BaseDir != "" {
		src = filepath.Join(g.opts.BaseDir, src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, docerr.Wrap(docerr.KindMissingResource, docerr.CodeUnsupportedImage, "read image", n.URL, err)
	}

	var aspect float64
	cfg, configErr := DecodeImageConfig(data)
	if configErr == nil {
		aspect = float64(cfg.Width) / float64(cfg.Height)
	}
	size, ok := ImageSize(n.Attrs, aspect, g.opts.DefaultImageWidthCm)
	if !ok {
		return nil, docerr.Wrap(docerr.KindMalformedInput, docerr.CodeUnsupportedImage, "size image", n.URL, configErr)
	}

	name := MediaName(n.URL)
	if path.Ext(name) == "" && cfg.Format != "" {
		name += "." + cfg.Format
	}
	target := g.pkg.UniqueMediaTarget(name)
	g.pkg.WriteFile(target, data)
	g.pkg.ContentTypes().EnsureDefault(path.Ext(target), "")
	id := g.rels.Add(ooxml.RelImage, ooxml.TargetForPath(g.doc.Path(), target), "")

	g.drawings++
	g.log.WithFields(logging.Fields{"image": n.URL, "target": target}).
		Debug("embedded image at %.2fx%.2f cm", size.Width, size.Height)
	return xml.Build("w:r", nil, drawing(id, g.drawings, name, n.Alt, size)), nil
}

func drawing(relID string, docPrID int, name, descr string, size Size) *xml.Node {
	cx, cy := size.EMU()
	extent := []xml.Attr{{Name: "cx", Value: strconv.FormatInt(cx, 10)}, {Name: "cy", Value: strconv.FormatInt(cy, 10)}}
	zero := func(names ...string) []xml.Attr {
		attrs := make([]xml.Attr, len(names))
		for i, n := range names {
			attrs[i] = xml.Attr{Name: n, Value: "0"}
		}
		return attrs
	}

	return xml.Build("w:drawing", nil,
		xml.Build("wp:inline", zero("distT", "distB", "distL", "distR"),
			xml.Build("wp:extent", extent),
			xml.Build("wp:effectExtent", zero("l", "t", "r", "b")),
			xml.Build("wp:docPr", []xml.Attr{
				{Name: "id", Value: strconv.Itoa(docPrID)},
				{Name: "name", Value: "Picture " + strconv.Itoa(docPrID)},
				{Name: "descr", Value: descr},
			}),
			xml.Build("wp:cNvGraphicFramePr", nil,
				xml.Build("a:graphicFrameLocks", []xml.Attr{{Name: "noChangeAspect", Value: "1"}})),
			xml.Build("a:graphic", nil,
				xml.Build("a:graphicData", []xml.Attr{{Name: "uri", Value: pictureURI}},
					xml.Build("pic:pic", nil,
						xml.Build("pic:nvPicPr", nil,
							xml.Build("pic:cNvPr", []xml.Attr{{Name: "id", Value: "0"}, {Name: "name", Value: name}}),
							xml.Build("pic:cNvPicPr", nil)),
						xml.Build("pic:blipFill", nil,
							xml.Build("a:blip", []xml.Attr{{Name: "r:embed", Value: relID}}),
							xml.Build("a:stretch", nil, xml.Build("a:fillRect", nil))),
						xml.Build("pic:spPr", nil,
							xml.Build("a:xfrm", nil,
								xml.Build("a:off", []xml.Attr{{Name: "x", Value: "0"}, {Name: "y", Value: "0"}}),
								xml.Build("a:ext", extent)),
							xml.Build("a:prstGeom", []xml.Attr{{Name: "prst", Value: "rect"}},
								xml.Build("a:avLst", nil))))))))
}
