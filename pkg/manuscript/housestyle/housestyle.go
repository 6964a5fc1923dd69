// Package housestyle ships the reference template a manuscript is merged into.
//
// The template is stored unpacked under template/ so its parts can be diffed and edited as
// plain XML. It carries the house styles (ispText_main, ispSubHeader-N level, ispNumList, ...),
// the bibliography numbering, page headers and the placeholder skeleton of a paper.
package housestyle

import (
	"embed"
	"io/fs"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript/ooxml"
)

//go:embed all:template
var files embed.FS

// FS returns the unpacked template as a file system rooted at the package root.
func FS() fs.FS {
	sub, err := fs.Sub(files, "template")
	if err != nil {
		panic(err)
	}
	return sub
}

// Open loads a fresh copy of the house template. Every call returns an independent package.
func Open() (*ooxml.Package, error) {
	return ooxml.OpenFS(FS())
}
