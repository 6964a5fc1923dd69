package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/benjaminschreck/go-manuscript/pkg/manuscript"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintln(os.Stderr, "go-manuscript - Markdown to house-style DOCX converter")
	fmt.Fprintln(os.Stderr, "\nUsage: manuscript <source.md> <target.docx>")
	fmt.Fprintln(os.Stderr, "       manuscript version")
	fmt.Fprintln(os.Stderr, "\nEnvironment:")
	fmt.Fprintln(os.Stderr, "  MANUSCRIPT_CONFIG               YAML configuration file")
	fmt.Fprintln(os.Stderr, "  MANUSCRIPT_TEMPLATE             template .docx or unpacked directory")
	fmt.Fprintln(os.Stderr, "  MANUSCRIPT_LOG_LEVEL            debug, info, warn, error or off")
	fmt.Fprintln(os.Stderr, "  MANUSCRIPT_LANGUAGES            comma separated languages (default ru,en)")
	fmt.Fprintln(os.Stderr, "  MANUSCRIPT_STRICT_STYLES        reject styles the house style does not define")
	fmt.Fprintln(os.Stderr, "  MANUSCRIPT_LIST_NUMBERING_BASE  first numbering id given to lists")
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		fmt.Printf("go-manuscript version %s\n", version)
		return
	}
	if len(os.Args) != 3 {
		usage()
		os.Exit(1)
	}

	config, err := manuscript.ConfigFromEnvironment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	conv, err := manuscript.NewConverter(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := conv.Convert(ctx, os.Args[1], os.Args[2]); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
