// © 2024 Gideon Appoh. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE.md file.

/*
Package ogimage generates Open Graph preview images for site pages.

An image is produced by substituting the page title, word-wrapped to at most
three lines, into an SVG template and rasterizing the result to a 1440×810
PNG. The template must contain the {{title1}}, {{title2}} and {{title3}}
markers; a line that wasn't produced for a short title leaves its marker
substituted with an empty string.

Generation is best effort. A page without a preview image is a cosmetic
problem, so per-page failures are logged and never returned: the build keeps
going. Only a missing or invalid template is fatal, since no image could ever
be produced from it.
*/
package ogimage

import (
	"bytes"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Tech-Emiretus/gideonappoh.dev/internal/logger"
)

// Output image dimensions, matching the template's viewBox.
const (
	Width  = 1440
	Height = 810
)

// Title wrapping limits: a soft cap of 30 characters per line, at most 3
// lines. Text beyond the third line is dropped.
const (
	maxLineLen = 30
	maxLines   = 3
)

var markers = []string{"{{title1}}", "{{title2}}", "{{title3}}"}

// Generator produces Open Graph images from an SVG template.
//
// The template is read once and shared read-only across calls, so a single
// Generator is safe for concurrent use as long as distinct calls target
// distinct output paths.
type Generator struct {
	// Template is the SVG source with title markers.
	Template string
	// Logf is a logger to use. If nil, log.Printf is used.
	Logf logger.Logf
}

// Load reads the SVG template at path and returns a Generator using it.
// It fails if the template is unreadable or is missing any title marker.
func Load(path string, logf logger.Logf) (*Generator, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ogimage: reading template: %w", err)
	}
	tpl := string(b)
	for _, m := range markers {
		if !strings.Contains(tpl, m) {
			return nil, fmt.Errorf("ogimage: template %s is missing the %s marker", path, m)
		}
	}
	return &Generator{Template: tpl, Logf: logf}, nil
}

func (g *Generator) logf(format string, args ...any) {
	if g.Logf == nil {
		log.Printf(format, args...)
		return
	}
	g.Logf(format, args...)
}

// Generate renders a preview image for title and writes it to outputPath.
//
// If a file already exists at outputPath, Generate returns immediately
// without doing any work: the path doubles as the cache key, and callers are
// expected to map distinct pages to distinct paths. The existence check and
// the write are not atomic, so two concurrent calls targeting the same path
// may both render; with one path per page this doesn't happen in practice.
//
// Any failure after the existence check is logged with the output path and
// swallowed, leaving the file absent.
func (g *Generator) Generate(title, outputPath string) {
	if _, err := os.Stat(outputPath); err == nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		g.logf("ogimage: %s: %v", outputPath, err)
		return
	}

	g.logf("ogimage: generating %s", outputPath)

	// Title lines end up inside XML text nodes.
	values := map[string]string{"title1": "", "title2": "", "title3": ""}
	for i, line := range wrapTitle(title) {
		values[fmt.Sprintf("title%d", i+1)] = xmlEscaper.Replace(line)
	}

	img, err := rasterize(expand(g.Template, values), Width, Height)
	if err != nil {
		g.logf("ogimage: %s: %v", outputPath, err)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		g.logf("ogimage: %s: %v", outputPath, err)
		return
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		g.logf("ogimage: %s: %v", outputPath, err)
	}
}

// wrapTitle splits title into at most maxLines lines of roughly maxLineLen
// characters, breaking only at whitespace. A single word longer than
// maxLineLen stays on its own line unbroken. Words that don't fit into the
// last line are dropped.
func wrapTitle(title string) []string {
	var (
		lines []string
		cur   string
	)
	for _, word := range strings.Fields(title) {
		switch {
		case cur == "":
			cur = word
		case len(cur)+1+len(word) > maxLineLen:
			lines = append(lines, cur)
			if len(lines) == maxLines {
				return lines
			}
			cur = word
		default:
			cur += " " + word
		}
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var markerRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// expand replaces every {{name}} marker in tpl with values[name]. Markers
// without a corresponding value are replaced with an empty string.
func expand(tpl string, values map[string]string) string {
	return markerRe.ReplaceAllStringFunc(tpl, func(m string) string {
		return values[strings.Trim(m, "{}")]
	})
}
