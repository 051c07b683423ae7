// © 2024 Gideon Appoh. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE.md file.

package site

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	ttemplate "text/template"
	"time"

	"github.com/Tech-Emiretus/gideonappoh.dev/internal/ogimage"

	"github.com/PuerkitoBio/goquery"
	"rsc.io/markdown"
)

// Page represents a site page. The exported fields is the front matter fields.
type Page struct {
	Title     string            `json:"title"`               // title: Page title, required.
	Permalink string            `json:"permalink"`           // permalink: Output path for the page, required.
	Template  string            `json:"template"`            // template: Template that should be used for rendering this page, required.
	Date      *date             `json:"date,omitempty"`      // date: Publication date in the 'year-month-day' format, e.g. 2006-01-02, optional.
	Draft     bool              `json:"draft,omitempty"`     // draft: Determines whether this page should be not included in production builds, false by default.
	MetaTags  map[string]string `json:"meta_tags,omitempty"` // meta_tags: Determines additional HTML meta tags that will be added to this page, optional.
	Summary   string            `json:"summary,omitempty"`   // summary: Page summary, used in the feed and Open Graph description, optional.
	Type      string            `json:"type,omitempty"`      // type: Used to distinguish different kinds of pages, page by default.
	CSS       []string          `json:"css,omitempty"`       // css: Additional CSS files that should be loaded, optional.
	JS        []string          `json:"js,omitempty"`        // js: Additional JavaScript files that should be loaded, optional.

	path     string // path to the page source
	dstPath  string // where to write the built page
	contents []byte // page contents without front matter
}

type date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d *date) UnmarshalJSON(p []byte) error {
	s := strings.Trim(string(p), "\"")
	if s == "null" {
		d.Time = time.Time{}
		return nil
	}

	dt, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = dt

	return nil
}

func (p *Page) parse(r io.Reader) error {
	// Check that format of the page is supported.
	var supported bool
	if slices.Contains([]string{".html", ".md"}, filepath.Ext(p.path)) {
		supported = true
	}
	if !supported {
		return fmt.Errorf("%s: %w", p.path, errFormatUnsupported)
	}

	const (
		leftDelim  = "{\n"
		rightDelim = "}\n"
	)

	// Split the front matter and contents.
	scanner := bufio.NewScanner(r)
	var (
		frontmatter, contents []byte
		reachedFrontmatter    bool
		reachedContents       bool
	)
	for scanner.Scan() {
		line := scanner.Text() + "\n"

		if !reachedContents {
			if line == leftDelim {
				reachedFrontmatter = true
			}

			if line == rightDelim {
				reachedFrontmatter = false
				frontmatter = append(frontmatter, line...)
				reachedContents = true
				continue
			}
		}

		if reachedFrontmatter {
			frontmatter = append(frontmatter, line...)
			continue
		}

		if reachedContents {
			contents = append(contents, line...)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w: %v", p.path, errFrontmatterSplit, err)
	}
	if len(frontmatter) == 0 {
		return fmt.Errorf("%s: %w", p.path, errFrontmatterMissing)
	}
	p.contents = contents

	// Parse the front matter.
	if err := json.Unmarshal(frontmatter, p); err != nil {
		return fmt.Errorf("%s: %w: %v", p.path, errFrontmatterParse, err)
	}
	// Set the default page type.
	if p.Type == "" {
		p.Type = "page"
	}

	// Check front matter fields.
	if p.Title == "" || p.Template == "" || p.Permalink == "" {
		return fmt.Errorf("%s: %w", p.path, errFrontmatterMissingParam)
	}
	if _, err := url.ParseRequestURI(p.Permalink); err != nil {
		return fmt.Errorf("%s: %w: %v", p.path, errPermalinkInvalid, err)
	}
	p.dstPath = p.Permalink
	if !strings.HasSuffix(p.dstPath, ".html") {
		if p.dstPath == "/" {
			p.dstPath = p.dstPath + "index"
		}
		p.dstPath = p.dstPath + ".html"
	}
	p.dstPath = path.Clean(p.dstPath)

	return nil
}

var htmlCommentRe = regexp.MustCompile("<!--(.*?)-->")

func (p *Page) build(b *buildContext, tpl *template.Template, w io.Writer) error {
	// We use here text/template, but not html/template because we don't want to
	// escape any HTML on the Markdown source.
	ptpl, err := ttemplate.New(p.path).Funcs(ttemplate.FuncMap(b.funcs)).Parse(string(p.contents))
	if err != nil {
		return err
	}
	var pbuf bytes.Buffer
	if err = ptpl.Execute(&pbuf, p); err != nil {
		return fmt.Errorf("%s: failed to execute page template: %w", p.path, err)
	}
	p.contents = pbuf.Bytes()

	if filepath.Ext(p.path) == ".md" {
		doc := b.md.Parse(string(p.contents))
		p.contents = []byte(markdown.ToHTML(doc))
	}

	p.contents = htmlCommentRe.ReplaceAll(p.contents, []byte{})

	b.injectOGMeta(p)

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, p); err != nil {
		return fmt.Errorf("%s: failed to execute template %q: %w", p.path, p.Template, err)
	}

	minified, err := b.min.Bytes("text/html", buf.Bytes())
	if err != nil {
		return err
	}

	_, err = w.Write(minified)
	return err
}

// injectOGMeta generates the page's Open Graph preview image and fills
// MetaTags with the og:* tags pointing at it. Front matter meta_tags win
// over generated ones.
func (b *buildContext) injectOGMeta(p *Page) {
	if b.og == nil {
		return
	}

	name := ogFileName(p.Permalink)
	b.og.Generate(p.Title, filepath.Join(b.c.Dst, "assets", "og", name))

	if p.MetaTags == nil {
		p.MetaTags = make(map[string]string)
	}
	set := func(k, v string) {
		if _, ok := p.MetaTags[k]; !ok && v != "" {
			p.MetaTags[k] = v
		}
	}

	set("og:title", p.Title)
	set("og:url", b.absURL(p.Permalink))
	typ := "website"
	if p.Type == "post" {
		typ = "article"
	}
	set("og:type", typ)
	set("og:image", b.absURL(path.Join("/assets/og", name)))
	set("og:image:width", strconv.Itoa(ogimage.Width))
	set("og:image:height", strconv.Itoa(ogimage.Height))
	set("og:image:type", "image/png")

	desc := p.Summary
	if desc == "" {
		desc = firstParagraph(p.contents)
	}
	if desc == "" {
		desc = b.c.Description
	}
	set("og:description", desc)
}

// ogFileName derives the preview image filename from the page permalink:
// path separators become dashes and the extension is fixed to .png, so
// distinct pages map to distinct files.
func ogFileName(permalink string) string {
	s := strings.Trim(strings.TrimSuffix(permalink, ".html"), "/")
	if s == "" {
		s = "index"
	}
	return strings.ReplaceAll(s, "/", "-") + ".png"
}

// firstParagraph returns the text of the first paragraph of rendered HTML,
// used as the og:description fallback for pages without a summary.
func firstParagraph(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("p").First().Text())
}
