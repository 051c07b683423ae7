// © 2024 Gideon Appoh. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE.md file.

package ogimage

import (
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// rasterize renders SVG source to a w×h image. Geometry is drawn by oksvg;
// text nodes, which oksvg ignores, are drawn separately from the template's
// own coordinates. The template's viewBox matches the output size, so text
// coordinates are interpreted 1:1.
func rasterize(src string, w, h int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(src), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.Draw(rasterx.NewDasher(w, h, rasterx.NewScannerGV(w, h, img, img.Bounds())), 1)

	texts, err := textNodes(src)
	if err != nil {
		return nil, fmt.Errorf("parse svg text: %w", err)
	}
	for _, t := range texts {
		if err := drawText(img, t); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// textNode is a single <text> element of the template.
type textNode struct {
	x, y, size float64
	fill       color.Color
	content    string
}

func textNodes(src string) ([]textNode, error) {
	dec := xml.NewDecoder(strings.NewReader(src))
	var (
		nodes []textNode
		cur   *textNode
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "text" {
				continue
			}
			n := textNode{size: 16, fill: color.White}
			for _, a := range t.Attr {
				switch a.Name.Local {
				case "x":
					n.x, _ = strconv.ParseFloat(a.Value, 64)
				case "y":
					n.y, _ = strconv.ParseFloat(a.Value, 64)
				case "font-size":
					n.size, _ = strconv.ParseFloat(a.Value, 64)
				case "fill":
					if c, err := parseHexColor(a.Value); err == nil {
						n.fill = c
					}
				}
			}
			cur = &n
		case xml.CharData:
			if cur != nil {
				cur.content += string(t)
			}
		case xml.EndElement:
			if t.Name.Local == "text" && cur != nil {
				nodes = append(nodes, *cur)
				cur = nil
			}
		}
	}
	return nodes, nil
}

var boldFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// drawText draws a single text node onto img. The node's y coordinate is the
// text baseline, matching SVG semantics.
func drawText(img *image.RGBA, t textNode) error {
	s := strings.TrimSpace(t.content)
	if s == "" {
		return nil
	}

	f, err := boldFont()
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    t.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(t.fill),
		Face: face,
		Dot:  fixed.Point26_6{X: floatToFixed(t.x), Y: floatToFixed(t.y)},
	}
	d.DrawString(s)
	return nil
}

func floatToFixed(f float64) fixed.Int26_6 {
	return fixed.Int26_6(f * 64)
}

// parseHexColor parses a #rrggbb color.
func parseHexColor(s string) (color.RGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("unsupported color %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("unsupported color %q", s)
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}, nil
}
