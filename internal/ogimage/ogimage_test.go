// © 2024 Gideon Appoh. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE.md file.

package ogimage

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTemplate = `<svg xmlns="http://www.w3.org/2000/svg" width="1440" height="810" viewBox="0 0 1440 810">
  <rect width="1440" height="810" fill="#0f172a"/>
  <text x="96" y="400" font-size="72" fill="#f8fafc">{{title1}}</text>
  <text x="96" y="492" font-size="72" fill="#f8fafc">{{title2}}</text>
  <text x="96" y="584" font-size="72" fill="#f8fafc">{{title3}}</text>
</svg>`

// logRecorder captures log lines for assertions.
type logRecorder struct {
	lines []string
}

func (l *logRecorder) logf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestWrapTitle(t *testing.T) {
	word28 := strings.Repeat("a", 28)

	cases := map[string]struct {
		title string
		want  []string
	}{
		"empty":           {"", nil},
		"whitespace only": {"  \t\n ", nil},
		"short":           {"Hello, world!", []string{"Hello, world!"}},
		"exactly 30 chars, no spaces": {
			strings.Repeat("a", 30),
			[]string{strings.Repeat("a", 30)},
		},
		"31 chars, space at 28": {
			word28 + " yz",
			[]string{word28, "yz"},
		},
		"single long word stays unbroken": {
			strings.Repeat("a", 45),
			[]string{strings.Repeat("a", 45)},
		},
		"wraps at word boundaries": {
			"Generating Open Graph images at build time",
			[]string{"Generating Open Graph images", "at build time"},
		},
		"collapses inner whitespace": {
			"Hello   world",
			[]string{"Hello world"},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, wrapTitle(tc.title))
		})
	}
}

func TestWrapTitleOverflow(t *testing.T) {
	// 12 ten-character words: two fit per line, so everything past word 6 is
	// dropped. Lossy truncation is deliberate; there is no overflow marker.
	var words []string
	for i := range 12 {
		words = append(words, fmt.Sprintf("word%06d", i))
	}

	got := wrapTitle(strings.Join(words, " "))
	require.Len(t, got, 3)
	assert.Equal(t, "word000004 word000005", got[2])
	assert.NotContains(t, strings.Join(got, " "), "word000006")
}

func TestExpand(t *testing.T) {
	values := map[string]string{"title1": "one", "title2": "two", "title3": ""}

	cases := map[string]struct {
		tpl  string
		want string
	}{
		"all markers":       {"{{title1}}|{{title2}}|{{title3}}", "one|two|"},
		"unknown marker":    {"a{{nope}}b", "ab"},
		"no markers":        {"plain text", "plain text"},
		"marker-like runes": {"{{bad marker}} {{title1}}", "{{bad marker}} one"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, expand(tc.tpl, values))
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "og.svg")
	require.NoError(t, os.WriteFile(good, []byte(testTemplate), 0o644))

	g, err := Load(good, nil)
	require.NoError(t, err)
	assert.Equal(t, testTemplate, g.Template)

	_, err = Load(filepath.Join(dir, "missing.svg"), nil)
	assert.Error(t, err)

	partial := filepath.Join(dir, "partial.svg")
	require.NoError(t, os.WriteFile(partial, []byte("<svg>{{title1}}</svg>"), 0o644))
	_, err = Load(partial, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{{title2}}")
}

func TestGenerate(t *testing.T) {
	rec := &logRecorder{}
	g := &Generator{Template: testTemplate, Logf: rec.logf}

	// The parent directories don't exist yet; Generate must create them.
	out := filepath.Join(t.TempDir(), "assets", "og", "hello.png")
	g.Generate("Generating Open Graph images & cards at build time for every page", out)

	assertPNGSize(t, out, Width, Height)
}

func TestGenerateEmptyTitle(t *testing.T) {
	g := &Generator{Template: testTemplate, Logf: t.Logf}

	out := filepath.Join(t.TempDir(), "empty.png")
	g.Generate("   ", out)

	assertPNGSize(t, out, Width, Height)
}

func TestGenerateIdempotent(t *testing.T) {
	rec := &logRecorder{}
	g := &Generator{Template: testTemplate, Logf: rec.logf}

	out := filepath.Join(t.TempDir(), "card.png")
	g.Generate("Hello, world!", out)

	fi1, err := os.Stat(out)
	require.NoError(t, err)

	g.Generate("Hello, world!", out)

	fi2, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, fi1.ModTime(), fi2.ModTime(), "second call must not rewrite the file")

	var generating int
	for _, line := range rec.lines {
		if strings.Contains(line, "generating") {
			generating++
		}
	}
	assert.Equal(t, 1, generating, "work must happen on the first call only")
}

func TestGenerateFailureIsolation(t *testing.T) {
	rec := &logRecorder{}
	g := &Generator{Template: "<svg", Logf: rec.logf}

	out := filepath.Join(t.TempDir(), "broken.png")
	g.Generate("Hello", out)

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no file must be written on failure")

	require.NotEmpty(t, rec.lines)
	assert.Contains(t, strings.Join(rec.lines, "\n"), out, "the warning must name the output path")
}

func assertPNGSize(t *testing.T, path string, w, h int) {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, w, img.Bounds().Dx())
	assert.Equal(t, h, img.Bounds().Dy())
}
