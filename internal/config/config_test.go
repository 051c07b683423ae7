// © 2024 Gideon Appoh. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE.md file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	const src = `
site(
    title = "Gideon Appoh",
    author = "Gideon Appoh",
    description = "Personal site and blog.",
    base_url = "https://gideonappoh.dev",
)

nav("Home", "/")
nav("Blog", "/blog")

social("GitHub", "https://github.com/Tech-Emiretus")
`

	s, err := Parse("config.star", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "Gideon Appoh", s.Title)
	assert.Equal(t, "Gideon Appoh", s.Author)
	assert.Equal(t, "Personal site and blog.", s.Description)
	require.NotNil(t, s.BaseURL)
	assert.Equal(t, "gideonappoh.dev", s.BaseURL.Host)
	assert.Equal(t, []Link{{"Home", "/"}, {"Blog", "/blog"}}, s.Nav)
	assert.Equal(t, []Link{{"GitHub", "https://github.com/Tech-Emiretus"}}, s.Social)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"site never called": `nav("Home", "/")`,
		"site called twice": `
site(title = "One")
site(title = "Two")
`,
		"empty title":     `site(title = "")`,
		"unknown builtin": `theme("dark")`,
		"syntax error":    `site(title = `,
	}

	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("config.star", []byte(src))
			assert.Error(t, err)
		})
	}
}

func TestParseConfigIsCode(t *testing.T) {
	// Configuration is a Starlark program, so loops and conditionals work.
	const src = `
site(title = "Gideon Appoh")

sections = ["Home", "Blog", "About"]
for s in sections:
    nav(s, "/" if s == "Home" else "/" + s.lower())
`

	s, err := Parse("config.star", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, []Link{{"Home", "/"}, {"Blog", "/blog"}, {"About", "/about"}}, s.Nav)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.star")
	require.NoError(t, os.WriteFile(path, []byte(`site(title = "T")`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "T", s.Title)

	_, err = Load(filepath.Join(t.TempDir(), "missing.star"))
	assert.True(t, os.IsNotExist(err))
}
