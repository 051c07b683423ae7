// © 2024 Gideon Appoh. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE.md file.

/*
Package config loads the site configuration from a Starlark file.

The configuration is code, not data: config.star calls a small set of
predeclared functions to describe the site.

	site(
	    title = "Gideon Appoh",
	    author = "Gideon Appoh",
	    description = "Personal site and blog.",
	    base_url = "https://gideonappoh.dev",
	)

	nav("Home", "/")
	nav("Blog", "/blog")

	social("GitHub", "https://github.com/Tech-Emiretus")

site must be called exactly once and must set a title. nav and social may be
called any number of times; entries keep their call order.
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Site is the evaluated site configuration.
type Site struct {
	// Title is the title of the site.
	Title string
	// Author is the name of the author of the site.
	Author string
	// Description is the default description, used for pages that don't set
	// their own.
	Description string
	// BaseURL is the base URL of the site.
	BaseURL *url.URL
	// OGTemplate is the path to the Open Graph image template, relative to the
	// site source directory.
	OGTemplate string
	// Nav contains the top navigation links in declaration order.
	Nav []Link
	// Social contains the footer social links in declaration order.
	Social []Link
}

// Link is a titled URL, used for navigation and social links.
type Link struct {
	Title string
	URL   string
}

var errSiteMissing = errors.New("config: site(...) was never called")

// Load reads and evaluates a Starlark configuration file.
func Load(path string) (*Site, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, src)
}

// Parse evaluates Starlark configuration source. The filename is used only
// for error messages.
func Parse(filename string, src []byte) (*Site, error) {
	var (
		s      *Site
		navs   []Link
		social []Link
	)

	siteFn := starlark.NewBuiltin("site", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if s != nil {
			return nil, fmt.Errorf("%s: site() called more than once", b.Name())
		}
		var title, author, description, baseURL, ogTemplate string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs,
			"title", &title,
			"author?", &author,
			"description?", &description,
			"base_url?", &baseURL,
			"og_template?", &ogTemplate,
		); err != nil {
			return nil, err
		}
		if title == "" {
			return nil, fmt.Errorf("%s: title must not be empty", b.Name())
		}
		s = &Site{
			Title:       title,
			Author:      author,
			Description: description,
			OGTemplate:  ogTemplate,
		}
		if baseURL != "" {
			u, err := url.Parse(baseURL)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid base_url: %v", b.Name(), err)
			}
			s.BaseURL = u
		}
		return starlark.None, nil
	})

	linkFn := func(name string, dst *[]Link) *starlark.Builtin {
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var title, u string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "title", &title, "url", &u); err != nil {
				return nil, err
			}
			*dst = append(*dst, Link{Title: title, URL: u})
			return starlark.None, nil
		})
	}

	predeclared := starlark.StringDict{
		"site":   siteFn,
		"nav":    linkFn("nav", &navs),
		"social": linkFn("social", &social),
	}

	thread := &starlark.Thread{Name: "config"}
	opts := &syntax.FileOptions{
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
	}
	if _, err := starlark.ExecFileOptions(opts, thread, filename, src, predeclared); err != nil {
		return nil, fmt.Errorf("config: evaluating %s: %w", filename, err)
	}

	if s == nil {
		return nil, errSiteMissing
	}
	s.Nav = navs
	s.Social = social

	return s, nil
}
