//usr/bin/env go run $0 $@; exit $?

// © 2024 Gideon Appoh. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE.md file.

//go:build ignore

// This program builds the site.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	site "github.com/Tech-Emiretus/gideonappoh.dev"

	"github.com/peterbourgon/ff/v3"
)

func main() {
	log.SetFlags(0)

	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var (
		prodFlag = fs.Bool("prod", false, "Build in a production mode.")
		dstFlag  = fs.String("dst", filepath.Join(".", "build"), "Write the generated site to `dir`.")
		noOGFlag = fs.Bool("no-og", false, "Skip Open Graph image generation.")
	)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: script/build.go [flags]\n")
		fmt.Fprintf(os.Stderr, "Available flags:\n\n")
		fs.PrintDefaults()
	}
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("SITE")); err != nil {
		log.Fatal(err)
	}

	// Check if we are executed from the repo root.
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(wd, "go.mod")); os.IsNotExist(err) {
		log.Fatal("Are you at repo root?")
	} else if err != nil {
		log.Fatal(err)
	}

	c := &site.Config{
		Src:    ".",
		Dst:    *dstFlag,
		Prod:   *prodFlag,
		SkipOG: *noOGFlag,
	}

	if err := site.Build(c); err != nil {
		log.Fatal(err)
	}
}
