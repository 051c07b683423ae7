//usr/bin/env go run $0 $@; exit $?

// © 2024 Gideon Appoh. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE.md file.

//go:build ignore

// This program serves the site, rebuilding it on changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	site "github.com/Tech-Emiretus/gideonappoh.dev"

	"github.com/peterbourgon/ff/v3"
)

func main() {
	log.SetFlags(0)

	fs := flag.NewFlagSet("server", flag.ExitOnError)
	var (
		listenFlag = fs.String("listen", "localhost:3000", "Listen on `host:port`.")
		dstFlag    = fs.String("dst", filepath.Join(".", "build"), "Write the generated site to `dir`.")
	)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: script/server.go [flags]\n")
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
		Src: ".",
		Dst: *dstFlag,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := site.Serve(ctx, c, *listenFlag); err != nil {
		log.Fatal(err)
	}
}
