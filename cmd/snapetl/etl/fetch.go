// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package etl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter/v2"
	"github.com/matt-FFFFFF/snapetl/internal/ctxlog"
)

// ErrGetConfigFile is returned when the plugin config file cannot be fetched.
var ErrGetConfigFile = errors.New("failed to get plugin config file")

func noCleanup() {}

// fetchConfig returns a local path for the plugin config at url. Existing
// local files are used in place so a relative libpath keeps resolving next to
// them. Anything else is fetched with go-getter into a temporary directory
// that cleanup removes.
func fetchConfig(ctx context.Context, url string) (string, func(), error) {
	if url == "" {
		return "", noCleanup, ErrGetConfigFile
	}

	if fi, err := os.Stat(url); err == nil && !fi.IsDir() {
		return url, noCleanup, nil
	}

	tmpDir, err := os.MkdirTemp("", "snapetl-getter-*")
	if err != nil {
		return "", noCleanup, errors.Join(ErrGetConfigFile, err)
	}

	cleanup := func() {
		os.RemoveAll(tmpDir) //nolint:errcheck
	}

	wd, err := os.Getwd()
	if err != nil {
		cleanup()
		return "", noCleanup, errors.Join(ErrGetConfigFile, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     url,
		Dst:     filepath.Join(tmpDir, "g"),
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	var fileName string
	// Remote sources are fetched as a directory and the file read from there.
	// https://github.com/hashicorp/go-getter/issues/98
	if ok, err := getter.Detect(req, &getter.FileGetter{}); !ok || err != nil {
		if err != nil {
			cleanup()
			return "", noCleanup, errors.Join(ErrGetConfigFile, err)
		}

		var newURL string

		newURL, fileName = splitFileNameFromGetterURL(url)
		if newURL == "" || fileName == "" {
			cleanup()
			return "", noCleanup, fmt.Errorf("%w: invalid URL format: %s", ErrGetConfigFile, url)
		}

		req.Src = newURL
	}

	if fileName == "" {
		req.Src = filepath.Dir(url)
		fileName = filepath.Base(url)
	}

	ctxlog.Debug(ctx, "fetching plugin config", "src", req.Src, "file", fileName)

	res, err := client.Get(ctx, req)
	if err != nil {
		cleanup()
		return "", noCleanup, errors.Join(ErrGetConfigFile, err)
	}

	path := filepath.Join(res.Dst, fileName)
	if _, err := os.Stat(path); err != nil {
		cleanup()
		return "", noCleanup, errors.Join(ErrGetConfigFile, err)
	}

	return path, cleanup, nil
}

const (
	goGetterPathSeparator = "//"
	goGetterRefSeparator  = "?"
	minimumGetterParts    = 3 // scheme, host and path
)

// splitFileNameFromGetterURL splits a go-getter URL into the URL of the
// directory and the file name, keeping any query on the directory URL.
func splitFileNameFromGetterURL(url string) (string, string) {
	var ref string

	parts := strings.Split(url, goGetterPathSeparator)
	if len(parts) < minimumGetterParts {
		return "", ""
	}

	last := parts[len(parts)-1]
	if path, query, ok := strings.Cut(last, goGetterRefSeparator); ok {
		ref = query
		last = path
	}

	if filepath.Clean(last) == filepath.Dir(last) {
		return "", ""
	}

	fileName := filepath.Base(last)

	if dir := filepath.Dir(last); dir == "." {
		parts = parts[:len(parts)-1]
	} else {
		parts[len(parts)-1] = dir
	}

	newURL := strings.Join(parts, goGetterPathSeparator)

	if ref != "" {
		newURL += goGetterRefSeparator + ref
	}

	return newURL, fileName
}
