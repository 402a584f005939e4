// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package input resolves analysis requests into the class files to read.
//
// Three input modes are supported: a single class file, every class file
// under a directory, and a package inside a class root. Every path is
// cleaned, made absolute and symlink-resolved before it is checked against
// the allowed roots.
package input

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Mode selects how a request path is interpreted.
type Mode string

const (
	ModeClassFile   Mode = "class-file"
	ModeClassDir    Mode = "class-dir"
	ModePackageRoot Mode = "package-root"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeClassFile, ModeClassDir, ModePackageRoot:
		return true
	}
	return false
}

const classPattern = "**/*.class"

// DefaultExclude lists the class files skipped in directory modes.
var DefaultExclude = []string{"**/module-info.class", "**/package-info.class"}

var (
	// ErrPathNotAllowed is returned for paths outside the allowed roots or
	// paths containing ".." segments.
	ErrPathNotAllowed = errors.New("path not allowed")

	// ErrNoClassFiles is returned when a request resolves to no class file.
	ErrNoClassFiles = errors.New("no class files found")

	// ErrInvalidRequest is returned for an unknown mode, a missing path, or
	// a malformed package name.
	ErrInvalidRequest = errors.New("invalid request")
)

// Request names what to analyze.
type Request struct {
	Mode    Mode   `json:"mode"`
	Path    string `json:"path"`
	Package string `json:"package,omitempty"`
}

// Resolved is the outcome of Resolve.
type Resolved struct {
	Mode Mode

	// Root is the secured directory or file the files were collected from.
	Root string

	// Files are absolute class file paths in lexical order.
	Files []string
}

// Resolver turns requests into class file lists.
//
// Thread Safety:
//
//	Immutable after construction; safe for concurrent use.
type Resolver struct {
	allowedRoots []string
	exclude      []string
	logger       *slog.Logger
}

// NewResolver creates a resolver.
//
// Inputs:
//
//	allowedRoots - Directories requests must stay inside. Empty allows any path.
//	exclude - Doublestar patterns, relative to the scanned directory. Nil
//	  selects DefaultExclude.
//	logger - Nil selects slog.Default().
//
// Outputs:
//
//	*Resolver - The resolver.
//	error - Non-nil if an exclude pattern is invalid or a root cannot be made absolute.
func NewResolver(allowedRoots, exclude []string, logger *slog.Logger) (*Resolver, error) {
	if exclude == nil {
		exclude = DefaultExclude
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	roots := make([]string, 0, len(allowedRoots))
	for _, root := range allowedRoots {
		abs, err := canonical(root)
		if err != nil {
			return nil, fmt.Errorf("allowed root %q: %w", root, err)
		}
		roots = append(roots, abs)
	}
	return &Resolver{allowedRoots: roots, exclude: slices.Clone(exclude), logger: logger}, nil
}

// Resolve validates req and lists its class files.
//
// Outputs:
//
//	*Resolved - The secured root and its files.
//	error - ErrInvalidRequest, ErrPathNotAllowed, ErrNoClassFiles (all
//	  wrapped), a filesystem error, or ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolved, error) {
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}
	if req.Path == "" {
		return nil, fmt.Errorf("%w: path is required", ErrInvalidRequest)
	}

	root, err := r.Secure(req.Path)
	if err != nil {
		return nil, err
	}

	switch req.Mode {
	case ModeClassFile:
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if info.IsDir() || filepath.Ext(root) != ".class" {
			return nil, fmt.Errorf("%w: %s is not a class file", ErrNoClassFiles, req.Path)
		}
		return &Resolved{Mode: req.Mode, Root: root, Files: []string{root}}, nil

	case ModePackageRoot:
		pkgDir, err := packageDir(req.Package)
		if err != nil {
			return nil, err
		}
		if root, err = r.Secure(filepath.Join(root, pkgDir)); err != nil {
			return nil, err
		}
	}

	files, err := r.scan(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoClassFiles, req.Path)
	}
	r.logger.Debug("resolved class files",
		slog.String("mode", string(req.Mode)),
		slog.String("root", root),
		slog.Int("files", len(files)))
	return &Resolved{Mode: req.Mode, Root: root, Files: files}, nil
}

// Secure returns the canonical form of path or ErrPathNotAllowed.
func (r *Resolver) Secure(path string) (string, error) {
	if hasDotDot(path) {
		return "", fmt.Errorf("%w: %q contains '..'", ErrPathNotAllowed, path)
	}
	abs, err := canonical(path)
	if err != nil {
		return "", err
	}
	if !r.Allowed(abs) {
		return "", fmt.Errorf("%w: %s", ErrPathNotAllowed, abs)
	}
	return abs, nil
}

// Allowed reports whether an absolute, canonical path lies inside an
// allowed root.
func (r *Resolver) Allowed(abs string) bool {
	if len(r.allowedRoots) == 0 {
		return true
	}
	for _, root := range r.allowedRoots {
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

// Excluded reports whether a path relative to a scanned directory matches
// an exclude pattern.
func (r *Resolver) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range r.exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// IsClassFile reports whether rel names a class file that is not excluded.
func (r *Resolver) IsClassFile(rel string) bool {
	return filepath.Ext(rel) == ".class" && !r.Excluded(rel)
}

// scan lists the non-excluded class files under dir.
func (r *Resolver) scan(ctx context.Context, dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRequest, dir)
	}

	var files []string
	err = doublestar.GlobWalk(os.DirFS(dir), classPattern, func(rel string, _ fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Excluded(rel) {
			return nil
		}
		files = append(files, filepath.Join(dir, filepath.FromSlash(rel)))
		return nil
	}, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// canonical cleans path, makes it absolute and resolves symlinks.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

func hasDotDot(path string) bool {
	for _, seg := range strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// packageDir converts a dotted package name into a relative directory.
func packageDir(pkg string) (string, error) {
	if pkg == "" {
		return "", fmt.Errorf("%w: package is required in %s mode", ErrInvalidRequest, ModePackageRoot)
	}
	parts := strings.Split(pkg, ".")
	for _, p := range parts {
		if !javaIdentifier(p) {
			return "", fmt.Errorf("%w: malformed package name %q", ErrInvalidRequest, pkg)
		}
	}
	return filepath.Join(parts...), nil
}

func javaIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		case c > 0x7f:
		default:
			return false
		}
	}
	return true
}
