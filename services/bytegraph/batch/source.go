// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Source is one class file to analyze. When Data is nil the coordinator's
// SourceLoader reads Path.
type Source struct {
	Path string
	Data []byte
}

// Hash returns the xxhash64 of class file bytes.
func Hash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// FileError records a class file that could not be analyzed.
type FileError struct {
	// Source is the path of the file.
	Source string

	// Hash is the xxhash64 of the file bytes; zero if they could not be read.
	Hash uint64

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}
