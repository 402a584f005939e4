// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract turns the structural events of one Java class file into
// symbols and typed edges.
//
// # Pipeline
//
// classfile.Accept drives a ClassVisitor, which creates a Context on the
// class header and hands every annotation to a Registry of handlers. The
// handlers record framework metadata; fields and methods emit membership,
// injection and call edges; finalization turns the collected metadata into
// node attributes in a fixed order.
//
// # Thread Safety
//
// A Registry may be shared by any number of goroutines. Everything else
// belongs to the goroutine analyzing the class file.
package extract

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

var (
	// ErrTraversal indicates callbacks arrived out of the expected order.
	ErrTraversal = errors.New("invalid class traversal")

	// ErrNilRegistry is returned by Analyze without a registry.
	ErrNilRegistry = errors.New("registry must not be nil")
)

// Result is the graph fragment extracted from one class file.
type Result struct {
	Source string
	Nodes  []*model.Symbol
	Edges  []*model.Edge
}

// Class returns the class node, or nil.
func (r *Result) Class() *model.Symbol {
	if r == nil || len(r.Nodes) == 0 {
		return nil
	}
	return r.Nodes[0]
}

// Analyze extracts the nodes and edges of one class file.
//
// Description:
//
//	Parses data with classfile.Accept and runs the visitor pipeline over
//	it. The class node is always the first node of the result.
//
// Inputs:
//
//	source - Identity of the class file, used in logs and errors.
//	data - The class file bytes.
//	registry - Annotation handlers. Must not be nil.
//	logger - Logger. Nil uses slog.Default().
//
// Outputs:
//
//	*Result - The extracted graph fragment. Nil on error.
//	error - Parse errors from classfile, or ErrTraversal.
//
// Thread Safety:
//
//	Safe to call concurrently with a shared registry.
func Analyze(source string, data []byte, registry *Registry, logger *slog.Logger) (*Result, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	v := NewClassVisitor(source, registry, logger)

	err := classfile.Accept(data, v)
	if err == nil {
		err = v.Err()
	}
	if err == nil && v.ctx.state != StateDone {
		err = fmt.Errorf("%w: traversal ended in state %s", ErrTraversal, v.ctx.state)
	}
	if err != nil {
		recordResult(nil, err)
		return nil, fmt.Errorf("analyze %s: %w", source, err)
	}

	r := &Result{Source: source, Nodes: v.ctx.nodes, Edges: v.ctx.edges}
	recordResult(r, nil)
	return r, nil
}
