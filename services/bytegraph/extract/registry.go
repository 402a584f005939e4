// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"sort"
	"sync"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
)

// Handler interprets one family of annotations.
//
// Description:
//
//	A handler declares the descriptors it understands through CanHandle and
//	the levels it supports by implementing ClassHandler, MethodHandler,
//	FieldHandler and/or ParameterHandler. One handler may serve several
//	levels.
type Handler interface {
	// Name identifies the handler in logs.
	Name() string

	// Priority orders handlers; higher is consulted first.
	Priority() int

	// CanHandle reports whether desc ("Lorg/x/Ann;") belongs to the handler.
	CanHandle(desc string) bool
}

// ClassHandler handles class-level annotations.
//
// The returned visitor, if non-nil, receives the annotation's element
// values.
type ClassHandler interface {
	Handler
	HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor
}

// MethodHandler handles method-level annotations.
type MethodHandler interface {
	Handler
	HandleMethod(ctx *Context, m *Method, desc string) classfile.AnnotationVisitor
}

// FieldHandler handles field-level annotations.
type FieldHandler interface {
	Handler
	HandleField(ctx *Context, f *Field, desc string) classfile.AnnotationVisitor
}

// ParameterHandler handles annotations on method parameters.
type ParameterHandler interface {
	Handler
	HandleParameter(ctx *Context, m *Method, index int, desc string) classfile.AnnotationVisitor
}

// Registry is a priority-ordered collection of annotation handlers.
//
// Description:
//
//	Handlers are kept sorted by descending priority. Equal priorities keep
//	registration order. Each Dispatch method scans linearly for the first
//	handler that supports the call site's level and accepts the descriptor.
//
// Thread Safety:
//
//	Safe for concurrent use. Dispatch takes a read lock; Register takes the
//	write lock. Handlers must themselves be stateless, since one registry
//	serves every worker of a batch.
type Registry struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewRegistry creates a registry holding handlers in priority order.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds h after every handler with a priority >= h.Priority().
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := h.Priority()
	i := sort.Search(len(r.handlers), func(i int) bool {
		return r.handlers[i].Priority() < p
	})
	r.handlers = append(r.handlers, nil)
	copy(r.handlers[i+1:], r.handlers[i:])
	r.handlers[i] = h
}

// Handlers returns a snapshot of the handlers in dispatch order.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// DispatchClass runs the first class-level handler accepting desc.
//
// Outputs:
//
//	classfile.AnnotationVisitor - The handler's attribute visitor. May be nil
//	  even when a handler matched.
//	bool - True if a handler matched.
func (r *Registry) DispatchClass(desc string, ctx *Context) (classfile.AnnotationVisitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if ch, ok := h.(ClassHandler); ok && h.CanHandle(desc) {
			return ch.HandleClass(ctx, desc), true
		}
	}
	return nil, false
}

// DispatchMethod runs the first method-level handler accepting desc.
func (r *Registry) DispatchMethod(desc string, ctx *Context, m *Method) (classfile.AnnotationVisitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if mh, ok := h.(MethodHandler); ok && h.CanHandle(desc) {
			return mh.HandleMethod(ctx, m, desc), true
		}
	}
	return nil, false
}

// DispatchField runs the first field-level handler accepting desc.
func (r *Registry) DispatchField(desc string, ctx *Context, f *Field) (classfile.AnnotationVisitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if fh, ok := h.(FieldHandler); ok && h.CanHandle(desc) {
			return fh.HandleField(ctx, f, desc), true
		}
	}
	return nil, false
}

// DispatchParameter runs the first parameter-level handler accepting desc.
func (r *Registry) DispatchParameter(desc string, ctx *Context, m *Method, index int) (classfile.AnnotationVisitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handlers {
		if ph, ok := h.(ParameterHandler); ok && h.CanHandle(desc) {
			return ph.HandleParameter(ctx, m, index, desc), true
		}
	}
	return nil, false
}

// descriptorSet is the shared Name/Priority/CanHandle implementation of the
// built-in handlers: a closed set of descriptors.
type descriptorSet struct {
	name     string
	priority int
	descs    map[string]bool
}

func newDescriptorSet(name string, priority int, descs ...string) descriptorSet {
	s := descriptorSet{name: name, priority: priority, descs: make(map[string]bool, len(descs))}
	for _, d := range descs {
		s.descs[d] = true
	}
	return s
}

func (s descriptorSet) Name() string               { return s.name }
func (s descriptorSet) Priority() int              { return s.priority }
func (s descriptorSet) CanHandle(desc string) bool { return s.descs[desc] }

// Descriptors returns the handled descriptors, sorted.
func (s descriptorSet) Descriptors() []string {
	out := make([]string, 0, len(s.descs))
	for d := range s.descs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
