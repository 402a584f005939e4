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
	"sync"
	"testing"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
)

// stubHandler records which level dispatched to it.
type stubHandler struct {
	descriptorSet
	calls []string
}

func (h *stubHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	h.calls = append(h.calls, "class:"+desc)
	return nil
}

// methodOnly supports method annotations only.
type methodOnly struct{ descriptorSet }

func (h *methodOnly) HandleMethod(ctx *Context, m *Method, desc string) classfile.AnnotationVisitor {
	return nil
}

func TestRegistry_PriorityOrder(t *testing.T) {
	low := &stubHandler{descriptorSet: newDescriptorSet("low", 10, "LA;")}
	midA := &stubHandler{descriptorSet: newDescriptorSet("mid-a", 50, "LA;")}
	midB := &stubHandler{descriptorSet: newDescriptorSet("mid-b", 50, "LA;")}
	high := &stubHandler{descriptorSet: newDescriptorSet("high", 100, "LB;")}

	r := NewRegistry(low, midA, high, midB)

	var names []string
	for _, h := range r.Handlers() {
		names = append(names, h.Name())
	}
	want := []string{"high", "mid-a", "mid-b", "low"}
	if len(names) != len(want) {
		t.Fatalf("Handlers() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Handlers()[%d] = %s, want %s", i, names[i], want[i])
		}
	}

	ctx := newContext("x", nil)
	if _, ok := r.DispatchClass("LA;", ctx); !ok {
		t.Fatal("DispatchClass(LA;) did not match")
	}
	if len(midA.calls) != 1 || len(midB.calls) != 0 || len(low.calls) != 0 {
		t.Errorf("tie not broken by registration order: midA=%v midB=%v low=%v", midA.calls, midB.calls, low.calls)
	}
	if _, ok := r.DispatchClass("LUnknown;", ctx); ok {
		t.Error("DispatchClass matched an unknown descriptor")
	}
}

func TestRegistry_LevelCapabilities(t *testing.T) {
	m := &methodOnly{newDescriptorSet("method-only", 200, "LA;")}
	c := &stubHandler{descriptorSet: newDescriptorSet("class", 1, "LA;")}
	r := NewRegistry(m, c)
	ctx := newContext("x", nil)

	if _, ok := r.DispatchClass("LA;", ctx); !ok || len(c.calls) != 1 {
		t.Errorf("class dispatch should skip the method-only handler, calls=%v", c.calls)
	}
	if _, ok := r.DispatchMethod("LA;", ctx, &Method{}); !ok {
		t.Error("DispatchMethod(LA;) did not match")
	}
	if _, ok := r.DispatchField("LA;", ctx, &Field{}); ok {
		t.Error("DispatchField matched without a field handler")
	}
}

// TestRegistry_ConcurrentDispatch is meant for -race.
func TestRegistry_ConcurrentDispatch(t *testing.T) {
	r := DefaultRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := newContext("x", nil)
			for j := 0; j < 100; j++ {
				r.DispatchClass(descService, ctx)
			}
		}()
	}
	wg.Wait()
}

func TestDefaultRegistry_CoversBuiltinDescriptors(t *testing.T) {
	r := DefaultRegistry()
	if r.Len() != len(BuiltinHandlers()) {
		t.Fatalf("Len() = %d, want %d", r.Len(), len(BuiltinHandlers()))
	}

	seen := make(map[string]string)
	for _, h := range r.Handlers() {
		ds, ok := h.(interface{ Descriptors() []string })
		if !ok {
			t.Fatalf("handler %s does not expose its descriptors", h.Name())
		}
		for _, d := range ds.Descriptors() {
			if other, dup := seen[d]; dup {
				t.Errorf("%s is claimed by both %s and %s", d, other, h.Name())
			}
			seen[d] = h.Name()
		}
	}
	for _, d := range []string{descService, descAutowired, descGetMapping, descSpringTransactional, descAround, descSelect, descJakartaEntity, descKafkaListener} {
		if _, ok := seen[d]; !ok {
			t.Errorf("no built-in handler for %s", d)
		}
	}
}
