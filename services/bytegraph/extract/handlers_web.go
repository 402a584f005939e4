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
	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
)

// Spring MVC mapping descriptors.
const (
	descRequestMapping = "Lorg/springframework/web/bind/annotation/RequestMapping;"
	descGetMapping     = "Lorg/springframework/web/bind/annotation/GetMapping;"
	descPostMapping    = "Lorg/springframework/web/bind/annotation/PostMapping;"
	descPutMapping     = "Lorg/springframework/web/bind/annotation/PutMapping;"
	descDeleteMapping  = "Lorg/springframework/web/bind/annotation/DeleteMapping;"
	descPatchMapping   = "Lorg/springframework/web/bind/annotation/PatchMapping;"
)

// HTTPMethodAny is recorded when neither the handler nor its controller
// restricts the HTTP method.
const HTTPMethodAny = "ANY"

var mappingVerbs = map[string]string{
	descGetMapping:    "GET",
	descPostMapping:   "POST",
	descPutMapping:    "PUT",
	descDeleteMapping: "DELETE",
	descPatchMapping:  "PATCH",
}

// requestMappingHandler records controller base paths and handler
// mappings. Only the first element of a multi-path mapping is kept.
type requestMappingHandler struct{ descriptorSet }

func newRequestMappingHandler() *requestMappingHandler {
	return &requestMappingHandler{newDescriptorSet("spring_request_mapping", PriorityWeb,
		descRequestMapping, descGetMapping, descPostMapping, descPutMapping, descDeleteMapping, descPatchMapping)}
}

func (h *requestMappingHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	m := &ctx.meta
	m.hasMapping = true
	return collect(func(a Attrs) {
		if m.basePath == "" {
			m.basePath = a.FirstString("path", "value")
		}
		if len(m.baseMethods) == 0 {
			m.baseMethods = a.Strings("method")
		}
	})
}

func (h *requestMappingHandler) HandleMethod(ctx *Context, method *Method, desc string) classfile.AnnotationVisitor {
	if method.meta.mapping != nil {
		return nil
	}
	mp := &mappingMeta{}
	if verb, ok := mappingVerbs[desc]; ok {
		mp.methods = []string{verb}
	}
	method.meta.mapping = mp
	return collect(func(a Attrs) {
		mp.path = a.FirstString("path", "value")
		if desc == descRequestMapping {
			mp.methods = a.Strings("method")
		}
	})
}
