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
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// Dependency injection descriptors.
const (
	descAutowired     = "Lorg/springframework/beans/factory/annotation/Autowired;"
	descQualifier     = "Lorg/springframework/beans/factory/annotation/Qualifier;"
	descValue         = "Lorg/springframework/beans/factory/annotation/Value;"
	descJavaxInject   = "Ljavax/inject/Inject;"
	descJakartaInject = "Ljakarta/inject/Inject;"
	descJavaxNamed    = "Ljavax/inject/Named;"
	descJakartaNamed  = "Ljakarta/inject/Named;"
	descJavaxResource = "Ljavax/annotation/Resource;"
	descJakartaRes    = "Ljakarta/annotation/Resource;"
)

var injectionTypes = map[string]model.InjectionType{
	descAutowired:     model.InjectionAutowired,
	descJavaxInject:   model.InjectionInject,
	descJakartaInject: model.InjectionInject,
	descJavaxResource: model.InjectionResource,
	descJakartaRes:    model.InjectionResource,
	descValue:         model.InjectionValue,
}

// injectionHandler tags fields, methods and parameters with the injection
// mechanism and qualifier. Edges are built from the tags when the field or
// method ends.
type injectionHandler struct{ descriptorSet }

func newInjectionHandler() *injectionHandler {
	return &injectionHandler{newDescriptorSet("dependency_injection", PriorityInjection,
		descAutowired, descQualifier, descValue, descJavaxInject, descJakartaInject,
		descJavaxNamed, descJakartaNamed, descJavaxResource, descJakartaRes)}
}

// injectionTarget points at the tags of the field or method being handled.
type injectionTarget struct {
	injection *model.InjectionType
	qualifier *string
	value     *string
}

func (h *injectionHandler) tag(t injectionTarget, desc string) classfile.AnnotationVisitor {
	if inj, ok := injectionTypes[desc]; ok && *t.injection == "" {
		*t.injection = inj
	}
	switch desc {
	case descQualifier, descJavaxNamed, descJakartaNamed:
		return collect(func(a Attrs) {
			if *t.qualifier == "" {
				*t.qualifier = a.String("value")
			}
		})
	case descJavaxResource, descJakartaRes:
		return collect(func(a Attrs) {
			if *t.qualifier == "" {
				*t.qualifier = a.String("name")
			}
		})
	case descValue:
		return collect(func(a Attrs) {
			*t.value = a.String("value")
		})
	}
	return nil
}

func (h *injectionHandler) HandleField(ctx *Context, f *Field, desc string) classfile.AnnotationVisitor {
	return h.tag(injectionTarget{&f.injection, &f.qualifier, &f.value}, desc)
}

func (h *injectionHandler) HandleMethod(ctx *Context, method *Method, desc string) classfile.AnnotationVisitor {
	var discard string
	return h.tag(injectionTarget{&method.meta.injection, &method.meta.qualifier, &discard}, desc)
}

func (h *injectionHandler) HandleParameter(ctx *Context, method *Method, index int, desc string) classfile.AnnotationVisitor {
	mm := &method.meta
	switch desc {
	case descQualifier, descJavaxNamed, descJakartaNamed:
		return collect(func(a Attrs) {
			if mm.paramQualifiers == nil {
				mm.paramQualifiers = make(map[int]string)
			}
			mm.paramQualifiers[index] = a.String("value")
		})
	case descValue:
		return collect(func(a Attrs) {
			if mm.paramValues == nil {
				mm.paramValues = make(map[int]string)
			}
			mm.paramValues[index] = a.String("value")
		})
	}
	return nil
}
