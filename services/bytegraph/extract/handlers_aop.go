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
	"math"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
)

// AOP descriptors.
const (
	descAspect         = "Lorg/aspectj/lang/annotation/Aspect;"
	descOrder          = "Lorg/springframework/core/annotation/Order;"
	descBefore         = "Lorg/aspectj/lang/annotation/Before;"
	descAfter          = "Lorg/aspectj/lang/annotation/After;"
	descAround         = "Lorg/aspectj/lang/annotation/Around;"
	descAfterReturning = "Lorg/aspectj/lang/annotation/AfterReturning;"
	descAfterThrowing  = "Lorg/aspectj/lang/annotation/AfterThrowing;"
	descPointcut       = "Lorg/aspectj/lang/annotation/Pointcut;"
)

var adviceTypes = map[string]string{
	descBefore:         "before",
	descAfter:          "after",
	descAround:         "around",
	descAfterReturning: "after_returning",
	descAfterThrowing:  "after_throwing",
	descPointcut:       "pointcut",
}

// aopHandler records aspects, their order and advice methods.
type aopHandler struct{ descriptorSet }

func newAOPHandler() *aopHandler {
	return &aopHandler{newDescriptorSet("aop", PriorityAOP,
		descAspect, descOrder, descBefore, descAfter, descAround, descAfterReturning, descAfterThrowing, descPointcut)}
}

func (h *aopHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	m := &ctx.meta
	switch desc {
	case descAspect:
		m.aspect = true
	case descOrder:
		m.hasOrder = true
		m.order = math.MaxInt32
		return collect(func(a Attrs) {
			if v, ok := a.Int("value"); ok {
				m.order = v
			}
		})
	}
	return nil
}

func (h *aopHandler) HandleMethod(ctx *Context, method *Method, desc string) classfile.AnnotationVisitor {
	advice, ok := adviceTypes[desc]
	if !ok {
		return nil
	}
	mm := &method.meta
	mm.adviceType = advice
	return collect(func(a Attrs) {
		mm.pointcut = a.FirstString("value", "pointcut")
	})
}
