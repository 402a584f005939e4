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
	"strconv"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/descriptor"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// VisitField emits the field membership edge and returns a visitor for
// the field's annotations.
func (v *ClassVisitor) VisitField(access classfile.Access, name, desc string, value any) classfile.FieldVisitor {
	c := v.ctx
	if !c.enterVisiting("field") {
		return nil
	}
	f := &Field{
		name:     name,
		typeName: descriptor.TypeName(desc),
		static:   access.Has(classfile.AccStatic),
	}

	e := &model.Edge{
		EdgeType:   model.EdgeTypeMemberOf,
		Kind:       model.KindField,
		FromFQN:    c.class.FQN + "." + name,
		ToFQN:      c.class.FQN,
		LineNumber: model.LineUnknown,
	}
	e.SetMeta(model.MetaFieldName, name)
	e.SetMeta(model.MetaFieldType, f.typeName)
	e.SetMeta(model.MetaIsStatic, strconv.FormatBool(f.static))
	c.addEdge(e)

	return &fieldVisitor{registry: v.registry, ctx: c, field: f}
}

// fieldVisitor collects a field's annotations and emits the field type
// edge once the injection tags are known.
type fieldVisitor struct {
	registry *Registry
	ctx      *Context
	field    *Field
}

func (fv *fieldVisitor) VisitAnnotation(desc string, visible bool) classfile.AnnotationVisitor {
	if !fv.ctx.inTraversal("field annotation") {
		return nil
	}
	av, _ := fv.registry.DispatchField(desc, fv.ctx, fv.field)
	return av
}

func (fv *fieldVisitor) VisitEnd() {
	c := fv.ctx
	if !c.inTraversal("field end") {
		return
	}
	f := fv.field
	if descriptor.IsPrimitive(f.typeName) || isMalformed(f.typeName) {
		return
	}
	e := c.typeEdge(model.ClassKind(f.injection), c.class.FQN, descriptor.ElementType(f.typeName), model.LineUnknown)
	if e == nil {
		return
	}
	e.Qualifier = f.qualifier
	e.SetMeta(model.MetaFieldName, f.name)
	if f.value != "" {
		e.SetMeta(model.MetaValueExpression, f.value)
	}
}
