// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reshape

import (
	"maps"
	"strconv"

	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// router attaches edges to the records built by the first pass.
type router struct {
	classes map[string]*ClassRecord
	methods map[string]*MethodRecord
}

func (r *router) route(e *model.Edge) {
	switch e.EdgeType {
	case model.EdgeTypeInheritance:
		if cls := r.classes[e.FromFQN]; cls != nil {
			cls.Inheritance = append(cls.Inheritance, InheritanceRecord{Kind: e.Kind, Target: e.ToFQN})
		}
	case model.EdgeTypeCalls:
		if m := r.methods[e.FromFQN]; m != nil {
			m.Calls = append(m.Calls, CallRecord{
				Target:     e.ToFQN,
				Kind:       e.Kind,
				LineNumber: e.LineNumber,
				Metadata:   maps.Clone(e.Metadata),
			})
		}
	case model.EdgeTypeMemberOf:
		r.routeMember(e)
	}
}

func (r *router) routeMember(e *model.Edge) {
	base, inj := model.SplitKind(e.Kind)
	switch base {
	case model.KindReturn:
		if m := r.methods[e.FromFQN]; m != nil {
			m.ReturnType = e.ToFQN
		}
	case model.KindArgument:
		if m := r.methods[e.FromFQN]; m != nil {
			m.Arguments = append(m.Arguments, e.ToFQN)
		}
	case model.KindField:
		cls := r.classes[e.ToFQN]
		if cls == nil {
			return
		}
		static, _ := strconv.ParseBool(e.Metadata[model.MetaIsStatic])
		f := cls.field(e.Metadata[model.MetaFieldName])
		f.Type = e.Metadata[model.MetaFieldType]
		f.IsStatic = static
	case model.KindClass:
		cls := r.classes[e.FromFQN]
		if cls == nil {
			return
		}
		f := cls.field(e.Metadata[model.MetaFieldName])
		if f.Type == "" {
			f.Type = e.ToFQN
		}
		f.InjectionType = inj
		f.Qualifier = e.Qualifier
		f.ValueExpression = e.Metadata[model.MetaValueExpression]
	case model.KindConstructor:
		if cls := r.classes[e.FromFQN]; cls != nil {
			cls.ConstructorInjections = append(cls.ConstructorInjections, injection(e, inj))
		}
	case model.KindSetter:
		if cls := r.classes[e.FromFQN]; cls != nil {
			cls.SetterInjections = append(cls.SetterInjections, injection(e, inj))
		}
	}
}

// field returns the record for name, appending one on first use.
func (c *ClassRecord) field(name string) *FieldRecord {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	f := &FieldRecord{Name: name}
	c.Fields = append(c.Fields, f)
	return f
}

func injection(e *model.Edge, inj model.InjectionType) InjectionRecord {
	rec := InjectionRecord{
		Type:            e.ToFQN,
		InjectionType:   inj,
		Qualifier:       e.Qualifier,
		Setter:          e.Metadata[model.MetaSetterName],
		ValueExpression: e.Metadata[model.MetaValueExpression],
	}
	if e.ParameterIndex != nil {
		rec.ParameterIndex = model.Index(*e.ParameterIndex)
	}
	return rec
}
