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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile/classfiletest"
	"github.com/AleutianAI/bytegraph/services/bytegraph/extract"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

func sampleGraph() ([]*model.Symbol, []*model.Edge) {
	svc := &model.Symbol{NodeType: model.NodeTypeClass, FQN: "com.x.Svc", Name: "Svc", LineNumber: model.LineUnknown}
	api := &model.Symbol{NodeType: model.NodeTypeInterface, FQN: "com.x.Api", Name: "Api", LineNumber: model.LineUnknown}
	run := &model.Symbol{NodeType: model.NodeTypeMethod, FQN: "com.x.Svc.run(com.x.A, java.lang.String)", Name: "run", LineNumber: 12}
	bad := &model.Symbol{NodeType: model.NodeTypeMethod, FQN: "noParens", Name: "noParens"}
	orphan := &model.Symbol{NodeType: model.NodeTypeMethod, FQN: "com.x.Gone.m()", Name: "m"}

	nodes := []*model.Symbol{svc, run, bad, api, orphan}

	field := &model.Edge{EdgeType: model.EdgeTypeMemberOf, Kind: model.KindField, FromFQN: "com.x.Svc.repo", ToFQN: "com.x.Svc"}
	field.SetMeta(model.MetaFieldName, "repo")
	field.SetMeta(model.MetaFieldType, "com.x.Repo")
	field.SetMeta(model.MetaIsStatic, "false")
	fieldType := &model.Edge{EdgeType: model.EdgeTypeMemberOf, Kind: model.ClassKind(model.InjectionResource), FromFQN: "com.x.Svc", ToFQN: "com.x.Repo", Qualifier: "mainRepo"}
	fieldType.SetMeta(model.MetaFieldName, "repo")
	setter := &model.Edge{EdgeType: model.EdgeTypeMemberOf, Kind: model.SetterKind(model.InjectionAutowired), FromFQN: "com.x.Svc", ToFQN: "com.x.Clock", ParameterIndex: model.Index(0)}
	setter.SetMeta(model.MetaSetterName, "setClock")
	call := &model.Edge{EdgeType: model.EdgeTypeCalls, Kind: model.KindInvokeInterface, FromFQN: run.FQN, ToFQN: "com.x.UserMapper.selectById(long)", LineNumber: 13}
	call.SetMeta(model.MetaMybatisPlusOperation, "SELECT")

	edges := []*model.Edge{
		{EdgeType: model.EdgeTypeInheritance, Kind: model.KindImplements, FromFQN: "com.x.Svc", ToFQN: "com.x.Api"},
		{EdgeType: model.EdgeTypeMemberOf, Kind: model.KindMethod, FromFQN: run.FQN, ToFQN: "com.x.Svc"},
		{EdgeType: model.EdgeTypeMemberOf, Kind: model.KindArgument, FromFQN: run.FQN, ToFQN: "com.x.A", ParameterIndex: model.Index(0)},
		{EdgeType: model.EdgeTypeMemberOf, Kind: model.KindArgument, FromFQN: run.FQN, ToFQN: "java.lang.String", ParameterIndex: model.Index(1)},
		{EdgeType: model.EdgeTypeMemberOf, Kind: model.KindReturn, FromFQN: run.FQN, ToFQN: "com.x.Out"},
		field,
		fieldType,
		{EdgeType: model.EdgeTypeMemberOf, Kind: model.ConstructorKind(model.InjectionImplicit), FromFQN: "com.x.Svc", ToFQN: "com.x.Repo", ParameterIndex: model.Index(0)},
		setter,
		call,
		{EdgeType: model.EdgeTypeCalls, Kind: model.KindInvokeStatic, FromFQN: "com.x.Unknown.m()", ToFQN: "x.Y.z()"},
	}
	return nodes, edges
}

func TestReshape(t *testing.T) {
	nodes, edges := sampleGraph()
	out := Reshape(nodes, edges)

	require.Len(t, out, 2)
	assert.Equal(t, "com.x.Svc", out[0].FQN)
	assert.Equal(t, "com.x.Api", out[1].FQN)
	assert.Empty(t, out[1].Methods)

	svc := out[0]
	assert.Equal(t, []InheritanceRecord{{Kind: model.KindImplements, Target: "com.x.Api"}}, svc.Inheritance)

	require.Len(t, svc.Methods, 1, "malformed and orphaned methods are skipped")
	run := svc.Methods[0]
	assert.Equal(t, []string{"com.x.A", "java.lang.String"}, run.Arguments)
	assert.Equal(t, "com.x.Out", run.ReturnType)
	require.Len(t, run.Calls, 1)
	assert.Equal(t, "com.x.UserMapper.selectById(long)", run.Calls[0].Target)
	assert.Equal(t, model.LineNumber(13), run.Calls[0].LineNumber)
	assert.Equal(t, "SELECT", run.Calls[0].Metadata[model.MetaMybatisPlusOperation])

	require.Len(t, svc.Fields, 1)
	assert.Equal(t, &FieldRecord{
		Name:          "repo",
		Type:          "com.x.Repo",
		InjectionType: model.InjectionResource,
		Qualifier:     "mainRepo",
	}, svc.Fields[0])

	require.Len(t, svc.ConstructorInjections, 1)
	assert.Equal(t, model.InjectionImplicit, svc.ConstructorInjections[0].InjectionType)
	require.Len(t, svc.SetterInjections, 1)
	assert.Equal(t, "setClock", svc.SetterInjections[0].Setter)
	assert.Equal(t, 0, *svc.SetterInjections[0].ParameterIndex)
}

func TestReshape_Idempotent(t *testing.T) {
	nodes, edges := sampleGraph()
	first := Reshape(nodes, edges)
	second := Reshape(nodes, edges)
	assert.Equal(t, first, second)
}

func TestReshape_RecordsDoNotAliasInput(t *testing.T) {
	nodes, edges := sampleGraph()
	svc, run := nodes[0], nodes[1]
	svc.Modifiers = []string{"public"}
	svc.Interfaces = []string{"com.x.Api"}
	svc.SetAttr(model.AttrSpringBeanName, "svc")
	svc.SetAttr(model.AttrBaseHTTPMethods, []string{"GET"})
	run.Modifiers = []string{"public"}
	run.SetAttr(model.AttrAPIPath, "/run")

	out := Reshape(nodes, edges)
	require.Len(t, out, 2)
	cls := out[0]
	require.Len(t, cls.Methods, 1)
	m := cls.Methods[0]
	require.Len(t, m.Calls, 1)

	cls.Modifiers[0] = "private"
	cls.Interfaces[0] = "com.x.Other"
	cls.Attributes[model.AttrSpringBeanName] = "changed"
	cls.Attributes[model.AttrBaseHTTPMethods].([]string)[0] = "POST"
	m.Modifiers[0] = "private"
	m.Attributes[model.AttrAPIPath] = "/changed"
	m.Calls[0].Metadata[model.MetaMybatisPlusOperation] = "DELETE"

	assert.Equal(t, []string{"public"}, svc.Modifiers)
	assert.Equal(t, []string{"com.x.Api"}, svc.Interfaces)
	assert.Equal(t, "svc", svc.StringAttr(model.AttrSpringBeanName))
	assert.Equal(t, []string{"GET"}, svc.Attributes[model.AttrBaseHTTPMethods])
	assert.Equal(t, []string{"public"}, run.Modifiers)
	assert.Equal(t, "/run", run.StringAttr(model.AttrAPIPath))
	assert.Equal(t, "SELECT", edges[9].Metadata[model.MetaMybatisPlusOperation])
}

func TestReshape_Empty(t *testing.T) {
	out := Reshape(nil, nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestOwnerOf(t *testing.T) {
	tests := []struct {
		fqn   string
		owner string
		ok    bool
	}{
		{"com.x.A.m()", "com.x.A", true},
		{"com.x.A.m(java.lang.String, com.y.B)", "com.x.A", true},
		{"com.x.Outer$Inner.<init>(int)", "com.x.Outer$Inner", true},
		{"A.m()", "A", true},
		{"m()", "", false},
		{"com.x.A.m", "", false},
		{"com.x.A.(int)", "", false},
		{".m()", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.fqn, func(t *testing.T) {
			owner, ok := OwnerOf(tt.fqn)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.owner, owner)
		})
	}
}

func TestReshape_FromBytecode(t *testing.T) {
	c := classfiletest.New("com/x/OrderService").Annotate("Lorg/springframework/stereotype/Service;")
	c.Field(classfile.AccPrivate, "mapper", "Lcom/x/OrderMapper;").
		Annotate("Lorg/springframework/beans/factory/annotation/Autowired;")
	c.Method(classfile.AccPublic, "find", "(J)Lcom/x/Order;").
		Line(30).
		InvokeInterface("com/x/OrderMapper", "selectById", "(J)Lcom/x/Order;").
		Op(classfile.OpReturn)

	r, err := extract.Analyze("OrderService.class", c.Bytes(), extract.DefaultRegistry(), nil)
	require.NoError(t, err)

	out := Reshape(r.Nodes, r.Edges)
	require.Len(t, out, 1)
	cls := out[0]
	assert.Equal(t, "orderService", cls.Attributes[model.AttrSpringBeanName])

	require.Len(t, cls.Fields, 1)
	assert.Equal(t, "com.x.OrderMapper", cls.Fields[0].Type)
	assert.Equal(t, model.InjectionAutowired, cls.Fields[0].InjectionType)

	require.Len(t, cls.Methods, 1)
	find := cls.Methods[0]
	assert.Equal(t, "com.x.Order", find.ReturnType)
	assert.Empty(t, find.Arguments)
	require.Len(t, find.Calls, 1)
	assert.Equal(t, "SELECT", find.Calls[0].Metadata[model.MetaMybatisPlusOperation])
}
