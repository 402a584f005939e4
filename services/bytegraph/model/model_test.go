// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidKind(t *testing.T) {
	tests := []struct {
		edgeType EdgeType
		kind     string
		want     bool
	}{
		{EdgeTypeMemberOf, KindMethod, true},
		{EdgeTypeMemberOf, "class:autowired", true},
		{EdgeTypeMemberOf, KindClass, true},
		{EdgeTypeMemberOf, "constructor:implicit", true},
		{EdgeTypeMemberOf, "setter:value", true},
		{EdgeTypeMemberOf, KindConstructor, false},
		{EdgeTypeMemberOf, "field:autowired", false},
		{EdgeTypeMemberOf, "class:magic", false},
		{EdgeTypeCalls, KindLambda, true},
		{EdgeTypeCalls, KindExtends, false},
		{EdgeTypeInheritance, KindImplements, true},
		{EdgeType("uses"), KindMethod, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.edgeType)+"/"+tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidKind(tt.edgeType, tt.kind))
		})
	}
}

func TestKindHelpers(t *testing.T) {
	assert.Equal(t, "class", ClassKind(""))
	assert.Equal(t, "class:resource", ClassKind(InjectionResource))
	assert.Equal(t, "constructor:inject", ConstructorKind(InjectionInject))
	assert.Equal(t, "setter:autowired", SetterKind(InjectionAutowired))

	base, inj := SplitKind("constructor:autowired")
	assert.Equal(t, KindConstructor, base)
	assert.Equal(t, InjectionAutowired, inj)

	base, inj = SplitKind(KindReturn)
	assert.Equal(t, KindReturn, base)
	assert.Empty(t, inj)
}

func TestLineNumber_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		A LineNumber `json:"a"`
		B LineNumber `json:"b"`
	}{A: 42, B: LineUnknown})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":42,"b":"unknown"}`, string(data))

	var got struct {
		A LineNumber `json:"a"`
		B LineNumber `json:"b"`
		C LineNumber `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":7,"b":"unknown","c":null}`), &got))
	assert.Equal(t, LineNumber(7), got.A)
	assert.Equal(t, LineUnknown, got.B)
	assert.Equal(t, LineUnknown, got.C)
	assert.Equal(t, "unknown", got.B.String())
	assert.Equal(t, "7", got.A.String())

	var bad LineNumber
	assert.Error(t, json.Unmarshal([]byte(`"seven"`), &bad))
}

func TestSymbolAttributes(t *testing.T) {
	var s Symbol
	_, ok := s.Attr(AttrIsAsync)
	assert.False(t, ok)

	s.SetAttr(AttrIsAsync, true)
	s.SetAttr(AttrAsyncExecutor, "pool")
	assert.True(t, s.BoolAttr(AttrIsAsync))
	assert.Equal(t, "pool", s.StringAttr(AttrAsyncExecutor))
	assert.Empty(t, s.StringAttr(AttrIsAsync))
	assert.False(t, s.BoolAttr(AttrAsyncExecutor))
}

func TestCount(t *testing.T) {
	nodes := []*Symbol{
		{NodeType: NodeTypeClass},
		{NodeType: NodeTypeInterface},
		{NodeType: NodeTypeMethod},
		nil,
	}
	edges := []*Edge{
		{EdgeType: EdgeTypeCalls},
		{EdgeType: EdgeTypeMemberOf},
		nil,
	}
	st := Count(nodes, edges)
	assert.Equal(t, Stats{Classes: 2, Methods: 1, Calls: 1, Edges: 2}, st)

	st.Add(Stats{Classes: 1, Edges: 3})
	assert.Equal(t, Stats{Classes: 3, Methods: 1, Calls: 1, Edges: 5}, st)

	e := Edge{}
	e.SetMeta(MetaBootstrap, "LambdaMetafactory.metafactory")
	assert.Equal(t, "LambdaMetafactory.metafactory", e.Metadata[MetaBootstrap])
	assert.Equal(t, 3, *Index(3))
}
