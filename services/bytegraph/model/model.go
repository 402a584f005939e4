// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the symbol-and-dependency graph extracted from class
// files: symbols (classes, interfaces, enums, methods) and the typed edges
// connecting them.
//
// # Vocabularies
//
// Edge kinds form a closed vocabulary. Every edge produced by the extractor
// has an EdgeType and a Kind drawn from the constants in this package;
// ValidKind reports whether a pair is part of the vocabulary.
//
// # Ownership Model
//
// Symbols and edges are plain values. The extractor builds them inside a
// per-class context and hands them to the caller once the class traversal is
// finished; after that they are treated as immutable.
package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NodeType identifies the variant of a Symbol.
type NodeType string

const (
	NodeTypeClass     NodeType = "class"
	NodeTypeInterface NodeType = "interface"
	NodeTypeEnum      NodeType = "enum"
	NodeTypeMethod    NodeType = "method"
)

// IsClassLike reports whether the node type starts a class record.
func (t NodeType) IsClassLike() bool {
	return t == NodeTypeClass || t == NodeTypeInterface || t == NodeTypeEnum
}

// EdgeType is the top-level tag of an Edge.
type EdgeType string

const (
	EdgeTypeMemberOf    EdgeType = "member_of"
	EdgeTypeCalls       EdgeType = "calls"
	EdgeTypeInheritance EdgeType = "inheritance"
)

// MemberOf kinds.
const (
	KindMethod   = "method"
	KindField    = "field"
	KindReturn   = "return"
	KindArgument = "argument"
	KindClass    = "class"

	// Base kinds of injection edges; the full kind carries the injection
	// type ("constructor:autowired").
	KindConstructor = "constructor"
	KindSetter      = "setter"
)

// Calls kinds.
const (
	KindInvokeVirtual   = "invokevirtual"
	KindInvokeStatic    = "invokestatic"
	KindInvokeInterface = "invokeinterface"
	KindInvokeSpecial   = "invokespecial"
	KindNew             = "new"
	KindInvokeDynamic   = "invokedynamic"
	KindLambda          = "lambda"
	KindMethodReference = "method_reference"
)

// Inheritance kinds.
const (
	KindExtends    = "extends"
	KindImplements = "implements"
)

// InjectionType tags a dependency-injection edge with the mechanism that
// requested the dependency.
type InjectionType string

const (
	InjectionAutowired InjectionType = "autowired"
	InjectionInject    InjectionType = "inject"
	InjectionResource  InjectionType = "resource"
	InjectionValue     InjectionType = "value"
	InjectionImplicit  InjectionType = "implicit"
)

var injectionTypes = map[InjectionType]bool{
	InjectionAutowired: true,
	InjectionInject:    true,
	InjectionResource:  true,
	InjectionValue:     true,
	InjectionImplicit:  true,
}

// ClassKind returns "class" or "class:<injection>" for field-type edges.
func ClassKind(inj InjectionType) string {
	if inj == "" {
		return KindClass
	}
	return KindClass + ":" + string(inj)
}

// ConstructorKind returns "constructor:<injection>".
func ConstructorKind(inj InjectionType) string {
	return KindConstructor + ":" + string(inj)
}

// SetterKind returns "setter:<injection>".
func SetterKind(inj InjectionType) string {
	return KindSetter + ":" + string(inj)
}

// SplitKind splits "constructor:autowired" into ("constructor", "autowired").
// Kinds without a qualifier return an empty injection type.
func SplitKind(kind string) (string, InjectionType) {
	base, inj, found := strings.Cut(kind, ":")
	if !found {
		return kind, ""
	}
	return base, InjectionType(inj)
}

// ValidKind reports whether kind belongs to the closed vocabulary of edgeType.
func ValidKind(edgeType EdgeType, kind string) bool {
	switch edgeType {
	case EdgeTypeMemberOf:
		base, inj := SplitKind(kind)
		switch base {
		case KindMethod, KindField, KindReturn, KindArgument:
			return inj == ""
		case KindClass:
			return inj == "" || injectionTypes[inj]
		case KindConstructor, KindSetter:
			return injectionTypes[inj]
		}
	case EdgeTypeCalls:
		switch kind {
		case KindInvokeVirtual, KindInvokeStatic, KindInvokeInterface, KindInvokeSpecial,
			KindNew, KindInvokeDynamic, KindLambda, KindMethodReference:
			return true
		}
	case EdgeTypeInheritance:
		return kind == KindExtends || kind == KindImplements
	}
	return false
}

// LineUnknown is the sentinel for a symbol or edge without line information.
const LineUnknown LineNumber = -1

// LineNumber is a source line. It serializes as a number, or as the string
// "unknown" when no LineNumberTable entry was seen.
type LineNumber int

// Known reports whether the line number was recorded.
func (l LineNumber) Known() bool {
	return l >= 0
}

// String returns the decimal line or "unknown".
func (l LineNumber) String() string {
	if !l.Known() {
		return "unknown"
	}
	return strconv.Itoa(int(l))
}

// MarshalJSON implements json.Marshaler.
func (l LineNumber) MarshalJSON() ([]byte, error) {
	if !l.Known() {
		return []byte(`"unknown"`), nil
	}
	return []byte(strconv.Itoa(int(l))), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *LineNumber) UnmarshalJSON(data []byte) error {
	if string(data) == `"unknown"` || string(data) == "null" {
		*l = LineUnknown
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = LineNumber(n)
	return nil
}

// Symbol is a graph node: a class-like type or a method.
//
// Class-only fields (SuperClass, Interfaces, IsAbstract, IsFinal, IsEntity)
// are zero for methods; method-only fields (Descriptor, ParameterTypes,
// ReturnType, IsConstructor) are zero for classes. LineNumber is meaningful
// for methods only and is LineUnknown for classes.
type Symbol struct {
	NodeType  NodeType `json:"node_type"`
	FQN       string   `json:"fqn"`
	Name      string   `json:"name"`
	Modifiers []string `json:"modifiers,omitempty"`

	SuperClass string   `json:"super_class,omitempty"`
	Interfaces []string `json:"interfaces,omitempty"`
	IsAbstract bool     `json:"is_abstract,omitempty"`
	IsFinal    bool     `json:"is_final,omitempty"`
	IsEntity   bool     `json:"is_entity,omitempty"`

	Descriptor     string     `json:"descriptor,omitempty"`
	ParameterTypes []string   `json:"parameter_types,omitempty"`
	ReturnType     string     `json:"return_type,omitempty"`
	LineNumber     LineNumber `json:"line_number"`
	IsConstructor  bool       `json:"is_constructor,omitempty"`

	// Attributes holds framework metadata contributed by annotation handlers
	// and heuristics. Values are strings, bools, ints, or string slices.
	Attributes map[string]any `json:"attributes,omitempty"`
}

// SetAttr stores a framework attribute, allocating the map on first use.
func (s *Symbol) SetAttr(key string, value any) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]any)
	}
	s.Attributes[key] = value
}

// Attr returns a framework attribute.
func (s *Symbol) Attr(key string) (any, bool) {
	v, ok := s.Attributes[key]
	return v, ok
}

// StringAttr returns a string attribute or "".
func (s *Symbol) StringAttr(key string) string {
	v, _ := s.Attributes[key].(string)
	return v
}

// BoolAttr returns a bool attribute or false.
func (s *Symbol) BoolAttr(key string) bool {
	v, _ := s.Attributes[key].(bool)
	return v
}

// Edge is a typed relationship between two fully-qualified names.
type Edge struct {
	EdgeType       EdgeType          `json:"edge_type"`
	Kind           string            `json:"kind"`
	FromFQN        string            `json:"from_fqn"`
	ToFQN          string            `json:"to_fqn"`
	Qualifier      string            `json:"qualifier,omitempty"`
	ParameterIndex *int              `json:"parameter_index,omitempty"`
	LineNumber     LineNumber        `json:"line_number"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// SetMeta stores an edge metadata entry, allocating the map on first use.
func (e *Edge) SetMeta(key, value string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
}

// Index returns a pointer to i, for Edge.ParameterIndex.
func Index(i int) *int {
	return &i
}

// Stats are cumulative counts over a set of symbols and edges.
type Stats struct {
	Classes int `json:"classes"`
	Methods int `json:"methods"`
	Calls   int `json:"calls"`
	Edges   int `json:"edges"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Classes += other.Classes
	s.Methods += other.Methods
	s.Calls += other.Calls
	s.Edges += other.Edges
}

// Count computes Stats for a node and edge list.
func Count(nodes []*Symbol, edges []*Edge) Stats {
	var st Stats
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.NodeType.IsClassLike() {
			st.Classes++
		} else if n.NodeType == NodeTypeMethod {
			st.Methods++
		}
	}
	for _, e := range edges {
		if e == nil {
			continue
		}
		st.Edges++
		if e.EdgeType == EdgeTypeCalls {
			st.Calls++
		}
	}
	return st
}
