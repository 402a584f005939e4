// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reshape groups the flat node and edge lists of an analysis into
// one nested record per class.
package reshape

import (
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// ClassRecord is one class, interface or enum with everything attached to
// it.
type ClassRecord struct {
	FQN        string         `json:"fqn"`
	NodeType   model.NodeType `json:"node_type"`
	Name       string         `json:"name"`
	Modifiers  []string       `json:"modifiers,omitempty"`
	SuperClass string         `json:"super_class,omitempty"`
	Interfaces []string       `json:"interfaces,omitempty"`
	IsAbstract bool           `json:"is_abstract,omitempty"`
	IsFinal    bool           `json:"is_final,omitempty"`
	IsEntity   bool           `json:"is_entity,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`

	Methods               []*MethodRecord     `json:"methods"`
	Fields                []*FieldRecord      `json:"fields"`
	Inheritance           []InheritanceRecord `json:"inheritance"`
	ConstructorInjections []InjectionRecord   `json:"constructorInjections"`
	SetterInjections      []InjectionRecord   `json:"setterInjections"`
}

// MethodRecord is one method of a class.
type MethodRecord struct {
	FQN           string           `json:"fqn"`
	Name          string           `json:"name"`
	Descriptor    string           `json:"descriptor,omitempty"`
	Modifiers     []string         `json:"modifiers,omitempty"`
	LineNumber    model.LineNumber `json:"line_number"`
	IsConstructor bool             `json:"is_constructor,omitempty"`
	Attributes    map[string]any   `json:"attributes,omitempty"`

	Arguments  []string     `json:"arguments"`
	ReturnType string       `json:"returnType,omitempty"`
	Calls      []CallRecord `json:"calls"`
}

// FieldRecord is one field of a class.
type FieldRecord struct {
	Name            string              `json:"name"`
	Type            string              `json:"type"`
	IsStatic        bool                `json:"is_static,omitempty"`
	InjectionType   model.InjectionType `json:"injection_type,omitempty"`
	Qualifier       string              `json:"qualifier,omitempty"`
	ValueExpression string              `json:"value_expression,omitempty"`
}

// InheritanceRecord is an extends or implements relationship.
type InheritanceRecord struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

// CallRecord is one call made by a method.
type CallRecord struct {
	Target     string            `json:"target"`
	Kind       string            `json:"kind"`
	LineNumber model.LineNumber  `json:"line_number"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// InjectionRecord is a constructor or setter injection point.
type InjectionRecord struct {
	Type            string              `json:"type"`
	InjectionType   model.InjectionType `json:"injection_type"`
	Qualifier       string              `json:"qualifier,omitempty"`
	ParameterIndex  *int                `json:"parameter_index,omitempty"`
	Setter          string              `json:"setter,omitempty"`
	ValueExpression string              `json:"value_expression,omitempty"`
}

// Option configures Reshape.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for skipped nodes. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Reshape groups nodes and edges by class.
//
// Description:
//
//	The first pass creates a record for every class-like node, in node
//	order, and attaches method nodes to the class named by the part of
//	their fqn before the last "." that precedes "(". The second pass
//	routes edges: inheritance edges to the class, calls to the calling
//	method, and member_of edges by kind.
//
//	Malformed method fqns and methods whose class is absent are skipped
//	and logged. Inputs are not modified, so calling Reshape twice on the
//	same lists yields equal output.
//
// Inputs:
//
//	nodes - Nodes of one or more analyzed class files.
//	edges - Edges of the same files.
//
// Outputs:
//
//	[]*ClassRecord - One record per class-like node, in first-seen order.
//	  Never nil.
func Reshape(nodes []*model.Symbol, edges []*model.Edge, opts ...Option) []*ClassRecord {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	out := make([]*ClassRecord, 0)
	classes := make(map[string]*ClassRecord)
	methods := make(map[string]*MethodRecord)

	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.NodeType.IsClassLike() {
			if _, dup := classes[n.FQN]; dup {
				continue
			}
			rec := newClassRecord(n)
			classes[n.FQN] = rec
			out = append(out, rec)
		}
	}

	for _, n := range nodes {
		if n == nil || n.NodeType != model.NodeTypeMethod {
			continue
		}
		owner, ok := OwnerOf(n.FQN)
		if !ok {
			o.logger.Warn("skipping method with malformed fqn", slog.String("fqn", n.FQN))
			continue
		}
		cls, ok := classes[owner]
		if !ok {
			o.logger.Debug("skipping method without class", slog.String("fqn", n.FQN))
			continue
		}
		if _, dup := methods[n.FQN]; dup {
			continue
		}
		rec := newMethodRecord(n)
		methods[n.FQN] = rec
		cls.Methods = append(cls.Methods, rec)
	}

	r := router{classes: classes, methods: methods}
	for _, e := range edges {
		if e != nil {
			r.route(e)
		}
	}
	return out
}

// OwnerOf returns the class part of a method fqn: everything before the
// last "." that precedes the parameter list.
func OwnerOf(methodFQN string) (string, bool) {
	paren := strings.IndexByte(methodFQN, '(')
	if paren <= 0 {
		return "", false
	}
	dot := strings.LastIndexByte(methodFQN[:paren], '.')
	if dot <= 0 || dot == paren-1 {
		return "", false
	}
	return methodFQN[:dot], true
}

func newClassRecord(n *model.Symbol) *ClassRecord {
	return &ClassRecord{
		FQN:                   n.FQN,
		NodeType:              n.NodeType,
		Name:                  n.Name,
		Modifiers:             slices.Clone(n.Modifiers),
		SuperClass:            n.SuperClass,
		Interfaces:            slices.Clone(n.Interfaces),
		IsAbstract:            n.IsAbstract,
		IsFinal:               n.IsFinal,
		IsEntity:              n.IsEntity,
		Attributes:            cloneAttributes(n.Attributes),
		Methods:               []*MethodRecord{},
		Fields:                []*FieldRecord{},
		Inheritance:           []InheritanceRecord{},
		ConstructorInjections: []InjectionRecord{},
		SetterInjections:      []InjectionRecord{},
	}
}

func newMethodRecord(n *model.Symbol) *MethodRecord {
	return &MethodRecord{
		FQN:           n.FQN,
		Name:          n.Name,
		Descriptor:    n.Descriptor,
		Modifiers:     slices.Clone(n.Modifiers),
		LineNumber:    n.LineNumber,
		IsConstructor: n.IsConstructor,
		Attributes:    cloneAttributes(n.Attributes),
		Arguments:     []string{},
		Calls:         []CallRecord{},
	}
}

// cloneAttributes copies an attribute map, including string slice values,
// so records never alias the analysis result.
func cloneAttributes(attrs map[string]any) map[string]any {
	out := maps.Clone(attrs)
	for k, v := range out {
		if ss, ok := v.([]string); ok {
			out[k] = slices.Clone(ss)
		}
	}
	return out
}
