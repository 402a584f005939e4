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
	"log/slog"
	"strings"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/descriptor"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// VisitMethod emits the method node with its membership, return and
// argument edges and returns a visitor for the method's annotations and
// instructions.
//
// A malformed descriptor still yields a node, with the fallback signature
// "(<malformed:DESC>)"; its return and argument edges are skipped.
func (v *ClassVisitor) VisitMethod(access classfile.Access, name, desc string, exceptions []string) classfile.MethodVisitor {
	c := v.ctx
	if !c.enterVisiting("method") {
		return nil
	}

	params, ret, err := descriptor.ParseMethod(desc)
	malformed := err != nil
	signature := descriptor.FormatSignature(params)
	if malformed {
		signature = descriptor.Signature(desc)
		ret = descriptor.Malformed(desc)
		c.logger.Debug("malformed method descriptor",
			slog.String("source", c.source),
			slog.String("method", name),
			slog.String("descriptor", desc))
	}

	sym := &model.Symbol{
		NodeType:       model.NodeTypeMethod,
		FQN:            c.class.FQN + "." + name + signature,
		Name:           name,
		Modifiers:      access.Modifiers(classfile.ContextMethod),
		Descriptor:     desc,
		ParameterTypes: params,
		ReturnType:     ret,
		LineNumber:     model.LineUnknown,
		IsConstructor:  name == "<init>",
	}
	m := &Method{sym: sym, access: access, name: name, desc: desc, params: params}
	c.addNode(sym)
	if m.IsConstructor() {
		c.constructors = append(c.constructors, m)
	}

	c.addEdge(&model.Edge{
		EdgeType:   model.EdgeTypeMemberOf,
		Kind:       model.KindMethod,
		FromFQN:    sym.FQN,
		ToFQN:      c.class.FQN,
		LineNumber: model.LineUnknown,
	})
	if !malformed {
		c.typeEdge(model.KindReturn, sym.FQN, descriptor.ElementType(ret), model.LineUnknown)
		for i, p := range params {
			if e := c.typeEdge(model.KindArgument, sym.FQN, descriptor.ElementType(p), model.LineUnknown); e != nil {
				e.ParameterIndex = model.Index(i)
			}
		}
	}

	return &methodVisitor{registry: v.registry, ctx: c, method: m, line: model.LineUnknown}
}

// methodVisitor routes a method's annotations to the registry and its
// invoke instructions to the call extractor.
type methodVisitor struct {
	registry *Registry
	ctx      *Context
	method   *Method

	// line is the most recent LineNumberTable entry, attached to calls.
	line model.LineNumber
}

func (mv *methodVisitor) VisitAnnotation(desc string, visible bool) classfile.AnnotationVisitor {
	if !mv.ctx.inTraversal("method annotation") {
		return nil
	}
	av, _ := mv.registry.DispatchMethod(desc, mv.ctx, mv.method)
	return av
}

func (mv *methodVisitor) VisitParameterAnnotation(parameter int, desc string, visible bool) classfile.AnnotationVisitor {
	if !mv.ctx.inTraversal("parameter annotation") {
		return nil
	}
	av, _ := mv.registry.DispatchParameter(desc, mv.ctx, mv.method, parameter)
	return av
}

func (mv *methodVisitor) VisitLineNumber(line int) {
	if !mv.ctx.inTraversal("line number") {
		return
	}
	mv.line = model.LineNumber(line)
	if !mv.method.sym.LineNumber.Known() {
		mv.method.sym.LineNumber = mv.line
	}
}

func (mv *methodVisitor) VisitMethodInsn(op classfile.Opcode, owner, name, desc string, isInterface bool) {
	if !mv.ctx.inTraversal("method instruction") {
		return
	}
	mv.ctx.addEdge(callEdge(mv.method.sym.FQN, op, owner, name, desc, isInterface, mv.line))
}

func (mv *methodVisitor) VisitInvokeDynamicInsn(name, desc string, bootstrap classfile.Handle, args []any) {
	if !mv.ctx.inTraversal("invokedynamic instruction") {
		return
	}
	if e := dynamicEdge(mv.ctx, mv.method.sym.FQN, name, bootstrap, args, mv.line); e != nil {
		mv.ctx.addEdge(e)
	}
}

func (mv *methodVisitor) VisitEnd() {
	if !mv.ctx.inTraversal("method end") {
		return
	}
	finalizeMethod(mv.ctx, mv.method)
}

// inTraversal reports whether a member callback may run. Member callbacks
// are only legal while the class is in the Visiting state.
func (c *Context) inTraversal(callback string) bool {
	if c.err != nil {
		return false
	}
	if c.state != StateVisiting {
		c.fail("%s in state %s", callback, c.state)
		return false
	}
	return true
}

func isMalformed(typeName string) bool {
	return strings.HasPrefix(typeName, "<malformed:")
}
