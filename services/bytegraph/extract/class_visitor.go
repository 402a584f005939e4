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

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/descriptor"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// Header heuristics.
const (
	mybatisPlusBaseMapper = "com.baomidou.mybatisplus.core.mapper.BaseMapper"
	quartzJobBean         = "org.springframework.scheduling.quartz.QuartzJobBean"
	javaLangObject        = "java.lang.Object"
)

var quartzJobInterfaces = map[string]bool{
	"org.quartz.Job":             true,
	"org.quartz.InterruptableJob": true,
	"org.quartz.StatefulJob":     true,
}

// Quartz job types recorded in quartz_job_type.
const (
	QuartzJobInterface = "job_interface"
	QuartzJobBean      = "quartz_job_bean"
)

// ClassVisitor turns the events of one class file into graph nodes and
// edges. It implements classfile.ClassVisitor.
//
// Description:
//
//	The visitor moves its Context through Idle, Started, Visiting,
//	Finalizing and Done. Callbacks that arrive in the wrong state are
//	recorded as an error, which Err reports; later callbacks are ignored.
//
// Thread Safety:
//
//	Not safe for concurrent use. Use one ClassVisitor per class file.
type ClassVisitor struct {
	registry *Registry
	ctx      *Context
}

// NewClassVisitor creates a visitor for one class file.
//
// Inputs:
//
//	source - Identity of the class file, used in logs.
//	registry - The annotation handlers. Must not be nil.
//	logger - Logger. Nil uses slog.Default().
func NewClassVisitor(source string, registry *Registry, logger *slog.Logger) *ClassVisitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassVisitor{registry: registry, ctx: newContext(source, logger)}
}

// Context returns the traversal context.
func (v *ClassVisitor) Context() *Context {
	return v.ctx
}

// Err returns the first traversal error, if any.
func (v *ClassVisitor) Err() error {
	return v.ctx.err
}

// Visit handles the class header.
func (v *ClassVisitor) Visit(version int, access classfile.Access, name, superName string, interfaces []string) {
	c := v.ctx
	if c.state != StateIdle {
		c.fail("class header in state %s", c.state)
		return
	}

	fqn := descriptor.InternalToFQN(name)
	c.access = access
	if superName != "" {
		c.superName = descriptor.InternalToFQN(superName)
	}
	c.interfaces = make([]string, 0, len(interfaces))
	for _, itf := range interfaces {
		c.interfaces = append(c.interfaces, descriptor.InternalToFQN(itf))
	}

	nodeType := model.NodeTypeClass
	switch {
	case access.Has(classfile.AccEnum):
		nodeType = model.NodeTypeEnum
	case access.Has(classfile.AccInterface):
		nodeType = model.NodeTypeInterface
	}

	c.class = &model.Symbol{
		NodeType:   nodeType,
		FQN:        fqn,
		Name:       descriptor.SimpleName(fqn),
		Modifiers:  access.Modifiers(classfile.ContextClass),
		SuperClass: c.superName,
		Interfaces: c.interfaces,
		IsAbstract: access.Has(classfile.AccAbstract),
		IsFinal:    access.Has(classfile.AccFinal),
		LineNumber: model.LineUnknown,
	}
	c.addNode(c.class)
	c.state = StateStarted

	v.emitInheritance()
	v.headerHeuristics()
}

func (v *ClassVisitor) emitInheritance() {
	c := v.ctx
	from := c.class.FQN
	if !c.IsInterface() && c.superName != "" && c.superName != javaLangObject {
		c.addEdge(&model.Edge{
			EdgeType:   model.EdgeTypeInheritance,
			Kind:       model.KindExtends,
			FromFQN:    from,
			ToFQN:      c.superName,
			LineNumber: model.LineUnknown,
		})
	}
	kind := model.KindImplements
	if c.IsInterface() {
		kind = model.KindExtends
	}
	for _, itf := range c.interfaces {
		c.addEdge(&model.Edge{
			EdgeType:   model.EdgeTypeInheritance,
			Kind:       kind,
			FromFQN:    from,
			ToFQN:      itf,
			LineNumber: model.LineUnknown,
		})
	}
}

// headerHeuristics detects MyBatis-Plus mappers and Quartz jobs from the
// type hierarchy.
func (v *ClassVisitor) headerHeuristics() {
	c := v.ctx
	for _, itf := range c.interfaces {
		switch {
		case itf == mybatisPlusBaseMapper:
			c.meta.mybatisMapper = true
			c.meta.mybatisPlusMapper = true
			c.meta.mybatisDetection = DetectionInheritance
		case quartzJobInterfaces[itf]:
			c.meta.quartzJobType = QuartzJobInterface
		}
	}
	if c.superName == quartzJobBean {
		c.meta.quartzJobType = QuartzJobBean
	}
}

// VisitAnnotation dispatches a class annotation to the registry.
func (v *ClassVisitor) VisitAnnotation(desc string, visible bool) classfile.AnnotationVisitor {
	if !v.ctx.enterVisiting("class annotation") {
		return nil
	}
	av, _ := v.registry.DispatchClass(desc, v.ctx)
	return av
}

// VisitEnd finalizes the class.
func (v *ClassVisitor) VisitEnd() {
	c := v.ctx
	if c.err != nil {
		return
	}
	if c.state != StateStarted && c.state != StateVisiting {
		c.fail("class end in state %s", c.state)
		return
	}
	c.state = StateFinalizing
	finalizeClass(c)
	c.state = StateDone

	c.logger.Debug("class analyzed",
		slog.String("class", c.class.FQN),
		slog.Int("nodes", len(c.nodes)),
		slog.Int("edges", len(c.edges)))
}
