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
	"fmt"
	"log/slog"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/descriptor"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// State is the traversal state of one class file.
type State int

const (
	// StateIdle is the state before the class header was visited.
	StateIdle State = iota

	// StateStarted is entered on the class header.
	StateStarted

	// StateVisiting is entered on the first annotation, field or method.
	StateVisiting

	// StateFinalizing is entered on the end-of-class callback.
	StateFinalizing

	// StateDone is entered once class metadata has been applied.
	StateDone
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StateVisiting:
		return "visiting"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Context is the analysis state of one class file.
//
// Description:
//
//	A Context is created on the class header, mutated by every visitor
//	callback and annotation handler of that traversal, and consumed by
//	Result once the class end has been processed. Handlers record what
//	they see in the class and method metadata; the finalization steps turn
//	that metadata into Symbol attributes.
//
// Thread Safety:
//
//	Not safe for concurrent use. A Context belongs to the goroutine that
//	runs the traversal.
type Context struct {
	source string
	logger *slog.Logger
	state  State

	class      *model.Symbol
	access     classfile.Access
	superName  string
	interfaces []string

	nodes []*model.Symbol
	edges []*model.Edge

	meta         classMeta
	constructors []*Method
	sqlMethods   int

	// err is the first traversal error; callbacks after it are ignored.
	err error
}

func newContext(source string, logger *slog.Logger) *Context {
	return &Context{source: source, logger: logger}
}

// Source returns the identity of the class file, usually its path.
func (c *Context) Source() string {
	return c.source
}

// Logger returns the traversal logger.
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// State returns the traversal state.
func (c *Context) State() State {
	return c.state
}

// Class returns the class node. Nil before the header was visited.
func (c *Context) Class() *model.Symbol {
	return c.class
}

// ClassFQN returns the dotted name of the class being analyzed.
func (c *Context) ClassFQN() string {
	if c.class == nil {
		return ""
	}
	return c.class.FQN
}

// IsInterface reports whether the class is an interface.
func (c *Context) IsInterface() bool {
	return c.access.Has(classfile.AccInterface)
}

// SuperName returns the dotted super class name, or "".
func (c *Context) SuperName() string {
	return c.superName
}

// Interfaces returns the dotted names of the directly implemented
// interfaces.
func (c *Context) Interfaces() []string {
	return c.interfaces
}

// Nodes returns the nodes emitted so far, in emission order.
func (c *Context) Nodes() []*model.Symbol {
	return c.nodes
}

// Edges returns the edges emitted so far, in emission order.
func (c *Context) Edges() []*model.Edge {
	return c.edges
}

// fail records the first traversal error.
func (c *Context) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf("%w: %s", ErrTraversal, fmt.Sprintf(format, args...))
	}
}

// enterVisiting moves Started to Visiting. It reports false, after
// recording an error, when the callback arrives in any other state.
func (c *Context) enterVisiting(callback string) bool {
	if c.err != nil {
		return false
	}
	switch c.state {
	case StateStarted:
		c.state = StateVisiting
		return true
	case StateVisiting:
		return true
	}
	c.fail("%s in state %s", callback, c.state)
	return false
}

func (c *Context) addNode(n *model.Symbol) {
	c.nodes = append(c.nodes, n)
}

// addEdge appends an edge whose kind belongs to the closed vocabulary of
// its edge type. Anything else is dropped and logged.
func (c *Context) addEdge(e *model.Edge) {
	if !model.ValidKind(e.EdgeType, e.Kind) {
		c.logger.Warn("dropping edge with unknown kind",
			slog.String("source", c.source),
			slog.String("edge_type", string(e.EdgeType)),
			slog.String("kind", e.Kind))
		return
	}
	c.edges = append(c.edges, e)
}

// typeEdge emits a MemberOf edge from..to, skipping primitive and void
// targets. It returns nil when nothing was emitted.
func (c *Context) typeEdge(kind, from, typeName string, line model.LineNumber) *model.Edge {
	if typeName == "" || descriptor.IsPrimitive(typeName) {
		return nil
	}
	e := &model.Edge{
		EdgeType:   model.EdgeTypeMemberOf,
		Kind:       kind,
		FromFQN:    from,
		ToFQN:      typeName,
		LineNumber: line,
	}
	c.addEdge(e)
	return e
}

// classMeta is the class-level metadata accumulated by annotation handlers
// and header heuristics.
type classMeta struct {
	beanType     string
	beanName     string
	primary      bool
	lazy         bool
	scope        string
	scopeProxy   string
	dependsOn    []string
	configPrefix string
	hasConfig    bool

	mybatisMapper     bool
	mybatisPlusMapper bool
	mapstructMapper   bool
	mybatisDetection  string

	aspect      bool
	order       int
	hasOrder    bool
	async       bool
	asyncExec   string
	needsProxy  bool
	transaction *txMeta

	restController bool
	hasMapping     bool
	basePath       string
	baseMethods    []string

	quartzJobType     string
	quartzDisallow    bool
	quartzPersistData bool
	schedulingEnabled bool
	asyncEnabled      bool
	txMgmtEnabled     bool
	entity            bool
	mappedSuperclass  bool
	entityName        string
	entityTable       string
}

// txMeta holds @Transactional attributes.
type txMeta struct {
	propagation string
	isolation   string
	timeout     int
	readOnly    bool
	rollbackFor []string
	manager     string
}

// Method is the analysis state of one method, shared by the method
// visitor and the method-level annotation handlers.
type Method struct {
	sym    *model.Symbol
	access classfile.Access
	name   string
	desc   string
	params []string
	meta   methodMeta
}

// Symbol returns the method node.
func (m *Method) Symbol() *model.Symbol {
	return m.sym
}

// Name returns the simple method name ("<init>" for constructors).
func (m *Method) Name() string {
	return m.name
}

// Descriptor returns the raw method descriptor.
func (m *Method) Descriptor() string {
	return m.desc
}

// Params returns the parameter type names.
func (m *Method) Params() []string {
	return m.params
}

// IsConstructor reports whether the method is an instance initializer.
func (m *Method) IsConstructor() bool {
	return m.name == "<init>"
}

type methodMeta struct {
	transaction *txMeta

	adviceType string
	pointcut   string

	async     bool
	asyncExec string

	bean          bool
	beanName      string
	initMethod    string
	destroyMethod string

	mapping *mappingMeta

	scheduled *scheduledMeta

	sqlOp   string
	sqlText string

	injection       model.InjectionType
	qualifier       string
	paramQualifiers map[int]string
	paramValues     map[int]string

	listener       string
	listenerTopics []string
	lifecycle      string
}

type mappingMeta struct {
	path    string
	methods []string
}

type scheduledMeta struct {
	cron         string
	fixedDelay   string
	fixedRate    string
	initialDelay string
}

// Field is the analysis state of one field.
type Field struct {
	name      string
	typeName  string
	static    bool
	injection model.InjectionType
	qualifier string
	value     string
}

// Name returns the field name.
func (f *Field) Name() string {
	return f.name
}

// TypeName returns the field's Java type name.
func (f *Field) TypeName() string {
	return f.typeName
}
