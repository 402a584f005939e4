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
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/descriptor"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// ErrBootstrapArgs is logged when an invokedynamic site's bootstrap
// arguments do not have the expected shape.
var ErrBootstrapArgs = errors.New("unexpected bootstrap arguments")

const (
	lambdaMetafactory   = "java/lang/invoke/LambdaMetafactory"
	stringConcatFactory = "java/lang/invoke/StringConcatFactory"
)

// callKind maps an invoke opcode onto the calls vocabulary. An
// invokespecial of a constructor is an instantiation.
func callKind(op classfile.Opcode, name string) string {
	switch op {
	case classfile.OpInvokeVirtual:
		return model.KindInvokeVirtual
	case classfile.OpInvokeStatic:
		return model.KindInvokeStatic
	case classfile.OpInvokeInterface:
		return model.KindInvokeInterface
	case classfile.OpInvokeSpecial:
		if name == "<init>" {
			return model.KindNew
		}
		return model.KindInvokeSpecial
	}
	return op.String()
}

// ownerFQN converts an instruction owner to a dotted name. Array owners
// ("[Ljava/lang/String;", used for clone) are rendered as array types.
func ownerFQN(owner string) string {
	if strings.HasPrefix(owner, "[") {
		return descriptor.TypeName(owner)
	}
	return descriptor.InternalToFQN(owner)
}

// methodFQN builds "<owner>.<name>(<T1>, <T2>)".
func methodFQN(owner, name, desc string) string {
	return ownerFQN(owner) + "." + name + descriptor.Signature(desc)
}

// MapperOperation classifies a call on a MyBatis-style mapper by the
// callee's method name. ok is false unless the owner's simple name ends in
// "Mapper" and the name starts with insert, update, delete or select.
func MapperOperation(ownerFQN, name string) (op string, ok bool) {
	if !strings.HasSuffix(descriptor.SimpleName(ownerFQN), "Mapper") {
		return "", false
	}
	switch {
	case strings.HasPrefix(name, "insert"):
		return SQLInsert, true
	case strings.HasPrefix(name, "update"):
		return SQLUpdate, true
	case strings.HasPrefix(name, "delete"):
		return SQLDelete, true
	case strings.HasPrefix(name, "select"):
		return SQLSelect, true
	}
	return "", false
}

// callEdge builds the calls edge of an invoke instruction.
func callEdge(caller string, op classfile.Opcode, owner, name, desc string, isInterface bool, line model.LineNumber) *model.Edge {
	e := &model.Edge{
		EdgeType:   model.EdgeTypeCalls,
		Kind:       callKind(op, name),
		FromFQN:    caller,
		ToFQN:      methodFQN(owner, name, desc),
		LineNumber: line,
	}
	if isInterface && op != classfile.OpInvokeInterface {
		// invokestatic / invokespecial on an interface method.
		e.SetMeta(model.MetaInterfaceCall, "true")
	}
	if sqlOp, ok := MapperOperation(ownerFQN(owner), name); ok {
		e.SetMeta(model.MetaMybatisPlusOperation, sqlOp)
	}
	return e
}

// dynamicEdge builds the calls edge of an invokedynamic instruction, or
// returns nil for string concatenation and for bootstrap methods or
// arguments it cannot interpret. The latter are logged and counted.
func dynamicEdge(c *Context, caller, name string, bootstrap classfile.Handle, args []any, line model.LineNumber) *model.Edge {
	if err := checkBootstrap(bootstrap, args); err != nil {
		skipDynamic(c, caller, name, bootstrap, err)
		return nil
	}
	switch bootstrap.Owner {
	case stringConcatFactory:
		return nil
	case lambdaMetafactory:
		impl, err := lambdaImplementation(args)
		if err != nil {
			skipDynamic(c, caller, name, bootstrap, err)
			return nil
		}
		e := &model.Edge{
			EdgeType:   model.EdgeTypeCalls,
			Kind:       model.KindLambda,
			FromFQN:    caller,
			ToFQN:      methodFQN(impl.Owner, impl.Name, impl.Desc),
			LineNumber: line,
		}
		e.SetMeta(model.MetaBootstrap, bootstrap.Name)
		return e
	}

	e := &model.Edge{
		EdgeType:   model.EdgeTypeCalls,
		Kind:       model.KindMethodReference,
		FromFQN:    caller,
		ToFQN:      methodFQN(bootstrap.Owner, bootstrap.Name, bootstrap.Desc),
		LineNumber: line,
	}
	e.SetMeta(model.MetaBootstrap, ownerFQN(bootstrap.Owner)+"."+bootstrap.Name)
	return e
}

// checkBootstrap rejects call sites whose bootstrap method or arguments the
// reader could not resolve.
func checkBootstrap(bootstrap classfile.Handle, args []any) error {
	if bootstrap.Owner == "" {
		return fmt.Errorf("%w: unresolvable bootstrap method", ErrBootstrapArgs)
	}
	for i, a := range args {
		if bad, ok := a.(classfile.BadConstant); ok {
			return fmt.Errorf("%w: argument %d (constant %d): %v", ErrBootstrapArgs, i, bad.Index, bad.Err)
		}
	}
	return nil
}

func skipDynamic(c *Context, caller, name string, bootstrap classfile.Handle, err error) {
	bootstrapFailuresTotal.Inc()
	c.logger.Warn("skipping invokedynamic",
		slog.String("source", c.source),
		slog.String("caller", caller),
		slog.String("site", name),
		slog.String("bootstrap", bootstrap.Name),
		slog.String("error", err.Error()))
}

// lambdaImplementation returns the implementation handle of a
// LambdaMetafactory call site: bootstrap argument 1 for both metafactory
// and altMetafactory.
func lambdaImplementation(args []any) (classfile.Handle, error) {
	if len(args) < 2 {
		return classfile.Handle{}, fmt.Errorf("%w: %d arguments", ErrBootstrapArgs, len(args))
	}
	h, ok := args[1].(classfile.Handle)
	if !ok {
		return classfile.Handle{}, fmt.Errorf("%w: argument 1 is %T", ErrBootstrapArgs, args[1])
	}
	return h, nil
}
