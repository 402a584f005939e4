// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classfile

// ClassVisitor receives the structural events of one class file.
//
// Description:
//
//	Accept invokes the methods in a fixed order: Visit once, VisitAnnotation
//	for every class annotation (runtime-visible first), VisitField for every
//	field in declaration order, VisitMethod for every method in declaration
//	order, and VisitEnd once.
//
// Names passed to the visitor are internal names ("com/x/Foo") and raw
// descriptors; converting them is the visitor's job.
//
// Returning a nil sub-visitor from VisitAnnotation, VisitField or VisitMethod
// skips the events of that element.
type ClassVisitor interface {
	Visit(version int, access Access, name, superName string, interfaces []string)
	VisitAnnotation(desc string, visible bool) AnnotationVisitor
	VisitField(access Access, name, desc string, value any) FieldVisitor
	VisitMethod(access Access, name, desc string, exceptions []string) MethodVisitor
	VisitEnd()
}

// FieldVisitor receives the annotations of one field.
type FieldVisitor interface {
	VisitAnnotation(desc string, visible bool) AnnotationVisitor
	VisitEnd()
}

// MethodVisitor receives the annotations and call instructions of one method.
//
// Annotation events come first, then parameter annotations, then the
// instruction stream. VisitLineNumber is reported before the first
// instruction of the line it starts.
type MethodVisitor interface {
	VisitAnnotation(desc string, visible bool) AnnotationVisitor
	VisitParameterAnnotation(parameter int, desc string, visible bool) AnnotationVisitor
	VisitLineNumber(line int)
	VisitMethodInsn(op Opcode, owner, name, desc string, isInterface bool)
	// VisitInvokeDynamicInsn reports a call site. An unresolvable bootstrap
	// method arrives as a zero Handle and unresolvable arguments as
	// BadConstant, so one broken site never fails the class.
	VisitInvokeDynamicInsn(name, desc string, bootstrap Handle, args []any)
	VisitEnd()
}

// AnnotationVisitor receives the element values of one annotation.
//
// Visit is called for scalar values: string, bool, int8, uint16 (char),
// int16, int32, int64, float32, float64, or Type for class literals.
// Array elements are reported to the visitor returned by VisitArray with an
// empty name.
type AnnotationVisitor interface {
	Visit(name string, value any)
	VisitEnum(name, desc, value string)
	VisitAnnotation(name, desc string) AnnotationVisitor
	VisitArray(name string) AnnotationVisitor
	VisitEnd()
}

// Type is a class literal or method type constant, identified by its
// descriptor ("Ljava/lang/String;", "[I", "(I)V").
type Type struct {
	Descriptor string
}

// HandleKind is the reference_kind of a CONSTANT_MethodHandle.
type HandleKind uint8

const (
	HandleGetField         HandleKind = 1
	HandleGetStatic        HandleKind = 2
	HandlePutField         HandleKind = 3
	HandlePutStatic        HandleKind = 4
	HandleInvokeVirtual    HandleKind = 5
	HandleInvokeStatic     HandleKind = 6
	HandleInvokeSpecial    HandleKind = 7
	HandleNewInvokeSpecial HandleKind = 8
	HandleInvokeInterface  HandleKind = 9
)

// Handle is a resolved CONSTANT_MethodHandle.
type Handle struct {
	Kind        HandleKind
	Owner       string
	Name        string
	Desc        string
	IsInterface bool
}

// BadConstant replaces an invokedynamic bootstrap argument that does not
// resolve to a loadable constant. Index is the constant pool index.
type BadConstant struct {
	Index uint16
	Err   error
}

// ConstantDynamic is a resolved CONSTANT_Dynamic bootstrap argument.
type ConstantDynamic struct {
	Name      string
	Desc      string
	Bootstrap Handle
	Args      []any
}
