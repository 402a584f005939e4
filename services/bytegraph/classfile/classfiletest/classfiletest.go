// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classfiletest assembles small class files for tests.
//
// The assembler emits exactly the structures the classfile reader decodes:
// annotations, fields with constant values, methods with call
// instructions, line numbers and bootstrap methods. Code is not verifiable
// JVM bytecode; stack maps and max_stack are not computed.
//
//	data := classfiletest.New("com/x/FooService").
//	    Annotate("Lorg/springframework/stereotype/Service;").
//	    Bytes()
package classfiletest

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
)

// Element is one annotation element_value_pair.
type Element struct {
	Name  string
	Value any
}

// E builds an Element. Value may be a string, bool, int, int8, int16,
// uint16 (char), int32, int64, float32, float64, Enum, classfile.Type,
// Annotation, []string or []any.
func E(name string, value any) Element {
	return Element{Name: name, Value: value}
}

// Enum is an enum constant element value.
type Enum struct {
	Desc  string
	Value string
}

// Annotation is a nested annotation element value.
type Annotation struct {
	Desc     string
	Elements []Element
}

// Utf8 is a bootstrap argument stored as a bare CONSTANT_Utf8 entry, which
// is not loadable.
type Utf8 string

// ConstantIndex is a bootstrap argument that refers to a raw constant pool
// index, valid or not.
type ConstantIndex uint16

type annotation struct {
	Annotation
	visible bool
}

// Class assembles one class file.
type Class struct {
	version     uint16
	access      classfile.Access
	name        string
	super       string
	interfaces  []string
	annotations []annotation
	fields      []*Field
	methods     []*Method
}

// New starts a public class extending java/lang/Object.
func New(internalName string) *Class {
	return &Class{
		version: 61,
		access:  classfile.AccPublic | classfile.AccSuper,
		name:    internalName,
		super:   "java/lang/Object",
	}
}

// Interface starts a public interface.
func Interface(internalName string) *Class {
	c := New(internalName)
	c.access = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract
	return c
}

// Access replaces the class access flags.
func (c *Class) Access(a classfile.Access) *Class {
	c.access = a
	return c
}

// Extends sets the super class. An empty name writes super_class 0.
func (c *Class) Extends(super string) *Class {
	c.super = super
	return c
}

// Implements appends interfaces.
func (c *Class) Implements(names ...string) *Class {
	c.interfaces = append(c.interfaces, names...)
	return c
}

// Annotate adds a runtime-visible class annotation.
func (c *Class) Annotate(desc string, elems ...Element) *Class {
	c.annotations = append(c.annotations, annotation{Annotation{desc, elems}, true})
	return c
}

// AnnotateInvisible adds a class-retention (invisible) class annotation.
func (c *Class) AnnotateInvisible(desc string, elems ...Element) *Class {
	c.annotations = append(c.annotations, annotation{Annotation{desc, elems}, false})
	return c
}

// Field adds a field and returns its builder.
func (c *Class) Field(access classfile.Access, name, desc string) *Field {
	f := &Field{access: access, name: name, desc: desc}
	c.fields = append(c.fields, f)
	return f
}

// Method adds a method and returns its builder.
func (c *Class) Method(access classfile.Access, name, desc string) *Method {
	m := &Method{access: access, name: name, desc: desc}
	c.methods = append(c.methods, m)
	return m
}

// Field assembles one field.
type Field struct {
	access      classfile.Access
	name        string
	desc        string
	constant    any
	annotations []annotation
}

// Annotate adds a runtime-visible field annotation.
func (f *Field) Annotate(desc string, elems ...Element) *Field {
	f.annotations = append(f.annotations, annotation{Annotation{desc, elems}, true})
	return f
}

// Const sets the ConstantValue attribute.
func (f *Field) Const(v any) *Field {
	f.constant = v
	return f
}

type paramAnnotation struct {
	index int
	annotation
}

type invokeDynamic struct {
	pc   int
	name string
	desc string
	bsm  classfile.Handle
	args []any
}

type memberRef struct {
	pc    int
	owner string
	name  string
	desc  string
	itf   bool
}

// Method assembles one method. Instructions are appended in call order.
type Method struct {
	access      classfile.Access
	name        string
	desc        string
	exceptions  []string
	annotations []annotation
	params      []paramAnnotation
	code        []byte
	hasCode     bool
	lines       [][2]int
	refs        []memberRef
	indys       []invokeDynamic
}

// Annotate adds a runtime-visible method annotation.
func (m *Method) Annotate(desc string, elems ...Element) *Method {
	m.annotations = append(m.annotations, annotation{Annotation{desc, elems}, true})
	return m
}

// AnnotateParam adds a runtime-visible annotation on parameter i.
func (m *Method) AnnotateParam(i int, desc string, elems ...Element) *Method {
	m.params = append(m.params, paramAnnotation{i, annotation{Annotation{desc, elems}, true}})
	return m
}

// Throws declares checked exceptions.
func (m *Method) Throws(names ...string) *Method {
	m.exceptions = append(m.exceptions, names...)
	return m
}

// Line starts source line n at the next instruction.
func (m *Method) Line(n int) *Method {
	m.hasCode = true
	m.lines = append(m.lines, [2]int{len(m.code), n})
	return m
}

// Op appends a raw instruction.
func (m *Method) Op(op classfile.Opcode, operands ...byte) *Method {
	m.hasCode = true
	m.code = append(m.code, byte(op))
	m.code = append(m.code, operands...)
	return m
}

// Invoke appends invokevirtual, invokespecial or invokestatic against a
// Methodref. Use InvokeInterface for interface owners.
func (m *Method) Invoke(op classfile.Opcode, owner, name, desc string) *Method {
	return m.invoke(op, owner, name, desc, false)
}

// InvokeInterface appends invokeinterface against an InterfaceMethodref.
func (m *Method) InvokeInterface(owner, name, desc string) *Method {
	return m.invoke(classfile.OpInvokeInterface, owner, name, desc, true)
}

// InvokeStaticInterface appends invokestatic against an InterfaceMethodref.
func (m *Method) InvokeStaticInterface(owner, name, desc string) *Method {
	return m.invoke(classfile.OpInvokeStatic, owner, name, desc, true)
}

func (m *Method) invoke(op classfile.Opcode, owner, name, desc string, itf bool) *Method {
	m.refs = append(m.refs, memberRef{pc: len(m.code) + 1, owner: owner, name: name, desc: desc, itf: itf})
	if op == classfile.OpInvokeInterface {
		return m.Op(op, 0, 0, 1, 0)
	}
	return m.Op(op, 0, 0)
}

// InvokeDynamic appends invokedynamic with its own bootstrap method entry.
func (m *Method) InvokeDynamic(name, desc string, bsm classfile.Handle, args ...any) *Method {
	m.indys = append(m.indys, invokeDynamic{pc: len(m.code) + 1, name: name, desc: desc, bsm: bsm, args: args})
	return m.Op(classfile.OpInvokeDynamic, 0, 0, 0, 0)
}

// TableSwitch appends a tableswitch with one jump offset per case.
func (m *Method) TableSwitch(low int32, offsets ...int32) *Method {
	m.Op(classfile.OpTableSwitch)
	m.align()
	m.code = binary.BigEndian.AppendUint32(m.code, 0)
	m.code = binary.BigEndian.AppendUint32(m.code, uint32(low))
	m.code = binary.BigEndian.AppendUint32(m.code, uint32(low+int32(len(offsets))-1))
	for _, o := range offsets {
		m.code = binary.BigEndian.AppendUint32(m.code, uint32(o))
	}
	return m
}

// LookupSwitch appends a lookupswitch with the given match/offset pairs.
func (m *Method) LookupSwitch(pairs ...[2]int32) *Method {
	m.Op(classfile.OpLookupSwitch)
	m.align()
	m.code = binary.BigEndian.AppendUint32(m.code, 0)
	m.code = binary.BigEndian.AppendUint32(m.code, uint32(len(pairs)))
	for _, p := range pairs {
		m.code = binary.BigEndian.AppendUint32(m.code, uint32(p[0]))
		m.code = binary.BigEndian.AppendUint32(m.code, uint32(p[1]))
	}
	return m
}

func (m *Method) align() {
	for len(m.code)%4 != 0 {
		m.code = append(m.code, 0)
	}
}

// Bytes assembles the class file.
func (c *Class) Bytes() []byte {
	p := &pool{index: make(map[string]uint16), next: 1}
	var bsms [][]byte

	var body []byte
	body = u2(body, uint16(c.access))
	body = u2(body, p.class(c.name))
	if c.super == "" {
		body = u2(body, 0)
	} else {
		body = u2(body, p.class(c.super))
	}
	body = u2(body, uint16(len(c.interfaces)))
	for _, i := range c.interfaces {
		body = u2(body, p.class(i))
	}

	body = u2(body, uint16(len(c.fields)))
	for _, f := range c.fields {
		body = u2(body, uint16(f.access))
		body = u2(body, p.utf8(f.name))
		body = u2(body, p.utf8(f.desc))
		var attrs [][]byte
		if f.constant != nil {
			attrs = append(attrs, attribute(p, "ConstantValue", u2(nil, p.loadable(f.constant))))
		}
		attrs = append(attrs, annotationAttributes(p, f.annotations)...)
		body = appendAttributes(body, attrs)
	}

	body = u2(body, uint16(len(c.methods)))
	for _, m := range c.methods {
		body = u2(body, uint16(m.access))
		body = u2(body, p.utf8(m.name))
		body = u2(body, p.utf8(m.desc))
		var attrs [][]byte
		if m.hasCode {
			attrs = append(attrs, m.codeAttribute(p, &bsms))
		}
		if len(m.exceptions) > 0 {
			ex := u2(nil, uint16(len(m.exceptions)))
			for _, e := range m.exceptions {
				ex = u2(ex, p.class(e))
			}
			attrs = append(attrs, attribute(p, "Exceptions", ex))
		}
		attrs = append(attrs, annotationAttributes(p, m.annotations)...)
		if len(m.params) > 0 {
			attrs = append(attrs, m.paramAttribute(p))
		}
		body = appendAttributes(body, attrs)
	}

	var classAttrs [][]byte
	classAttrs = append(classAttrs, annotationAttributes(p, c.annotations)...)
	if len(bsms) > 0 {
		bm := u2(nil, uint16(len(bsms)))
		for _, b := range bsms {
			bm = append(bm, b...)
		}
		classAttrs = append(classAttrs, attribute(p, "BootstrapMethods", bm))
	}
	body = appendAttributes(body, classAttrs)

	out := binary.BigEndian.AppendUint32(nil, classfile.Magic)
	out = u2(out, 0)
	out = u2(out, c.version)
	out = u2(out, p.next)
	for _, e := range p.entries {
		out = append(out, e...)
	}
	return append(out, body...)
}

func (m *Method) codeAttribute(p *pool, bsms *[][]byte) []byte {
	code := append([]byte(nil), m.code...)
	for _, r := range m.refs {
		var idx uint16
		if r.itf {
			idx = p.ref(11, r.owner, r.name, r.desc)
		} else {
			idx = p.ref(10, r.owner, r.name, r.desc)
		}
		binary.BigEndian.PutUint16(code[r.pc:], idx)
	}
	for _, indy := range m.indys {
		bm := u2(nil, p.handle(indy.bsm))
		bm = u2(bm, uint16(len(indy.args)))
		for _, a := range indy.args {
			bm = u2(bm, p.loadable(a))
		}
		*bsms = append(*bsms, bm)
		idx := p.add(fmt.Sprintf("indy:%d", len(*bsms)), 18, u2(u2(nil, uint16(len(*bsms)-1)), p.nameAndType(indy.name, indy.desc)))
		binary.BigEndian.PutUint16(code[indy.pc:], idx)
	}

	var b []byte
	b = u2(b, 16) // max_stack
	b = u2(b, 16) // max_locals
	b = binary.BigEndian.AppendUint32(b, uint32(len(code)))
	b = append(b, code...)
	b = u2(b, 0) // exception_table_length
	if len(m.lines) == 0 {
		b = u2(b, 0)
		return attribute(p, "Code", b)
	}
	lnt := u2(nil, uint16(len(m.lines)))
	for _, l := range m.lines {
		lnt = u2(lnt, uint16(l[0]))
		lnt = u2(lnt, uint16(l[1]))
	}
	b = u2(b, 1)
	b = append(b, attribute(p, "LineNumberTable", lnt)...)
	return attribute(p, "Code", b)
}

func (m *Method) paramAttribute(p *pool) []byte {
	count := 0
	for _, pa := range m.params {
		if pa.index+1 > count {
			count = pa.index + 1
		}
	}
	b := []byte{byte(count)}
	for i := 0; i < count; i++ {
		var anns []annotation
		for _, pa := range m.params {
			if pa.index == i {
				anns = append(anns, pa.annotation)
			}
		}
		b = u2(b, uint16(len(anns)))
		for _, a := range anns {
			b = appendAnnotation(b, p, a.Annotation)
		}
	}
	return attribute(p, "RuntimeVisibleParameterAnnotations", b)
}

func annotationAttributes(p *pool, anns []annotation) [][]byte {
	var out [][]byte
	for _, visible := range []bool{true, false} {
		var selected []Annotation
		for _, a := range anns {
			if a.visible == visible {
				selected = append(selected, a.Annotation)
			}
		}
		if len(selected) == 0 {
			continue
		}
		b := u2(nil, uint16(len(selected)))
		for _, a := range selected {
			b = appendAnnotation(b, p, a)
		}
		name := "RuntimeVisibleAnnotations"
		if !visible {
			name = "RuntimeInvisibleAnnotations"
		}
		out = append(out, attribute(p, name, b))
	}
	return out
}

func appendAnnotation(b []byte, p *pool, a Annotation) []byte {
	b = u2(b, p.utf8(a.Desc))
	b = u2(b, uint16(len(a.Elements)))
	for _, e := range a.Elements {
		b = u2(b, p.utf8(e.Name))
		b = appendElementValue(b, p, e.Value)
	}
	return b
}

func appendElementValue(b []byte, p *pool, v any) []byte {
	switch v := v.(type) {
	case string:
		return u2(append(b, 's'), p.utf8(v))
	case bool:
		n := int32(0)
		if v {
			n = 1
		}
		return u2(append(b, 'Z'), p.integer(n))
	case int:
		return u2(append(b, 'I'), p.integer(int32(v)))
	case int32:
		return u2(append(b, 'I'), p.integer(v))
	case int8:
		return u2(append(b, 'B'), p.integer(int32(v)))
	case int16:
		return u2(append(b, 'S'), p.integer(int32(v)))
	case uint16:
		return u2(append(b, 'C'), p.integer(int32(v)))
	case int64:
		return u2(append(b, 'J'), p.long(v))
	case float32:
		return u2(append(b, 'F'), p.float(v))
	case float64:
		return u2(append(b, 'D'), p.double(v))
	case Enum:
		return u2(u2(append(b, 'e'), p.utf8(v.Desc)), p.utf8(v.Value))
	case classfile.Type:
		return u2(append(b, 'c'), p.utf8(v.Descriptor))
	case Annotation:
		return appendAnnotation(append(b, '@'), p, v)
	case []string:
		b = u2(append(b, '['), uint16(len(v)))
		for _, s := range v {
			b = appendElementValue(b, p, s)
		}
		return b
	case []any:
		b = u2(append(b, '['), uint16(len(v)))
		for _, e := range v {
			b = appendElementValue(b, p, e)
		}
		return b
	}
	panic(fmt.Sprintf("classfiletest: unsupported element value %T", v))
}

func attribute(p *pool, name string, data []byte) []byte {
	b := u2(nil, p.utf8(name))
	b = binary.BigEndian.AppendUint32(b, uint32(len(data)))
	return append(b, data...)
}

func appendAttributes(b []byte, attrs [][]byte) []byte {
	b = u2(b, uint16(len(attrs)))
	for _, a := range attrs {
		b = append(b, a...)
	}
	return b
}

func u2(b []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(b, v)
}

// pool is a deduplicating constant pool under construction.
type pool struct {
	index   map[string]uint16
	entries [][]byte
	next    uint16
}

func (p *pool) add(key string, tag byte, payload []byte) uint16 {
	if i, ok := p.index[key]; ok {
		return i
	}
	i := p.next
	p.index[key] = i
	p.entries = append(p.entries, append([]byte{tag}, payload...))
	p.next++
	if tag == 5 || tag == 6 {
		p.next++
	}
	return i
}

func (p *pool) utf8(s string) uint16 {
	// Test inputs are ASCII or BMP text without NUL, so standard UTF-8
	// matches the modified encoding except for supplementary characters.
	return p.add("utf8:"+s, 1, append(u2(nil, uint16(len(s))), s...))
}

func (p *pool) integer(v int32) uint16 {
	return p.add(fmt.Sprintf("int:%d", v), 3, binary.BigEndian.AppendUint32(nil, uint32(v)))
}

func (p *pool) float(v float32) uint16 {
	return p.add(fmt.Sprintf("float:%x", math.Float32bits(v)), 4, binary.BigEndian.AppendUint32(nil, math.Float32bits(v)))
}

func (p *pool) long(v int64) uint16 {
	return p.add(fmt.Sprintf("long:%d", v), 5, binary.BigEndian.AppendUint64(nil, uint64(v)))
}

func (p *pool) double(v float64) uint16 {
	return p.add(fmt.Sprintf("double:%x", math.Float64bits(v)), 6, binary.BigEndian.AppendUint64(nil, math.Float64bits(v)))
}

func (p *pool) class(name string) uint16 {
	return p.add("class:"+name, 7, u2(nil, p.utf8(name)))
}

func (p *pool) str(s string) uint16 {
	return p.add("string:"+s, 8, u2(nil, p.utf8(s)))
}

func (p *pool) nameAndType(name, desc string) uint16 {
	return p.add("nat:"+name+":"+desc, 12, u2(u2(nil, p.utf8(name)), p.utf8(desc)))
}

func (p *pool) ref(tag byte, owner, name, desc string) uint16 {
	key := fmt.Sprintf("ref%d:%s.%s:%s", tag, owner, name, desc)
	return p.add(key, tag, u2(u2(nil, p.class(owner)), p.nameAndType(name, desc)))
}

func (p *pool) handle(h classfile.Handle) uint16 {
	var ref uint16
	switch {
	case h.Kind <= classfile.HandlePutStatic:
		ref = p.ref(9, h.Owner, h.Name, h.Desc)
	case h.IsInterface:
		ref = p.ref(11, h.Owner, h.Name, h.Desc)
	default:
		ref = p.ref(10, h.Owner, h.Name, h.Desc)
	}
	key := fmt.Sprintf("handle:%d:%d", h.Kind, ref)
	return p.add(key, 15, u2([]byte{byte(h.Kind)}, ref))
}

func (p *pool) methodType(desc string) uint16 {
	return p.add("mtype:"+desc, 16, u2(nil, p.utf8(desc)))
}

// loadable adds a constant usable as a ConstantValue or bootstrap argument.
func (p *pool) loadable(v any) uint16 {
	switch v := v.(type) {
	case int:
		return p.integer(int32(v))
	case int32:
		return p.integer(v)
	case int64:
		return p.long(v)
	case float32:
		return p.float(v)
	case float64:
		return p.double(v)
	case string:
		return p.str(v)
	case classfile.Type:
		switch {
		case len(v.Descriptor) > 0 && v.Descriptor[0] == '(':
			return p.methodType(v.Descriptor)
		case len(v.Descriptor) > 2 && v.Descriptor[0] == 'L':
			return p.class(v.Descriptor[1 : len(v.Descriptor)-1])
		default:
			return p.class(v.Descriptor)
		}
	case classfile.Handle:
		return p.handle(v)
	case Utf8:
		return p.utf8(string(v))
	case ConstantIndex:
		return uint16(v)
	}
	panic(fmt.Sprintf("classfiletest: unsupported constant %T", v))
}
