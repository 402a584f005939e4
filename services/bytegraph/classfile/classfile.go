// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classfile reads JVM class files and reports their structure to a
// visitor.
//
// The reader covers what static dependency analysis needs: the class
// header, annotations at every level, field constant values, declared
// exceptions, call instructions, line numbers and bootstrap methods. Other
// attributes are skipped.
//
// # Usage
//
//	if err := classfile.Accept(data, visitor); err != nil {
//	    return fmt.Errorf("reading %s: %w", path, err)
//	}
//
// # Thread Safety
//
// Accept holds no shared state; concurrent calls on different inputs are safe.
package classfile

import (
	"errors"
	"fmt"
)

// Magic is the first four bytes of every class file.
const Magic uint32 = 0xCAFEBABE

var (
	// ErrBadMagic indicates the input does not start with 0xCAFEBABE.
	ErrBadMagic = errors.New("not a class file")

	// ErrTruncated indicates the input ended inside a structure.
	ErrTruncated = errors.New("class file truncated")

	// ErrBadConstant indicates an invalid constant pool entry or reference.
	ErrBadConstant = errors.New("bad constant pool reference")

	// ErrBadCode indicates an undecodable instruction stream.
	ErrBadCode = errors.New("bad bytecode")
)

// rawAttribute is an attribute whose payload is parsed on demand.
type rawAttribute struct {
	name string
	data *binaryReader
}

type member struct {
	access Access
	name   string
	desc   string
	attrs  []rawAttribute
}

type classFile struct {
	version    int
	access     Access
	name       string
	superName  string
	interfaces []string
	fields     []member
	methods    []member
	attrs      []rawAttribute
	cp         *constantPool
}

// Accept parses data and reports it to v.
//
// Description:
//
//	The whole structure is decoded before the first callback, so a
//	truncated or corrupt file never produces a partial event stream.
//	Instruction streams are decoded while the method events are reported;
//	an undecodable Code attribute returns ErrBadCode after the preceding
//	events were delivered.
//
// Inputs:
//
//	data - The complete class file bytes.
//	v - The visitor. Must not be nil.
//
// Outputs:
//
//	error - nil, or an error wrapping ErrBadMagic, ErrTruncated,
//	        ErrBadConstant or ErrBadCode with the failing offset.
func Accept(data []byte, v ClassVisitor) error {
	cf, err := parse(data)
	if err != nil {
		return err
	}
	return cf.accept(v)
}

func parse(data []byte) (*classFile, error) {
	br := newBinaryReader(data)
	magic, err := br.ReadU4()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadMagic, err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: magic 0x%08X", ErrBadMagic, magic)
	}
	minor, err := br.ReadU2()
	if err != nil {
		return nil, err
	}
	major, err := br.ReadU2()
	if err != nil {
		return nil, err
	}

	cp, err := readConstantPool(br)
	if err != nil {
		return nil, err
	}
	cf := &classFile{version: int(minor)<<16 | int(major), cp: cp}

	access, err := br.ReadU2()
	if err != nil {
		return nil, err
	}
	cf.access = Access(access)

	thisIdx, err := br.ReadU2()
	if err != nil {
		return nil, err
	}
	if cf.name, err = cp.className(thisIdx); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	superIdx, err := br.ReadU2()
	if err != nil {
		return nil, err
	}
	if superIdx != 0 {
		if cf.superName, err = cp.className(superIdx); err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
	}

	n, err := br.ReadU2()
	if err != nil {
		return nil, err
	}
	cf.interfaces = make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		idx, err := br.ReadU2()
		if err != nil {
			return nil, err
		}
		name, err := cp.className(idx)
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", i, err)
		}
		cf.interfaces = append(cf.interfaces, name)
	}

	if cf.fields, err = readMembers(br, cp); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if cf.methods, err = readMembers(br, cp); err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}
	if cf.attrs, err = readAttributes(br, cp); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	if bm := findAttribute(cf.attrs, "BootstrapMethods"); bm != nil {
		if cp.bootstraps, err = readBootstrapMethods(bm); err != nil {
			return nil, err
		}
	}
	return cf, nil
}

func readMembers(br *binaryReader, cp *constantPool) ([]member, error) {
	count, err := br.ReadU2()
	if err != nil {
		return nil, err
	}
	members := make([]member, 0, count)
	for i := 0; i < int(count); i++ {
		var m member
		access, err := br.ReadU2()
		if err != nil {
			return nil, err
		}
		m.access = Access(access)
		nameIdx, err := br.ReadU2()
		if err != nil {
			return nil, err
		}
		if m.name, err = cp.utf8(nameIdx); err != nil {
			return nil, err
		}
		descIdx, err := br.ReadU2()
		if err != nil {
			return nil, err
		}
		if m.desc, err = cp.utf8(descIdx); err != nil {
			return nil, err
		}
		if m.attrs, err = readAttributes(br, cp); err != nil {
			return nil, fmt.Errorf("%s%s: %w", m.name, m.desc, err)
		}
		members = append(members, m)
	}
	return members, nil
}

func readAttributes(br *binaryReader, cp *constantPool) ([]rawAttribute, error) {
	count, err := br.ReadU2()
	if err != nil {
		return nil, err
	}
	attrs := make([]rawAttribute, 0, count)
	for i := 0; i < int(count); i++ {
		nameIdx, err := br.ReadU2()
		if err != nil {
			return nil, err
		}
		name, err := cp.utf8(nameIdx)
		if err != nil {
			return nil, fmt.Errorf("attribute name: %w", err)
		}
		length, err := br.ReadU4()
		if err != nil {
			return nil, err
		}
		data, err := br.sub(int(length))
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		attrs = append(attrs, rawAttribute{name: name, data: data})
	}
	return attrs, nil
}

// findAttribute returns a fresh reader over the first attribute named name.
func findAttribute(attrs []rawAttribute, name string) *binaryReader {
	for _, a := range attrs {
		if a.name == name {
			r := *a.data
			return &r
		}
	}
	return nil
}

func readBootstrapMethods(br *binaryReader) ([]bootstrapMethod, error) {
	count, err := br.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("BootstrapMethods: %w", err)
	}
	out := make([]bootstrapMethod, 0, count)
	for i := 0; i < int(count); i++ {
		h, err := br.ReadU2()
		if err != nil {
			return nil, fmt.Errorf("BootstrapMethods: %w", err)
		}
		nargs, err := br.ReadU2()
		if err != nil {
			return nil, fmt.Errorf("BootstrapMethods: %w", err)
		}
		bm := bootstrapMethod{handle: h, args: make([]uint16, nargs)}
		for j := range bm.args {
			if bm.args[j], err = br.ReadU2(); err != nil {
				return nil, fmt.Errorf("BootstrapMethods: %w", err)
			}
		}
		out = append(out, bm)
	}
	return out, nil
}

func (cf *classFile) accept(v ClassVisitor) error {
	v.Visit(cf.version, cf.access, cf.name, cf.superName, cf.interfaces)

	if err := cf.acceptAnnotations(cf.attrs, v.VisitAnnotation); err != nil {
		return fmt.Errorf("class annotations: %w", err)
	}

	for _, f := range cf.fields {
		var value any
		if cv := findAttribute(f.attrs, "ConstantValue"); cv != nil {
			idx, err := cv.ReadU2()
			if err != nil {
				return fmt.Errorf("field %s: %w", f.name, err)
			}
			if value, err = cf.cp.loadable(idx); err != nil {
				return fmt.Errorf("field %s constant: %w", f.name, err)
			}
		}
		fv := v.VisitField(f.access, f.name, f.desc, value)
		if fv == nil {
			continue
		}
		if err := cf.acceptAnnotations(f.attrs, fv.VisitAnnotation); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
		fv.VisitEnd()
	}

	for _, m := range cf.methods {
		if err := cf.acceptMethod(v, m); err != nil {
			return fmt.Errorf("method %s%s: %w", m.name, m.desc, err)
		}
	}

	v.VisitEnd()
	return nil
}

func (cf *classFile) acceptMethod(v ClassVisitor, m member) error {
	var exceptions []string
	if ex := findAttribute(m.attrs, "Exceptions"); ex != nil {
		n, err := ex.ReadU2()
		if err != nil {
			return err
		}
		exceptions = make([]string, 0, n)
		for i := 0; i < int(n); i++ {
			idx, err := ex.ReadU2()
			if err != nil {
				return err
			}
			name, err := cf.cp.className(idx)
			if err != nil {
				return err
			}
			exceptions = append(exceptions, name)
		}
	}

	mv := v.VisitMethod(m.access, m.name, m.desc, exceptions)
	if mv == nil {
		return nil
	}
	if err := cf.acceptAnnotations(m.attrs, mv.VisitAnnotation); err != nil {
		return err
	}
	for _, attr := range []struct {
		name    string
		visible bool
	}{
		{"RuntimeVisibleParameterAnnotations", true},
		{"RuntimeInvisibleParameterAnnotations", false},
	} {
		if pa := findAttribute(m.attrs, attr.name); pa != nil {
			if err := readParameterAnnotations(pa, cf.cp, attr.visible, mv); err != nil {
				return fmt.Errorf("%s: %w", attr.name, err)
			}
		}
	}
	if code := findAttribute(m.attrs, "Code"); code != nil {
		if err := cf.acceptCode(code, mv); err != nil {
			return err
		}
	}
	mv.VisitEnd()
	return nil
}

// acceptAnnotations reports RuntimeVisibleAnnotations, then
// RuntimeInvisibleAnnotations, through visit.
func (cf *classFile) acceptAnnotations(attrs []rawAttribute, visit func(string, bool) AnnotationVisitor) error {
	if a := findAttribute(attrs, "RuntimeVisibleAnnotations"); a != nil {
		if err := readAnnotations(a, cf.cp, true, visit); err != nil {
			return err
		}
	}
	if a := findAttribute(attrs, "RuntimeInvisibleAnnotations"); a != nil {
		if err := readAnnotations(a, cf.cp, false, visit); err != nil {
			return err
		}
	}
	return nil
}
