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

import (
	"fmt"
	"math"
)

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// constant is one constant pool slot. Index fields are interpreted per tag;
// the second slot of a long or double has tag 0.
type constant struct {
	tag  uint8
	ref1 uint16
	ref2 uint16
	str  string
	num  uint64
}

type constantPool struct {
	entries []constant
	// bootstraps is filled from the BootstrapMethods attribute before any
	// Dynamic constant is resolved.
	bootstraps []bootstrapMethod
}

type bootstrapMethod struct {
	handle uint16
	args   []uint16
}

func readConstantPool(br *binaryReader) (*constantPool, error) {
	count, err := br.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("reading constant pool count: %w", err)
	}
	cp := &constantPool{entries: make([]constant, count)}
	for i := 1; i < int(count); i++ {
		off := br.Offset()
		tag, err := br.ReadU1()
		if err != nil {
			return nil, fmt.Errorf("reading constant %d: %w", i, err)
		}
		c := constant{tag: tag}
		switch tag {
		case tagUtf8:
			n, err := br.ReadU2()
			if err != nil {
				return nil, fmt.Errorf("reading constant %d: %w", i, err)
			}
			raw, err := br.ReadNBytes(int(n))
			if err != nil {
				return nil, fmt.Errorf("reading constant %d: %w", i, err)
			}
			if c.str, err = decodeModifiedUTF8(raw); err != nil {
				return nil, fmt.Errorf("constant %d at offset %d: %w", i, off, err)
			}
		case tagInteger, tagFloat:
			v, err := br.ReadU4()
			if err != nil {
				return nil, fmt.Errorf("reading constant %d: %w", i, err)
			}
			c.num = uint64(v)
		case tagLong, tagDouble:
			v, err := br.ReadU8()
			if err != nil {
				return nil, fmt.Errorf("reading constant %d: %w", i, err)
			}
			c.num = v
			cp.entries[i] = c
			i++
			continue
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			if c.ref1, err = br.ReadU2(); err != nil {
				return nil, fmt.Errorf("reading constant %d: %w", i, err)
			}
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			if c.ref1, err = br.ReadU2(); err != nil {
				return nil, fmt.Errorf("reading constant %d: %w", i, err)
			}
			if c.ref2, err = br.ReadU2(); err != nil {
				return nil, fmt.Errorf("reading constant %d: %w", i, err)
			}
		case tagMethodHandle:
			kind, err := br.ReadU1()
			if err != nil {
				return nil, fmt.Errorf("reading constant %d: %w", i, err)
			}
			c.num = uint64(kind)
			if c.ref1, err = br.ReadU2(); err != nil {
				return nil, fmt.Errorf("reading constant %d: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("%w: unknown tag %d for constant %d at offset %d", ErrBadConstant, tag, i, off)
		}
		cp.entries[i] = c
	}
	return cp, nil
}

func (cp *constantPool) entry(i uint16, tag uint8) (constant, error) {
	if i == 0 || int(i) >= len(cp.entries) {
		return constant{}, fmt.Errorf("%w: index %d out of range", ErrBadConstant, i)
	}
	c := cp.entries[i]
	if c.tag != tag {
		return constant{}, fmt.Errorf("%w: index %d has tag %d, want %d", ErrBadConstant, i, c.tag, tag)
	}
	return c, nil
}

func (cp *constantPool) utf8(i uint16) (string, error) {
	c, err := cp.entry(i, tagUtf8)
	if err != nil {
		return "", err
	}
	return c.str, nil
}

// className resolves a CONSTANT_Class to its internal name.
func (cp *constantPool) className(i uint16) (string, error) {
	c, err := cp.entry(i, tagClass)
	if err != nil {
		return "", err
	}
	return cp.utf8(c.ref1)
}

func (cp *constantPool) nameAndType(i uint16) (string, string, error) {
	c, err := cp.entry(i, tagNameAndType)
	if err != nil {
		return "", "", err
	}
	name, err := cp.utf8(c.ref1)
	if err != nil {
		return "", "", err
	}
	desc, err := cp.utf8(c.ref2)
	if err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// memberRef resolves a Fieldref, Methodref or InterfaceMethodref.
func (cp *constantPool) memberRef(i uint16) (owner, name, desc string, isInterface bool, err error) {
	if i == 0 || int(i) >= len(cp.entries) {
		return "", "", "", false, fmt.Errorf("%w: member ref %d out of range", ErrBadConstant, i)
	}
	c := cp.entries[i]
	switch c.tag {
	case tagFieldref, tagMethodref, tagInterfaceMethodref:
	default:
		return "", "", "", false, fmt.Errorf("%w: index %d is not a member ref (tag %d)", ErrBadConstant, i, c.tag)
	}
	if owner, err = cp.className(c.ref1); err != nil {
		return "", "", "", false, err
	}
	if name, desc, err = cp.nameAndType(c.ref2); err != nil {
		return "", "", "", false, err
	}
	return owner, name, desc, c.tag == tagInterfaceMethodref, nil
}

func (cp *constantPool) handle(i uint16) (Handle, error) {
	c, err := cp.entry(i, tagMethodHandle)
	if err != nil {
		return Handle{}, err
	}
	owner, name, desc, itf, err := cp.memberRef(c.ref1)
	if err != nil {
		return Handle{}, err
	}
	return Handle{Kind: HandleKind(c.num), Owner: owner, Name: name, Desc: desc, IsInterface: itf}, nil
}

// maxDynamicDepth bounds nested Dynamic constant resolution.
const maxDynamicDepth = 8

// loadable resolves a loadable constant: a ConstantValue, an ldc operand or
// a bootstrap argument.
func (cp *constantPool) loadable(i uint16) (any, error) {
	return cp.resolve(i, 0)
}

func (cp *constantPool) resolve(i uint16, depth int) (any, error) {
	if i == 0 || int(i) >= len(cp.entries) {
		return nil, fmt.Errorf("%w: constant %d out of range", ErrBadConstant, i)
	}
	c := cp.entries[i]
	switch c.tag {
	case tagInteger:
		return int32(uint32(c.num)), nil
	case tagFloat:
		return math.Float32frombits(uint32(c.num)), nil
	case tagLong:
		return int64(c.num), nil
	case tagDouble:
		return math.Float64frombits(c.num), nil
	case tagString:
		return cp.utf8(c.ref1)
	case tagClass:
		name, err := cp.utf8(c.ref1)
		if err != nil {
			return nil, err
		}
		return Type{Descriptor: objectDescriptor(name)}, nil
	case tagMethodType:
		desc, err := cp.utf8(c.ref1)
		if err != nil {
			return nil, err
		}
		return Type{Descriptor: desc}, nil
	case tagMethodHandle:
		return cp.handle(i)
	case tagDynamic:
		if depth >= maxDynamicDepth {
			return nil, fmt.Errorf("%w: dynamic constant %d nested too deeply", ErrBadConstant, i)
		}
		return cp.dynamic(c, depth+1)
	}
	return nil, fmt.Errorf("%w: constant %d (tag %d) is not loadable", ErrBadConstant, i, c.tag)
}

func (cp *constantPool) dynamic(c constant, depth int) (ConstantDynamic, error) {
	name, desc, err := cp.nameAndType(c.ref2)
	if err != nil {
		return ConstantDynamic{}, err
	}
	bsm, args, err := cp.bootstrap(c.ref1, depth)
	if err != nil {
		return ConstantDynamic{}, err
	}
	return ConstantDynamic{Name: name, Desc: desc, Bootstrap: bsm, Args: args}, nil
}

// bootstrap resolves entry i of the BootstrapMethods attribute.
func (cp *constantPool) bootstrap(i uint16, depth int) (Handle, []any, error) {
	if int(i) >= len(cp.bootstraps) {
		return Handle{}, nil, fmt.Errorf("%w: bootstrap method %d out of range (%d defined)",
			ErrBadConstant, i, len(cp.bootstraps))
	}
	bm := cp.bootstraps[i]
	h, err := cp.handle(bm.handle)
	if err != nil {
		return Handle{}, nil, err
	}
	args := make([]any, 0, len(bm.args))
	for _, a := range bm.args {
		v, err := cp.resolve(a, depth)
		if err != nil {
			return Handle{}, nil, fmt.Errorf("bootstrap method %d: %w", i, err)
		}
		args = append(args, v)
	}
	return h, args, nil
}

// siteBootstrap resolves the bootstrap method of an invokedynamic site
// without failing: an unresolvable method handle yields a zero Handle and
// unresolvable arguments become BadConstant.
func (cp *constantPool) siteBootstrap(i uint16) (Handle, []any) {
	if int(i) >= len(cp.bootstraps) {
		return Handle{}, nil
	}
	bm := cp.bootstraps[i]
	h, err := cp.handle(bm.handle)
	if err != nil {
		h = Handle{}
	}
	args := make([]any, 0, len(bm.args))
	for _, a := range bm.args {
		v, err := cp.resolve(a, 0)
		if err != nil {
			v = BadConstant{Index: a, Err: err}
		}
		args = append(args, v)
	}
	return h, args
}

func objectDescriptor(internal string) string {
	if len(internal) > 0 && internal[0] == '[' {
		return internal
	}
	return "L" + internal + ";"
}
