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

// maxAnnotationDepth bounds nested annotation and array element values.
const maxAnnotationDepth = 32

func readAnnotations(br *binaryReader, cp *constantPool, visible bool, visit func(string, bool) AnnotationVisitor) error {
	n, err := br.ReadU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		typeIdx, err := br.ReadU2()
		if err != nil {
			return err
		}
		desc, err := cp.utf8(typeIdx)
		if err != nil {
			return fmt.Errorf("annotation type: %w", err)
		}
		if err := readElementValuePairs(br, cp, visit(desc, visible), 0); err != nil {
			return fmt.Errorf("annotation %s: %w", desc, err)
		}
	}
	return nil
}

func readParameterAnnotations(br *binaryReader, cp *constantPool, visible bool, mv MethodVisitor) error {
	params, err := br.ReadU1()
	if err != nil {
		return err
	}
	for p := 0; p < int(params); p++ {
		visit := func(desc string, visible bool) AnnotationVisitor {
			return mv.VisitParameterAnnotation(p, desc, visible)
		}
		if err := readAnnotations(br, cp, visible, visit); err != nil {
			return fmt.Errorf("parameter %d: %w", p, err)
		}
	}
	return nil
}

// readElementValuePairs reads num_element_value_pairs pairs and ends av.
// A nil av still consumes the bytes.
func readElementValuePairs(br *binaryReader, cp *constantPool, av AnnotationVisitor, depth int) error {
	n, err := br.ReadU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		nameIdx, err := br.ReadU2()
		if err != nil {
			return err
		}
		name, err := cp.utf8(nameIdx)
		if err != nil {
			return fmt.Errorf("element name: %w", err)
		}
		if err := readElementValue(br, cp, name, av, depth); err != nil {
			return fmt.Errorf("element %s: %w", name, err)
		}
	}
	if av != nil {
		av.VisitEnd()
	}
	return nil
}

func readElementValue(br *binaryReader, cp *constantPool, name string, av AnnotationVisitor, depth int) error {
	if depth > maxAnnotationDepth {
		return fmt.Errorf("%w: element values nested deeper than %d", ErrBadConstant, maxAnnotationDepth)
	}
	tag, err := br.ReadU1()
	if err != nil {
		return err
	}
	switch tag {
	case 'B', 'C', 'I', 'S', 'Z', 'J', 'F', 'D', 's', 'c':
		idx, err := br.ReadU2()
		if err != nil {
			return err
		}
		v, err := constElementValue(cp, tag, idx)
		if err != nil {
			return err
		}
		if av != nil {
			av.Visit(name, v)
		}
	case 'e':
		typeIdx, err := br.ReadU2()
		if err != nil {
			return err
		}
		constIdx, err := br.ReadU2()
		if err != nil {
			return err
		}
		desc, err := cp.utf8(typeIdx)
		if err != nil {
			return err
		}
		value, err := cp.utf8(constIdx)
		if err != nil {
			return err
		}
		if av != nil {
			av.VisitEnum(name, desc, value)
		}
	case '@':
		typeIdx, err := br.ReadU2()
		if err != nil {
			return err
		}
		desc, err := cp.utf8(typeIdx)
		if err != nil {
			return err
		}
		var nested AnnotationVisitor
		if av != nil {
			nested = av.VisitAnnotation(name, desc)
		}
		return readElementValuePairs(br, cp, nested, depth+1)
	case '[':
		n, err := br.ReadU2()
		if err != nil {
			return err
		}
		var arr AnnotationVisitor
		if av != nil {
			arr = av.VisitArray(name)
		}
		for i := 0; i < int(n); i++ {
			if err := readElementValue(br, cp, "", arr, depth+1); err != nil {
				return err
			}
		}
		if arr != nil {
			arr.VisitEnd()
		}
	default:
		return fmt.Errorf("%w: unknown element value tag %q at offset %d", ErrBadConstant, tag, br.Offset()-1)
	}
	return nil
}

func constElementValue(cp *constantPool, tag uint8, idx uint16) (any, error) {
	switch tag {
	case 's':
		return cp.utf8(idx)
	case 'c':
		desc, err := cp.utf8(idx)
		if err != nil {
			return nil, err
		}
		return Type{Descriptor: desc}, nil
	}

	want := uint8(tagInteger)
	switch tag {
	case 'J':
		want = tagLong
	case 'F':
		want = tagFloat
	case 'D':
		want = tagDouble
	}
	c, err := cp.entry(idx, want)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 'B':
		return int8(int32(uint32(c.num))), nil
	case 'C':
		return uint16(uint32(c.num)), nil
	case 'S':
		return int16(int32(uint32(c.num))), nil
	case 'Z':
		return c.num != 0, nil
	case 'I':
		return int32(uint32(c.num)), nil
	case 'J':
		return int64(c.num), nil
	case 'F':
		return math.Float32frombits(uint32(c.num)), nil
	default:
		return math.Float64frombits(c.num), nil
	}
}
