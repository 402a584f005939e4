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
	"strconv"

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/descriptor"
)

// Attrs holds the element values of one annotation instance.
//
// Scalars are stored as received, except enum constants (stored as the
// constant name) and class literals (stored as the dotted type name).
// Array elements are stored in order once the array is complete.
type Attrs struct {
	scalars map[string]any
	arrays  map[string][]any
}

// Has reports whether the element was present.
func (a Attrs) Has(name string) bool {
	if _, ok := a.scalars[name]; ok {
		return true
	}
	_, ok := a.arrays[name]
	return ok
}

// String returns a string element. For arrays the first element wins;
// later elements never replace it.
func (a Attrs) String(name string) string {
	if v, ok := a.scalars[name]; ok {
		return scalarString(v)
	}
	for _, v := range a.arrays[name] {
		if s := scalarString(v); s != "" {
			return s
		}
	}
	return ""
}

// FirstString returns the first non-empty String among names.
func (a Attrs) FirstString(names ...string) string {
	for _, n := range names {
		if s := a.String(n); s != "" {
			return s
		}
	}
	return ""
}

// Strings returns every element of an array as strings. A scalar is
// returned as a one-element slice.
func (a Attrs) Strings(name string) []string {
	if v, ok := a.scalars[name]; ok {
		if s := scalarString(v); s != "" {
			return []string{s}
		}
		return nil
	}
	arr := a.arrays[name]
	if len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s := scalarString(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Bool returns a boolean element and whether it was present.
func (a Attrs) Bool(name string) (bool, bool) {
	b, ok := a.scalars[name].(bool)
	return b, ok
}

// Int returns an integral element and whether it was present.
func (a Attrs) Int(name string) (int, bool) {
	switch v := a.scalars[name].(type) {
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint16:
		return int(v), true
	}
	return 0, false
}

func scalarString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int8:
		return strconv.Itoa(int(v))
	case int16:
		return strconv.Itoa(int(v))
	case int32:
		return strconv.Itoa(int(v))
	case int64:
		return strconv.FormatInt(v, 10)
	case uint16:
		return string(rune(v))
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return ""
}

// attrCollector is the attribute sub-visitor handed to the reader for one
// annotation. It calls apply once, on the annotation's terminal callback.
// Nested annotations are skipped.
type attrCollector struct {
	attrs Attrs
	apply func(Attrs)
}

// collect returns an annotation visitor that feeds the collected element
// values to apply.
func collect(apply func(Attrs)) classfile.AnnotationVisitor {
	return &attrCollector{apply: apply}
}

func (c *attrCollector) set(name string, v any) {
	if c.attrs.scalars == nil {
		c.attrs.scalars = make(map[string]any)
	}
	c.attrs.scalars[name] = v
}

func (c *attrCollector) Visit(name string, value any) {
	if t, ok := value.(classfile.Type); ok {
		value = descriptor.TypeName(t.Descriptor)
	}
	c.set(name, value)
}

func (c *attrCollector) VisitEnum(name, desc, value string) {
	c.set(name, value)
}

func (c *attrCollector) VisitAnnotation(name, desc string) classfile.AnnotationVisitor {
	return nil
}

func (c *attrCollector) VisitArray(name string) classfile.AnnotationVisitor {
	return &arrayCollector{name: name, parent: c}
}

func (c *attrCollector) VisitEnd() {
	if c.apply != nil {
		c.apply(c.attrs)
	}
}

// arrayCollector accumulates one array element value and hands it to the
// parent collector on the array's terminal callback.
type arrayCollector struct {
	name   string
	parent *attrCollector
	elems  []any
}

func (a *arrayCollector) Visit(_ string, value any) {
	if t, ok := value.(classfile.Type); ok {
		value = descriptor.TypeName(t.Descriptor)
	}
	a.elems = append(a.elems, value)
}

func (a *arrayCollector) VisitEnum(_, _, value string) {
	a.elems = append(a.elems, value)
}

func (a *arrayCollector) VisitAnnotation(string, string) classfile.AnnotationVisitor {
	return nil
}

func (a *arrayCollector) VisitArray(string) classfile.AnnotationVisitor {
	return nil
}

func (a *arrayCollector) VisitEnd() {
	p := a.parent
	if p.attrs.arrays == nil {
		p.attrs.arrays = make(map[string][]any)
	}
	if _, seen := p.attrs.arrays[a.name]; !seen {
		p.attrs.arrays[a.name] = a.elems
	}
}
