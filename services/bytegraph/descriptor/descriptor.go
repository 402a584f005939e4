// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package descriptor converts JVM type and method descriptors into
// human-readable Java type names.
//
// Every function in this package is total: malformed input produces a
// descriptive fallback string instead of an error or a panic, so a single bad
// descriptor never aborts the analysis of a class file.
package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned by ParseMethod when a method descriptor cannot be decoded.
var ErrMalformed = errors.New("malformed descriptor")

// primitives maps base type characters to Java keywords.
var primitives = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// Malformed returns the fallback name used for an undecodable descriptor.
func Malformed(desc string) string {
	return "<malformed:" + desc + ">"
}

// TypeName converts a field descriptor into a Java type name.
//
// Examples:
//
//	I                   -> int
//	[[J                 -> long[][]
//	Ljava/lang/String;  -> java.lang.String
//	V                   -> void
//
// Malformed descriptors yield Malformed(desc).
func TypeName(desc string) string {
	name, n, ok := readType(desc, 0)
	if !ok || n != len(desc) {
		return Malformed(desc)
	}
	return name
}

// readType decodes one type starting at pos and returns the name and the
// position just past it.
func readType(desc string, pos int) (string, int, bool) {
	dims := 0
	for pos < len(desc) && desc[pos] == '[' {
		dims++
		pos++
	}
	if pos >= len(desc) {
		return "", pos, false
	}

	var base string
	c := desc[pos]
	switch {
	case c == 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end <= 1 {
			return "", pos, false
		}
		base = InternalToFQN(desc[pos+1 : pos+end])
		pos += end + 1
	default:
		p, ok := primitives[c]
		if !ok {
			return "", pos, false
		}
		if c == 'V' && dims > 0 {
			return "", pos, false
		}
		base = p
		pos++
	}
	return base + strings.Repeat("[]", dims), pos, true
}

// ParseMethod splits a method descriptor into parameter type names and the
// return type name.
//
// Inputs:
//
//	desc - A method descriptor such as "(ILjava/lang/String;)V".
//
// Outputs:
//
//	[]string - Parameter type names in declaration order. Never nil on success.
//	string - Return type name.
//	error - ErrMalformed (wrapped) if the descriptor cannot be decoded.
func ParseMethod(desc string) ([]string, string, error) {
	if len(desc) < 3 || desc[0] != '(' {
		return nil, "", fmt.Errorf("%w: %q", ErrMalformed, desc)
	}
	params := make([]string, 0, 4)
	pos := 1
	for pos < len(desc) && desc[pos] != ')' {
		name, next, ok := readType(desc, pos)
		if !ok || name == "void" {
			return nil, "", fmt.Errorf("%w: bad parameter at %d in %q", ErrMalformed, pos, desc)
		}
		params = append(params, name)
		pos = next
	}
	if pos >= len(desc) {
		return nil, "", fmt.Errorf("%w: unterminated parameter list in %q", ErrMalformed, desc)
	}
	ret, end, ok := readType(desc, pos+1)
	if !ok || end != len(desc) {
		return nil, "", fmt.Errorf("%w: bad return type in %q", ErrMalformed, desc)
	}
	return params, ret, nil
}

// Signature converts a method descriptor into a canonical "(T1, T2)" string.
// Malformed descriptors yield "(" + Malformed(desc) + ")".
func Signature(desc string) string {
	params, _, err := ParseMethod(desc)
	if err != nil {
		return "(" + Malformed(desc) + ")"
	}
	return FormatSignature(params)
}

// FormatSignature joins parameter type names into "(T1, T2)".
func FormatSignature(params []string) string {
	return "(" + strings.Join(params, ", ") + ")"
}

// ReturnType returns the return type name of a method descriptor, or
// Malformed(desc).
func ReturnType(desc string) string {
	_, ret, err := ParseMethod(desc)
	if err != nil {
		return Malformed(desc)
	}
	return ret
}

// InternalToFQN converts an internal name ("com/x/Foo$Bar") into a dotted
// fully-qualified name ("com.x.Foo$Bar").
func InternalToFQN(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// DescriptorToFQN converts an annotation or object descriptor
// ("Lorg/x/Ann;") into a dotted name. Non-object descriptors go through
// TypeName.
func DescriptorToFQN(desc string) string {
	if len(desc) > 2 && desc[0] == 'L' && desc[len(desc)-1] == ';' {
		return InternalToFQN(desc[1 : len(desc)-1])
	}
	return TypeName(desc)
}

// SimpleName returns the unqualified class name of a dotted fqn. Nested
// classes return the innermost name ("com.x.Outer$Inner" -> "Inner").
func SimpleName(fqn string) string {
	name := fqn
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '$'); i >= 0 && i < len(name)-1 {
		name = name[i+1:]
	}
	return name
}

// PackageName returns the package part of a dotted fqn, or "".
func PackageName(fqn string) string {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[:i]
	}
	return ""
}

// IsPrimitive reports whether a type name is a primitive, void, or an array
// whose element type is primitive.
func IsPrimitive(typeName string) bool {
	base := strings.TrimRight(typeName, "[]")
	switch base {
	case "byte", "char", "double", "float", "int", "long", "short", "boolean", "void":
		return true
	}
	return false
}

// ElementType strips array suffixes from a type name.
func ElementType(typeName string) string {
	return strings.TrimRight(typeName, "[]")
}
