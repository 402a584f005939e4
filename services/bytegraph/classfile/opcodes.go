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

import "strings"

// Access is a set of JVM access flags.
type Access uint16

const (
	AccPublic       Access = 0x0001
	AccPrivate      Access = 0x0002
	AccProtected    Access = 0x0004
	AccStatic       Access = 0x0008
	AccFinal        Access = 0x0010
	AccSuper        Access = 0x0020
	AccSynchronized Access = 0x0020
	AccVolatile     Access = 0x0040
	AccBridge       Access = 0x0040
	AccTransient    Access = 0x0080
	AccVarargs      Access = 0x0080
	AccNative       Access = 0x0100
	AccInterface    Access = 0x0200
	AccAbstract     Access = 0x0400
	AccStrict       Access = 0x0800
	AccSynthetic    Access = 0x1000
	AccAnnotation   Access = 0x2000
	AccEnum         Access = 0x4000
	AccModule       Access = 0x8000
)

// Has reports whether every flag in f is set.
func (a Access) Has(f Access) bool {
	return a&f == f
}

// Context selects which flags Modifiers reports, since several bits are
// overloaded between classes, fields and methods.
type Context int

const (
	ContextClass Context = iota
	ContextField
	ContextMethod
)

// Modifiers returns the Java keywords for the flags in source order.
// Synthetic, bridge and other flags without a keyword are omitted.
func (a Access) Modifiers(ctx Context) []string {
	mods := make([]string, 0, 4)
	switch {
	case a.Has(AccPublic):
		mods = append(mods, "public")
	case a.Has(AccProtected):
		mods = append(mods, "protected")
	case a.Has(AccPrivate):
		mods = append(mods, "private")
	}
	if a.Has(AccAbstract) && !(ctx == ContextClass && a.Has(AccInterface)) {
		mods = append(mods, "abstract")
	}
	if a.Has(AccStatic) {
		mods = append(mods, "static")
	}
	if a.Has(AccFinal) {
		mods = append(mods, "final")
	}
	switch ctx {
	case ContextField:
		if a.Has(AccTransient) {
			mods = append(mods, "transient")
		}
		if a.Has(AccVolatile) {
			mods = append(mods, "volatile")
		}
	case ContextMethod:
		if a.Has(AccSynchronized) {
			mods = append(mods, "synchronized")
		}
		if a.Has(AccNative) {
			mods = append(mods, "native")
		}
		if a.Has(AccStrict) {
			mods = append(mods, "strictfp")
		}
	}
	return mods
}

// String renders the flags as space separated keywords, for logs.
func (a Access) String() string {
	return strings.Join(a.Modifiers(ContextMethod), " ")
}

// Opcode is a JVM instruction opcode.
type Opcode byte

// Opcodes reported through MethodVisitor, plus the few the decoder treats
// specially.
const (
	OpTableSwitch     Opcode = 0xaa
	OpLookupSwitch    Opcode = 0xab
	OpInvokeVirtual   Opcode = 0xb6
	OpInvokeSpecial   Opcode = 0xb7
	OpInvokeStatic    Opcode = 0xb8
	OpInvokeInterface Opcode = 0xb9
	OpInvokeDynamic   Opcode = 0xba
	OpNew             Opcode = 0xbb
	OpWide            Opcode = 0xc4
	OpIinc            Opcode = 0x84
	OpReturn          Opcode = 0xb1
)

// String returns the mnemonic of the invoke opcodes, or a hex form.
func (o Opcode) String() string {
	switch o {
	case OpInvokeVirtual:
		return "invokevirtual"
	case OpInvokeSpecial:
		return "invokespecial"
	case OpInvokeStatic:
		return "invokestatic"
	case OpInvokeInterface:
		return "invokeinterface"
	case OpInvokeDynamic:
		return "invokedynamic"
	case OpNew:
		return "new"
	}
	const hex = "0123456789abcdef"
	return "op_0x" + string([]byte{hex[o>>4], hex[o&0x0f]})
}

// operandSize holds the fixed operand length of every defined opcode, or
// -1 for variable-length and undefined opcodes.
var operandSize = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	set := func(from, to int, n int8) {
		for op := from; op <= to; op++ {
			t[op] = n
		}
	}
	set(0x00, 0x0f, 0) // nop .. dconst_1
	t[0x10] = 1        // bipush
	t[0x11] = 2        // sipush
	t[0x12] = 1        // ldc
	set(0x13, 0x14, 2) // ldc_w, ldc2_w
	set(0x15, 0x19, 1) // iload .. aload
	set(0x1a, 0x35, 0) // iload_0 .. saload
	set(0x36, 0x3a, 1) // istore .. astore
	set(0x3b, 0x83, 0) // istore_0 .. lxor
	t[0x84] = 2        // iinc
	set(0x85, 0x98, 0) // i2l .. dcmpg
	set(0x99, 0xa8, 2) // ifeq .. jsr
	t[0xa9] = 1        // ret
	set(0xac, 0xb1, 0) // ireturn .. return
	set(0xb2, 0xb8, 2) // getstatic .. invokestatic
	set(0xb9, 0xba, 4) // invokeinterface, invokedynamic
	t[0xbb] = 2        // new
	t[0xbc] = 1        // newarray
	t[0xbd] = 2        // anewarray
	set(0xbe, 0xbf, 0) // arraylength, athrow
	set(0xc0, 0xc1, 2) // checkcast, instanceof
	set(0xc2, 0xc3, 0) // monitorenter, monitorexit
	t[0xc5] = 3        // multianewarray
	set(0xc6, 0xc7, 2) // ifnull, ifnonnull
	set(0xc8, 0xc9, 4) // goto_w, jsr_w
	return t
}()
