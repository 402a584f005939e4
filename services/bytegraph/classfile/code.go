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
	"encoding/binary"
	"fmt"
)

// lineEntry is one LineNumberTable row.
type lineEntry struct {
	pc   int
	line int
}

// acceptCode walks the instruction stream of a Code attribute, reporting
// line numbers and call instructions to mv.
func (cf *classFile) acceptCode(br *binaryReader, mv MethodVisitor) error {
	if err := br.Skip(4); err != nil { // max_stack, max_locals
		return err
	}
	codeLen, err := br.ReadU4()
	if err != nil {
		return err
	}
	codeStart := br.Offset()
	code, err := br.ReadNBytes(int(codeLen))
	if err != nil {
		return err
	}
	excLen, err := br.ReadU2()
	if err != nil {
		return err
	}
	if err := br.Skip(int(excLen) * 8); err != nil {
		return err
	}
	attrs, err := readAttributes(br, cf.cp)
	if err != nil {
		return fmt.Errorf("code attributes: %w", err)
	}

	lines, err := readLineNumbers(attrs)
	if err != nil {
		return err
	}
	next := 0

	for pc := 0; pc < len(code); {
		for next < len(lines) && lines[next].pc <= pc {
			if lines[next].pc == pc {
				mv.VisitLineNumber(lines[next].line)
			}
			next++
		}

		op := Opcode(code[pc])
		size, err := instructionSize(code, pc)
		if err != nil {
			return fmt.Errorf("%w at offset %d", err, codeStart+pc)
		}

		switch op {
		case OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic, OpInvokeInterface:
			idx := binary.BigEndian.Uint16(code[pc+1:])
			owner, name, desc, itf, err := cf.cp.memberRef(idx)
			if err != nil {
				return fmt.Errorf("%s at offset %d: %w", op, codeStart+pc, err)
			}
			mv.VisitMethodInsn(op, owner, name, desc, itf || op == OpInvokeInterface)
		case OpInvokeDynamic:
			idx := binary.BigEndian.Uint16(code[pc+1:])
			c, err := cf.cp.entry(idx, tagInvokeDynamic)
			if err != nil {
				return fmt.Errorf("invokedynamic at offset %d: %w", codeStart+pc, err)
			}
			name, desc, err := cf.cp.nameAndType(c.ref2)
			if err != nil {
				return fmt.Errorf("invokedynamic at offset %d: %w", codeStart+pc, err)
			}
			bsm, args := cf.cp.siteBootstrap(c.ref1)
			mv.VisitInvokeDynamicInsn(name, desc, bsm, args)
		}
		pc += size
	}
	return nil
}

// readLineNumbers merges every LineNumberTable attribute, ordered by pc.
// Rows sharing a pc keep their table order.
func readLineNumbers(attrs []rawAttribute) ([]lineEntry, error) {
	var lines []lineEntry
	for _, a := range attrs {
		if a.name != "LineNumberTable" {
			continue
		}
		br := *a.data
		n, err := br.ReadU2()
		if err != nil {
			return nil, fmt.Errorf("LineNumberTable: %w", err)
		}
		for i := 0; i < int(n); i++ {
			pc, err := br.ReadU2()
			if err != nil {
				return nil, fmt.Errorf("LineNumberTable: %w", err)
			}
			line, err := br.ReadU2()
			if err != nil {
				return nil, fmt.Errorf("LineNumberTable: %w", err)
			}
			lines = append(lines, lineEntry{pc: int(pc), line: int(line)})
		}
	}
	sortLines(lines)
	return lines, nil
}

// sortLines is a stable insertion sort; tables are short and nearly sorted.
func sortLines(lines []lineEntry) {
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j].pc < lines[j-1].pc; j-- {
			lines[j], lines[j-1] = lines[j-1], lines[j]
		}
	}
}

// instructionSize returns the total length of the instruction at pc,
// opcode included.
func instructionSize(code []byte, pc int) (int, error) {
	op := Opcode(code[pc])
	var size int
	switch op {
	case OpTableSwitch:
		p := pc + 1 + padding(pc)
		if p+12 > len(code) {
			return 0, fmt.Errorf("%w: truncated tableswitch", ErrBadCode)
		}
		low := int32(binary.BigEndian.Uint32(code[p+4:]))
		high := int32(binary.BigEndian.Uint32(code[p+8:]))
		if high < low {
			return 0, fmt.Errorf("%w: tableswitch high %d < low %d", ErrBadCode, high, low)
		}
		size = p + 12 + int(int64(high)-int64(low)+1)*4 - pc
	case OpLookupSwitch:
		p := pc + 1 + padding(pc)
		if p+8 > len(code) {
			return 0, fmt.Errorf("%w: truncated lookupswitch", ErrBadCode)
		}
		npairs := int32(binary.BigEndian.Uint32(code[p+4:]))
		if npairs < 0 {
			return 0, fmt.Errorf("%w: lookupswitch npairs %d", ErrBadCode, npairs)
		}
		size = p + 8 + int(npairs)*8 - pc
	case OpWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("%w: truncated wide", ErrBadCode)
		}
		if Opcode(code[pc+1]) == OpIinc {
			size = 6
		} else {
			size = 4
		}
	default:
		n := operandSize[op]
		if n < 0 {
			return 0, fmt.Errorf("%w: undefined opcode 0x%02x", ErrBadCode, byte(op))
		}
		size = 1 + int(n)
	}
	if pc+size > len(code) {
		return 0, fmt.Errorf("%w: instruction 0x%02x overruns code", ErrBadCode, byte(op))
	}
	return size, nil
}

// padding returns the alignment bytes after a switch opcode at pc.
func padding(pc int) int {
	return (4 - (pc+1)%4) % 4
}
