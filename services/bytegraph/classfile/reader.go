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
	"unicode/utf16"
)

// binaryReader reads big-endian values from an in-memory class file and
// tracks the current offset for error messages.
type binaryReader struct {
	buf []byte
	off int
	// base is the offset of buf[0] within the whole class file.
	base int
}

func newBinaryReader(buf []byte) *binaryReader {
	return &binaryReader{buf: buf}
}

// sub returns a reader over the next n bytes and advances past them.
func (br *binaryReader) sub(n int) (*binaryReader, error) {
	b, err := br.ReadNBytes(n)
	if err != nil {
		return nil, err
	}
	return &binaryReader{buf: b, base: br.base + br.off - n}, nil
}

// Offset returns the absolute offset of the next byte.
func (br *binaryReader) Offset() int {
	return br.base + br.off
}

// Remaining returns the number of unread bytes.
func (br *binaryReader) Remaining() int {
	return len(br.buf) - br.off
}

// ReadNBytes returns the next n bytes without copying.
func (br *binaryReader) ReadNBytes(n int) ([]byte, error) {
	if n < 0 || br.off+n > len(br.buf) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrTruncated, n, br.Offset(), br.Remaining())
	}
	b := br.buf[br.off : br.off+n]
	br.off += n
	return b, nil
}

// ReadU1 reads a single unsigned byte.
func (br *binaryReader) ReadU1() (uint8, error) {
	b, err := br.ReadNBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU2 reads a 2-byte unsigned integer.
func (br *binaryReader) ReadU2() (uint16, error) {
	b, err := br.ReadNBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU4 reads a 4-byte unsigned integer.
func (br *binaryReader) ReadU4() (uint32, error) {
	b, err := br.ReadNBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadU8 reads an 8-byte unsigned integer.
func (br *binaryReader) ReadU8() (uint64, error) {
	b, err := br.ReadNBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Skip advances n bytes.
func (br *binaryReader) Skip(n int) error {
	_, err := br.ReadNBytes(n)
	return err
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8: NUL is encoded as
// 0xC0 0x80 and supplementary characters as surrogate pairs.
func decodeModifiedUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", fmt.Errorf("%w: NUL byte in utf8 constant", ErrBadConstant)
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) || b[i+1]&0xc0 != 0x80 {
				return "", fmt.Errorf("%w: bad 2-byte utf8 sequence", ErrBadConstant)
			}
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0:
			if i+2 >= len(b) || b[i+1]&0xc0 != 0x80 || b[i+2]&0xc0 != 0x80 {
				return "", fmt.Errorf("%w: bad 3-byte utf8 sequence", ErrBadConstant)
			}
			units = append(units, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			return "", fmt.Errorf("%w: invalid utf8 lead byte 0x%02x", ErrBadConstant, c)
		}
	}
	return string(utf16.Decode(units)), nil
}
