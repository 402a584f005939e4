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
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultBeanName derives a Spring bean name from a short class name (see
// ShortClassName): the first letter is lower-cased, unless the first two
// letters are both upper case, in which case the name is kept
// ("URLService"). Nested classes keep their outer class prefix, so
// "Outer.InnerService" becomes "outer.InnerService".
func DefaultBeanName(simpleName string) string {
	if simpleName == "" {
		return ""
	}
	first, n := utf8.DecodeRuneInString(simpleName)
	if n < len(simpleName) {
		second, _ := utf8.DecodeRuneInString(simpleName[n:])
		if unicode.IsUpper(first) && unicode.IsUpper(second) {
			return simpleName
		}
	}
	return string(unicode.ToLower(first)) + simpleName[n:]
}

// ShortClassName strips the package from a dotted fqn and turns nested
// class separators into dots ("com.x.Outer$Inner" -> "Outer.Inner").
func ShortClassName(fqn string) string {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		fqn = fqn[i+1:]
	}
	return strings.ReplaceAll(fqn, "$", ".")
}

// JoinPath combines a controller base path with a handler path: segments
// are joined with "/", a leading slash is enforced, repeated slashes are
// collapsed and a trailing slash is removed except for the root.
func JoinPath(base, path string) string {
	joined := "/" + strings.Trim(base, " ") + "/" + strings.Trim(path, " ")

	var b strings.Builder
	b.Grow(len(joined))
	prevSlash := false
	for i := 0; i < len(joined); i++ {
		c := joined[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}

	out := b.String()
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}
