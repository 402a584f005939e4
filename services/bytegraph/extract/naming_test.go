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

import "testing"

func TestDefaultBeanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FooService", "fooService"},
		{"URLService", "URLService"},
		{"A", "a"},
		{"AB", "AB"},
		{"userMapper", "userMapper"},
		{"Outer.InnerService", "outer.InnerService"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := DefaultBeanName(tt.in); got != tt.want {
				t.Errorf("DefaultBeanName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestShortClassName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"com.x.FooService", "FooService"},
		{"com.x.Outer$Inner", "Outer.Inner"},
		{"com.x.A$B$C", "A.B.C"},
		{"NoPackage", "NoPackage"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ShortClassName(tt.in); got != tt.want {
				t.Errorf("ShortClassName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{"", "", "/"},
		{"/api", "users", "/api/users"},
		{"api/", "/users/", "/api/users"},
		{"//api//", "//v1//users", "/api/v1/users"},
		{"", "/", "/"},
		{"/api", "", "/api"},
	}
	for _, tt := range tests {
		t.Run(tt.base+"|"+tt.path, func(t *testing.T) {
			if got := JoinPath(tt.base, tt.path); got != tt.want {
				t.Errorf("JoinPath(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
			}
		})
	}
}

func TestAttrCollector(t *testing.T) {
	var got Attrs
	av := collect(func(a Attrs) { got = a })
	av.Visit("name", "orders")
	av.Visit("timeout", int32(5))
	av.VisitEnum("propagation", "Lorg/x/Propagation;", "REQUIRES_NEW")
	arr := av.VisitArray("value")
	arr.Visit("", "/a")
	arr.Visit("", "/b")
	arr.VisitEnd()
	if nested := av.VisitAnnotation("nested", "Lorg/x/N;"); nested != nil {
		t.Error("nested annotations should be skipped")
	}
	av.VisitEnd()

	if got.String("name") != "orders" {
		t.Errorf("String(name) = %q", got.String("name"))
	}
	if n, ok := got.Int("timeout"); !ok || n != 5 {
		t.Errorf("Int(timeout) = %d, %v", n, ok)
	}
	if got.String("propagation") != "REQUIRES_NEW" {
		t.Errorf("enum stored as %q", got.String("propagation"))
	}
	if got.String("value") != "/a" {
		t.Errorf("first array element should win, got %q", got.String("value"))
	}
	if s := got.Strings("value"); len(s) != 2 {
		t.Errorf("Strings(value) = %v", s)
	}
	if got.FirstString("path", "value") != "/a" {
		t.Error("FirstString should fall through to value")
	}
	if got.Has("missing") {
		t.Error("Has(missing) = true")
	}
}
