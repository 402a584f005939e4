// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package descriptor

import (
	"errors"
	"testing"
)

func TestTypeName(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"I", "int"},
		{"Z", "boolean"},
		{"V", "void"},
		{"[[J", "long[][]"},
		{"Ljava/lang/String;", "java.lang.String"},
		{"[Lcom/x/Foo$Bar;", "com.x.Foo$Bar[]"},
		{"", "<malformed:>"},
		{"Q", "<malformed:Q>"},
		{"Ljava/lang/String", "<malformed:Ljava/lang/String>"},
		{"L;", "<malformed:L;>"},
		{"[V", "<malformed:[V>"},
		{"II", "<malformed:II>"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := TypeName(tt.desc); got != tt.want {
				t.Errorf("TypeName(%q) = %q, want %q", tt.desc, got, tt.want)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	params, ret, err := ParseMethod("(I[Ljava/lang/String;Lorg/quartz/JobExecutionContext;)Ljava/util/List;")
	if err != nil {
		t.Fatalf("ParseMethod: %v", err)
	}
	want := []string{"int", "java.lang.String[]", "org.quartz.JobExecutionContext"}
	if len(params) != len(want) {
		t.Fatalf("params = %v, want %v", params, want)
	}
	for i := range want {
		if params[i] != want[i] {
			t.Errorf("params[%d] = %q, want %q", i, params[i], want[i])
		}
	}
	if ret != "java.util.List" {
		t.Errorf("ret = %q, want java.util.List", ret)
	}

	params, ret, err = ParseMethod("()V")
	if err != nil {
		t.Fatalf("ParseMethod(()V): %v", err)
	}
	if len(params) != 0 || ret != "void" {
		t.Errorf("got %v %q, want [] void", params, ret)
	}
}

func TestParseMethod_Malformed(t *testing.T) {
	for _, desc := range []string{"", "V", "(", "(I", "(I)", "(V)V", "(Lx;)VV", "(X)V"} {
		t.Run(desc, func(t *testing.T) {
			_, _, err := ParseMethod(desc)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("ParseMethod(%q) err = %v, want ErrMalformed", desc, err)
			}
		})
	}
}

func TestSignature(t *testing.T) {
	if got := Signature("(JLjava/lang/Long;)V"); got != "(long, java.lang.Long)" {
		t.Errorf("Signature = %q", got)
	}
	if got := Signature("()I"); got != "()" {
		t.Errorf("Signature(()I) = %q, want ()", got)
	}
	if got := Signature("bogus"); got != "(<malformed:bogus>)" {
		t.Errorf("Signature(bogus) = %q", got)
	}
}

func TestNames(t *testing.T) {
	if got := InternalToFQN("com/x/FooService"); got != "com.x.FooService" {
		t.Errorf("InternalToFQN = %q", got)
	}
	if got := DescriptorToFQN("Lorg/springframework/stereotype/Service;"); got != "org.springframework.stereotype.Service" {
		t.Errorf("DescriptorToFQN = %q", got)
	}
	if got := SimpleName("com.x.Outer$Inner"); got != "Inner" {
		t.Errorf("SimpleName nested = %q", got)
	}
	if got := SimpleName("UserMapper"); got != "UserMapper" {
		t.Errorf("SimpleName no package = %q", got)
	}
	if got := PackageName("com.x.Foo"); got != "com.x" {
		t.Errorf("PackageName = %q", got)
	}
}

func TestIsPrimitive(t *testing.T) {
	for _, name := range []string{"int", "void", "boolean[]", "long[][]"} {
		if !IsPrimitive(name) {
			t.Errorf("IsPrimitive(%q) = false", name)
		}
	}
	for _, name := range []string{"java.lang.String", "com.x.Foo[]", "java.lang.Integer"} {
		if IsPrimitive(name) {
			t.Errorf("IsPrimitive(%q) = true", name)
		}
	}
	if got := ElementType("com.x.Foo[][]"); got != "com.x.Foo" {
		t.Errorf("ElementType = %q", got)
	}
}
