package mcp

import (
	"errors"
	"strings"
	"testing"

	"codescope/internal/errs"
)

func TestCheckPath(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"/home/dev/project", true},
		{"src/app.rs", true},
		{"", false},
		{"../secrets", false},
		{"/home/../etc/passwd", false},
		{"/etc/passwd", false},
		{"/proc/self/environ", false},
		{"/sys/kernel", false},
		{"/root/.ssh/id_rsa", false},
	}
	for _, tc := range cases {
		err := checkPath("path", tc.path)
		if tc.ok && err != nil {
			t.Errorf("checkPath(%q) = %v, want nil", tc.path, err)
		}
		if !tc.ok && !errs.IsKind(err, errs.KindInvalidArgument) {
			t.Errorf("checkPath(%q) = %v, want invalid argument", tc.path, err)
		}
	}
}

func TestCheckCollection(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"my-project", true},
		{"repo__main", true},
		{"a", true},
		{strings.Repeat("x", 100), true},
		{"", false},
		{strings.Repeat("x", 101), false},
		{"has space", false},
		{"path/like", false},
		{"semi;colon", false},
	}
	for _, tc := range cases {
		err := checkCollection(tc.name)
		if tc.ok && err != nil {
			t.Errorf("checkCollection(%q) = %v, want nil", tc.name, err)
		}
		if !tc.ok && !errs.IsKind(err, errs.KindInvalidArgument) {
			t.Errorf("checkCollection(%q) = %v, want invalid argument", tc.name, err)
		}
	}
}

func TestCheckQueryRejectsInjection(t *testing.T) {
	for _, q := range []string{
		"<script>alert(1)</script>",
		"javascript:void(0)",
		"x onload=evil()",
		"x ONERROR=evil()",
		"  ",
	} {
		if err := checkQuery(q); !errs.IsKind(err, errs.KindInvalidArgument) {
			t.Errorf("checkQuery(%q) = %v, want invalid argument", q, err)
		}
	}
	if err := checkQuery("how does authentication work"); err != nil {
		t.Errorf("plain query rejected: %v", err)
	}
}

func TestToolErrorPrefixesKind(t *testing.T) {
	res := toolError(errs.NotFound("operation", "op-1"))
	text := resultText(t, res)
	if !res.IsError {
		t.Error("result not marked as error")
	}
	if !strings.HasPrefix(text, "not_found:") {
		t.Errorf("error text = %q, want not_found prefix", text)
	}

	res = toolError(errors.New("disk on fire"))
	if text := resultText(t, res); !strings.HasPrefix(text, "internal:") {
		t.Errorf("error text = %q, want internal prefix", text)
	}
}
