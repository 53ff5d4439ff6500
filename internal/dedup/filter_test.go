package dedup

import (
	"errors"
	"regexp"
	"testing"
)

func TestFilter_Accept(t *testing.T) {
	tests := []struct {
		name    string
		include string
		exclude string
		path    string
		want    bool
	}{
		{name: "exclude wins over include", include: `.*\.txt$`, exclude: `tmp`, path: "a/tmp/f.txt", want: false},
		{name: "include matches", include: `.*\.txt$`, exclude: `tmp`, path: "a/f.txt", want: true},
		{name: "include does not match", include: `.*\.txt$`, exclude: `tmp`, path: "a/f.md", want: false},
		{name: "no patterns accepts everything", path: "anything/at/all", want: true},
		{name: "exclude only", exclude: `\.git/`, path: "repo/.git/config", want: false},
		{name: "exclude only, no match", exclude: `\.git/`, path: "repo/main.go", want: true},
		{name: "include only", include: `^/photos/`, path: "/photos/a.jpg", want: true},
		{name: "invalid utf-8 rejected", path: "bad\xff\xfename", want: false},
		{name: "invalid utf-8 rejected even when include matches", include: `name`, path: "bad\xffname", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := CompileFilter(tt.include, tt.exclude)
			if err != nil {
				t.Fatalf("CompileFilter() error = %v", err)
			}
			if got := f.Accept(tt.path); got != tt.want {
				t.Errorf("Accept(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestFilter_nil(t *testing.T) {
	var f *Filter
	if !f.Accept("/some/file") {
		t.Error("nil filter rejected a valid path")
	}
	if f.Accept("\xff") {
		t.Error("nil filter accepted an invalid utf-8 path")
	}
}

func TestNewFilter_acceptsAnyMatcher(t *testing.T) {
	f := NewFilter(regexp.MustCompile(`\.jpg$`), nil)
	if !f.Accept("/a/b.jpg") {
		t.Error("Accept(/a/b.jpg) = false, want true")
	}
	if f.Accept("/a/b.png") {
		t.Error("Accept(/a/b.png) = true, want false")
	}
}

func TestCompileFilter_invalidPattern(t *testing.T) {
	tests := []struct {
		name     string
		include  string
		exclude  string
		wantKind string
	}{
		{name: "bad include", include: `(`, wantKind: "include"},
		{name: "bad exclude", exclude: `[a-`, wantKind: "exclude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileFilter(tt.include, tt.exclude)
			var perr *PatternError
			if !errors.As(err, &perr) {
				t.Fatalf("CompileFilter() error = %v, want *PatternError", err)
			}
			if perr.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", perr.Kind, tt.wantKind)
			}
			if perr.Unwrap() == nil {
				t.Error("Unwrap() = nil, want regexp error")
			}
		})
	}
}
