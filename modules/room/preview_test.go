package room

import (
	"strings"
	"testing"
)

func TestBuildPreview(t *testing.T) {
	tests := []struct {
		name        string
		language    string
		code        string
		contains    []string
		notContains []string
	}{
		{
			name:     "html is served as written",
			language: "html",
			code:     "<h1>Hello</h1>",
			contains: []string{"<h1>Hello</h1>"},
		},
		{
			name:     "css is wrapped in a style element",
			language: "css",
			code:     "body { color: red; }",
			contains: []string{"<style>", "body { color: red; }", "CSS Preview"},
		},
		{
			name:     "javascript is wrapped in a script element",
			language: "javascript",
			code:     "console.log('hi')",
			contains: []string{"console.log('hi')", `<div id="console"></div>`},
		},
		{
			name:        "script closing tag is neutralized",
			language:    "javascript",
			code:        "var s = '</script><b>x</b>'",
			contains:    []string{`<\/script><b>x</b>`},
			notContains: []string{"'</script>"},
		},
		{
			name:     "unsupported language",
			language: "python",
			code:     "print('hi')",
			contains: []string{"Preview not available for python."},
		},
		{
			name:        "language name is escaped",
			language:    "<x>",
			code:        "",
			contains:    []string{"&lt;x&gt;"},
			notContains: []string{"<x>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPreview(tt.language, tt.code)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("BuildPreview() missing %q in:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("BuildPreview() unexpectedly contains %q", unwanted)
				}
			}
		})
	}
}

func TestEscapeRawText(t *testing.T) {
	tests := []struct {
		code    string
		element string
		want    string
	}{
		{"a</style>b", "style", `a<\/style>b`},
		{"a</STYLE>b", "style", `a<\/STYLE>b`},
		{"</script></script>", "script", `<\/script><\/script>`},
		{"no closing", "script", "no closing"},
	}

	for _, tt := range tests {
		if got := escapeRawText(tt.code, tt.element); got != tt.want {
			t.Errorf("escapeRawText(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
