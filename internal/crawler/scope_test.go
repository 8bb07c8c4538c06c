package crawler

import "testing"

// TestScopeInScope tests registrable-domain matching.
func TestScopeInScope(t *testing.T) {
	t.Parallel()

	scope := NewScope([]string{"example.com", "Example.ORG "})

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{name: "exact domain", url: "https://example.com/page", want: true},
		{name: "www subdomain", url: "https://www.example.com/", want: true},
		{name: "deep subdomain", url: "http://a.b.example.com/x", want: true},
		{name: "second domain normalized", url: "https://blog.example.org/post", want: true},
		{name: "other domain", url: "https://example.net/", want: false},
		{name: "suffix lookalike", url: "https://notexample.com/", want: false},
		{name: "unparseable", url: "://bad", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := scope.InScope(tt.url); got != tt.want {
				t.Errorf("InScope(%q) = %t, want %t", tt.url, got, tt.want)
			}
		})
	}
}

// TestScopeEmpty tests that an unset scope allows everything.
func TestScopeEmpty(t *testing.T) {
	t.Parallel()

	var nilScope *Scope
	if !nilScope.InScope("https://anything.test/") {
		t.Error("nil scope denied a URL")
	}
	if !NewScope(nil).InScope("https://anything.test/") {
		t.Error("empty scope denied a URL")
	}
}

// TestScopeBareHost tests entries without a public suffix, like hosts
// used in local testing.
func TestScopeBareHost(t *testing.T) {
	t.Parallel()

	scope := NewScope([]string{"localhost"})
	if !scope.InScope("http://localhost:8080/page") {
		t.Error("bare host entry did not match")
	}
	if scope.InScope("http://example.com/") {
		t.Error("bare host scope matched a foreign domain")
	}
}
