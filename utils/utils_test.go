package utils

import "testing"

func TestExcludeQuery(t *testing.T) {
	got := ExcludeQuery("acme corp revenue", []string{"used.example.com", "", "old.example.org"})
	want := "acme corp revenue -site:used.example.com -site:old.example.org"
	if got != want {
		t.Fatalf("ExcludeQuery = %q, want %q", got, want)
	}
	if got := ExcludeQuery("q", nil); got != "q" {
		t.Fatalf("no-exclusion query changed: %q", got)
	}
}

func TestUrlQuery(t *testing.T) {
	if got := UrlQuery("a b c"); got != "a+b+c" {
		t.Fatalf("UrlQuery = %q", got)
	}
}

func TestStr(t *testing.T) {
	if Str(nil) != "" {
		t.Fatalf("Str(nil) not empty")
	}
	if Str(42) != "42" {
		t.Fatalf("Str(42) = %q", Str(42))
	}
}
