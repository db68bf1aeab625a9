package geoip

import (
	"errors"
	"testing"
)

func TestOpenWithoutPath(t *testing.T) {
	r, err := Open("  ")
	if err != nil || r != nil {
		t.Fatalf("Open = %v, %v; want nil, nil", r, err)
	}
	if _, err := r.CountryCode("8.8.8.8"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CountryCode error = %v, want ErrUnavailable", err)
	}
	if r.Lookup() != nil {
		t.Fatal("nil resolver should not provide a lookup")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(t.TempDir() + "/missing.mmdb"); err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestLocaleForCountry(t *testing.T) {
	cases := map[string]string{"ID": "id", "id": "id", "US": "en", "": "en"}
	for country, want := range cases {
		if got := LocaleForCountry(country); got != want {
			t.Fatalf("LocaleForCountry(%q) = %q, want %q", country, got, want)
		}
	}
}
