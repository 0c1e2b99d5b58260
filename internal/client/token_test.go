package client

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeTokenCanonical(t *testing.T) {
	t.Parallel()

	tokens := []string{"AB12CD", "ZZ99ZZ", "A1B2C3"}
	for _, tok := range tokens {
		lower := NormalizeToken(strings.ToLower(tok))
		padded := NormalizeToken(" " + tok + " ")
		plain := NormalizeToken(tok)
		if lower != plain || padded != plain {
			t.Fatalf("normalize not canonical for %q: lower=%q padded=%q plain=%q", tok, lower, padded, plain)
		}
	}
}

func TestParseToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		want    Token
		wantErr error
	}{
		{name: "canonical", in: "AB12CD", want: "AB12CD"},
		{name: "lowercase", in: "ab12cd", want: "AB12CD"},
		{name: "padded", in: "  ab12cd\n", want: "AB12CD"},
		{name: "empty", in: "", wantErr: ErrEmptyInput},
		{name: "whitespace only", in: "   \t", wantErr: ErrEmptyInput},
		{name: "too short", in: "AB12C", wantErr: ErrInvalidToken},
		{name: "too long", in: "AB12CDE", wantErr: ErrInvalidToken},
		{name: "bad charset", in: "AB-2CD", wantErr: ErrInvalidToken},
	}

	for _, tc := range cases {
		got, err := ParseToken(tc.in)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: err=%v want=%v", tc.name, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got=%q want=%q", tc.name, got, tc.want)
		}
	}
}

func TestTokenFromScanPayload(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		in      string
		want    Token
		wantErr error
	}{
		{name: "share url fragment", in: "https://share.example/#ab12cd", want: "AB12CD"},
		{name: "share url with path", in: "https://share.example/s#ZZ99ZZ", want: "ZZ99ZZ"},
		{name: "raw token fallback", in: "ab12cd", want: "AB12CD"},
		{name: "url without fragment", in: "https://share.example/", wantErr: ErrInvalidToken},
		{name: "empty", in: "", wantErr: ErrEmptyInput},
	}

	for _, tc := range cases {
		got, err := TokenFromScanPayload(tc.in)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: err=%v want=%v", tc.name, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected err: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got=%q want=%q", tc.name, got, tc.want)
		}
	}
}

func TestTokenFromShareURL(t *testing.T) {
	t.Parallel()

	if got, err := TokenFromShareURL("https://share.example/#AB12CD"); err != nil || got != "AB12CD" {
		t.Fatalf("got=%q err=%v", got, err)
	}
	if _, err := TokenFromShareURL("https://share.example/"); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("fragmentless url: err=%v want ErrEmptyInput", err)
	}
}
