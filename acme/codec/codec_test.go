package codec

import (
	"bytes"
	"crypto/sha256"
	"strings"
	"testing"
	"time"
)

func TestBase64URLRoundTrip(t *testing.T) {
	tests := [][]byte{
		{},
		{0x00},
		{0xff, 0xfe, 0xfd},
		[]byte("hello world"),
		bytes.Repeat([]byte{0xab}, 100),
	}

	for _, input := range tests {
		encoded := Base64URLEncode(input)
		if strings.ContainsAny(encoded, "=+/") {
			t.Errorf("Base64URLEncode(%x) = %q contains padding or non-URL characters", input, encoded)
		}
		decoded, err := Base64URLDecode(encoded)
		if err != nil {
			t.Fatalf("Base64URLDecode(%q): %s", encoded, err)
		}
		if !bytes.Equal(decoded, input) {
			t.Errorf("round trip of %x gave %x", input, decoded)
		}
	}
}

func TestSHA256(t *testing.T) {
	expected := sha256.Sum256([]byte("acme"))
	if got := SHA256([]byte("acme")); !bytes.Equal(got, expected[:]) {
		t.Errorf("SHA256 mismatch: %x != %x", got, expected)
	}
	if len(SHA256(nil)) != 32 {
		t.Errorf("SHA256 digest is not 32 bytes")
	}
}

func TestToACE(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"example.org", "example.org", false},
		{"ExAmPlE.oRg", "example.org", false},
		{"bücher.de", "xn--bcher-kva.de", false},
		{"*.bücher.de", "*.xn--bcher-kva.de", false},
		{"点看.cn", "xn--c1yn36f.cn", false},
		{"example..org", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ToACE(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ToACE(%q) = %q, expected an error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToACE(%q): %s", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ToACE(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("delta seconds", func(t *testing.T) {
		when, err := ParseRetryAfter("120", now)
		if err != nil {
			t.Fatalf("ParseRetryAfter: %s", err)
		}
		if !when.Equal(now.Add(120 * time.Second)) {
			t.Errorf("got %s", when)
		}
	})

	t.Run("http date", func(t *testing.T) {
		when, err := ParseRetryAfter("Fri, 01 Mar 2024 13:30:00 GMT", now)
		if err != nil {
			t.Fatalf("ParseRetryAfter: %s", err)
		}
		if !when.Equal(time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC)) {
			t.Errorf("got %s", when)
		}
	})

	t.Run("empty", func(t *testing.T) {
		when, err := ParseRetryAfter("", now)
		if err != nil || !when.IsZero() {
			t.Errorf("got %s, %v", when, err)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := ParseRetryAfter("next tuesday", now); err == nil {
			t.Errorf("expected an error")
		}
		if _, err := ParseRetryAfter("-5", now); err == nil {
			t.Errorf("expected an error for a negative delta")
		}
	})
}

func TestWritePEM(t *testing.T) {
	der := bytes.Repeat([]byte{0x42}, 100)

	var buf bytes.Buffer
	if err := WritePEM(&buf, "CERTIFICATE", der); err != nil {
		t.Fatalf("WritePEM: %s", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "-----BEGIN CERTIFICATE-----\n") {
		t.Errorf("missing BEGIN marker:\n%s", out)
	}
	if !strings.HasSuffix(out, "-----END CERTIFICATE-----\n") {
		t.Errorf("missing END marker:\n%s", out)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if len(line) > 64 {
			t.Errorf("line longer than 64 columns: %q", line)
		}
	}
}
