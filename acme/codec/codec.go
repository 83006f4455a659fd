// Package codec provides the small encoding utilities shared across the
// library: base64url, SHA-256, IDN to ACE conversion, Retry-After parsing and
// PEM output.
package codec

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// Base64URLEncode returns the unpadded base64url encoding of data, as used
// for all binary values on the ACME wire. See RFC 8555 section 6.1.
func Base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Base64URLDecode decodes an unpadded base64url string.
func Base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// ToACE converts a domain name, which may contain unicode (IDN) labels, to
// its ASCII Compatible Encoding (punycode) form, lowercased. A leading "*."
// wildcard prefix is preserved. Empty labels are rejected.
func ToACE(domain string) (string, error) {
	wildcard := false
	name := domain
	if strings.HasPrefix(name, "*.") {
		wildcard = true
		name = name[2:]
	}

	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return "", fmt.Errorf("invalid domain name %q: empty label", domain)
		}
	}

	ace, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("invalid domain name %q: %s", domain, err)
	}

	if wildcard {
		ace = "*." + ace
	}
	return strings.ToLower(ace), nil
}

// ParseRetryAfter parses a Retry-After header value, which is either
// a non-negative delta of seconds or an HTTP-date, into the instant the
// caller should wait for. An empty header returns the zero time with no
// error.
func ParseRetryAfter(header string, now time.Time) (time.Time, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return time.Time{}, nil
	}

	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return time.Time{}, fmt.Errorf("invalid Retry-After delta %q", header)
		}
		return now.Add(time.Duration(seconds) * time.Second), nil
	}

	when, err := http.ParseTime(header)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid Retry-After value %q", header)
	}
	return when, nil
}

// WritePEM writes der to w as a PEM block with the given label, 64 columns of
// base64 per line between BEGIN and END markers.
func WritePEM(w io.Writer, label string, der []byte) error {
	return pem.Encode(w, &pem.Block{Type: label, Bytes: der})
}
