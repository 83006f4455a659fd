package acme

import (
	"fmt"
	"strings"
)

// Problem is an RFC 7807 problem document returned by the server for failed
// requests. See https://tools.ietf.org/html/rfc8555#section-6.7
type Problem struct {
	// A URN identifying the problem type, usually below
	// "urn:ietf:params:acme:error:".
	Type string `json:"type"`
	// A short human readable summary of the problem type.
	Title string `json:"title,omitempty"`
	// A human readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// A URL pointing to a resource related to this specific occurrence. Used
	// by userActionRequired problems to point at the instructions.
	Instance string `json:"instance,omitempty"`
	// The HTTP status code of the response that carried the problem.
	Status int `json:"status,omitempty"`
	// Per-identifier subproblems for requests covering multiple identifiers.
	// See https://tools.ietf.org/html/rfc8555#section-6.7.1
	Subproblems []Subproblem `json:"subproblems,omitempty"`
}

// Subproblem relates a Problem to the single identifier it applies to.
type Subproblem struct {
	Identifier *Identifier `json:"identifier,omitempty"`
	Problem
}

// ErrorTypePrefix is the URN namespace of ACME error types. See
// https://tools.ietf.org/html/rfc8555#section-6.7
const ErrorTypePrefix = "urn:ietf:params:acme:error:"

// ACME error type suffixes this library treats specially.
const (
	ErrorBadNonce                = "badNonce"
	ErrorRateLimited             = "rateLimited"
	ErrorUserActionRequired      = "userActionRequired"
	ErrorUnsupportedContact      = "unsupportedContact"
	ErrorUnsupportedIdentifier   = "unsupportedIdentifier"
	ErrorExternalAccountRequired = "externalAccountRequired"
	ErrorAccountDoesNotExist     = "accountDoesNotExist"
	ErrorUnauthorized            = "unauthorized"
	ErrorMalformed               = "malformed"
	ErrorBadCSR                  = "badCSR"
)

// IsType reports whether the problem's type URN matches the given ACME error
// suffix (e.g. "badNonce").
func (p *Problem) IsType(suffix string) bool {
	return p != nil && p.Type == ErrorTypePrefix+suffix
}

// TypeSuffix returns the part of the problem type URN after the ACME error
// prefix, or the full type URI for non-ACME problems.
func (p *Problem) TypeSuffix() string {
	return strings.TrimPrefix(p.Type, ErrorTypePrefix)
}

// SubproblemFor returns the subproblem for the given identifier value, if any.
func (p *Problem) SubproblemFor(value string) (Subproblem, bool) {
	for _, sub := range p.Subproblems {
		if sub.Identifier != nil && sub.Identifier.Value == value {
			return sub, true
		}
	}
	return Subproblem{}, false
}

func (p *Problem) String() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s :: %s", p.Type, p.Detail)
	}
	if p.Title != "" {
		return fmt.Sprintf("%s :: %s", p.Type, p.Title)
	}
	return p.Type
}
