package resources

import (
	"fmt"
	"time"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/client"
	"github.com/sgrant/acmeclient/acme/jsondoc"
)

// Authorization represents an account's authorization to issue for
// a single identifier, proven by completing one of its challenges.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.4
type Authorization struct {
	Resource
	// The identifier this authorization covers. For wildcard orders the
	// value has no "*." prefix and Wildcard is true instead.
	Identifier acme.Identifier
	// The status of this authorization: pending, valid, invalid,
	// deactivated, expired or revoked.
	Status acme.Status
	// The time at which the server considers the authorization expired.
	Expires time.Time
	// True when the authorization was created for a wildcard identifier.
	Wildcard bool
	// The challenges the client may fulfill to prove control. For valid
	// authorizations only the validated challenge is present.
	Challenges []*Challenge
}

// NewAuthorization binds an authorization URL to a login.
func NewAuthorization(login *client.Login, authzURL string) *Authorization {
	return &Authorization{Resource: newResource(login, authzURL)}
}

// Update fetches the authorization's current server-side state.
func (a *Authorization) Update() error {
	doc, err := a.fetch()
	if err != nil {
		return err
	}
	return a.unmarshal(doc)
}

func (a *Authorization) unmarshal(doc *jsondoc.Value) error {
	var err error
	if a.Identifier, err = doc.Get("identifier").AsIdentifier(); err != nil {
		return err
	}
	if a.Status, err = doc.Get("status").AsStatus(); err != nil {
		return err
	}
	if expires, ok := doc.Optional("expires"); ok {
		if a.Expires, err = expires.AsInstant(); err != nil {
			return err
		}
	}
	a.Wildcard = false
	if wildcard, ok := doc.Optional("wildcard"); ok {
		if a.Wildcard, err = wildcard.AsBool(); err != nil {
			return err
		}
	}

	challenges, err := doc.Get("challenges").AsArray()
	if err != nil {
		return err
	}
	a.Challenges = a.Challenges[:0]
	for _, challengeDoc := range challenges {
		challengeURL, err := challengeDoc.Get("url").AsURL()
		if err != nil {
			return err
		}
		challenge := NewChallenge(a.Login(), challengeURL.String(), "")
		if err := challenge.unmarshal(challengeDoc); err != nil {
			return err
		}
		a.Challenges = append(a.Challenges, challenge)
	}
	return nil
}

// FindChallenge returns the challenge of the given type. It is an error if
// the authorization has no such challenge, or was never loaded.
func (a *Authorization) FindChallenge(challengeType string) (*Challenge, error) {
	if err := a.requireLoaded(); err != nil {
		return nil, err
	}
	for _, challenge := range a.Challenges {
		if challenge.Type == challengeType {
			return challenge, nil
		}
	}
	return nil, fmt.Errorf("authorization %s has no %q challenge",
		a.Location(), challengeType)
}

// Deactivate relinquishes the authorization so it can no longer be used for
// issuance. See https://tools.ietf.org/html/rfc8555#section-7.5.2
func (a *Authorization) Deactivate() error {
	claims := jsondoc.NewBuilder()
	claims.Put("status", string(acme.StatusDeactivated))

	conn := a.Login().Session().Connect()
	if err := conn.SendSignedRequest(a.Location(), claims, a.Login()); err != nil {
		return err
	}

	doc, err := a.applyResponse(conn)
	if err != nil {
		return err
	}
	return a.unmarshal(doc)
}

// Poll updates the authorization until it leaves the pending state,
// honoring the server's Retry-After header, for at most timeout.
func (a *Authorization) Poll(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if !a.Loaded() {
			if err := a.Update(); err != nil {
				return err
			}
		}
		if a.Status != acme.StatusPending && a.Status != acme.StatusUnknown {
			return nil
		}
		if !a.waitRetryAfter(deadline) {
			return fmt.Errorf("authorization %s was still pending at the deadline", a.Location())
		}
		if err := a.Update(); err != nil {
			return err
		}
	}
}
