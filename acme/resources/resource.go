// Package resources implements the ACME resource state machines: Account,
// Order, Authorization, Challenge and Certificate. Resources are bound to
// a Login and cache the server's JSON representation; callers refresh the
// cache with Update before reading state.
package resources

import (
	"time"

	"github.com/sgrant/acmeclient/acme"
	"github.com/sgrant/acmeclient/acme/client"
	"github.com/sgrant/acmeclient/acme/jsondoc"
)

// How long to wait between poll attempts when the server sends no
// Retry-After header.
const defaultPollInterval = 3 * time.Second

// Resource is the state shared by every ACME resource: the canonical
// location URL, the Login used to fetch it, the cached JSON document, and
// the server's polling back-pressure deadline.
//
// The location URL never changes after creation.
type Resource struct {
	login      *client.Login
	location   string
	doc        *jsondoc.Value
	retryAfter time.Time
}

func newResource(login *client.Login, location string) Resource {
	return Resource{login: login, location: location}
}

// Location returns the resource's canonical URL.
func (r *Resource) Location() string {
	return r.location
}

// Login returns the Login the resource is bound to.
func (r *Resource) Login() *client.Login {
	return r.login
}

// RetryAfter returns the instant from the last response's Retry-After
// header, or the zero time when the server sent none.
func (r *Resource) RetryAfter() time.Time {
	return r.retryAfter
}

// Loaded reports whether the resource has been fetched at least once.
func (r *Resource) Loaded() bool {
	return r.doc != nil
}

// requireLoaded returns a usage error when the resource was never fetched.
func (r *Resource) requireLoaded() error {
	if !r.Loaded() {
		return &acme.NotLoadedError{Location: r.location}
	}
	return nil
}

// fetch POST-as-GETs the resource URL, replaces the cached document and
// refreshes the Retry-After deadline.
func (r *Resource) fetch() (*jsondoc.Value, error) {
	conn := r.login.Session().Connect()
	if err := conn.SendSignedPostAsGet(r.location, r.login); err != nil {
		return nil, err
	}
	return r.applyResponse(conn)
}

// applyResponse stores the response document of conn as the resource's
// cached state.
func (r *Resource) applyResponse(conn *client.Connection) (*jsondoc.Value, error) {
	doc, err := conn.JSON()
	if err != nil {
		return nil, err
	}
	r.doc = doc
	if retryAfter, ok := conn.RetryAfter(); ok {
		r.retryAfter = retryAfter
	} else {
		r.retryAfter = time.Time{}
	}
	return doc, nil
}

// waitRetryAfter sleeps until the server's Retry-After deadline, or for the
// default poll interval when the server sent none. It returns false when
// waiting would pass the overall deadline.
func (r *Resource) waitRetryAfter(deadline time.Time) bool {
	wakeAt := r.retryAfter
	if wakeAt.IsZero() {
		wakeAt = time.Now().Add(defaultPollInterval)
	}
	if wakeAt.After(deadline) {
		return false
	}
	time.Sleep(time.Until(wakeAt))
	return true
}
