// Package transport holds http.RoundTripper decorators for the upstream client.
package transport

import "net/http"

// BasicAuthRoundTripper adds HTTP basic credentials to every request.
type BasicAuthRoundTripper struct {
	Base     http.RoundTripper
	Username string
	Password string
}

func (b *BasicAuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := b.Base
	if rt == nil {
		rt = http.DefaultTransport
	}
	if b.Username == "" {
		return rt.RoundTrip(req)
	}

	// RoundTrippers must not mutate the caller's request.
	r := req.Clone(req.Context())
	r.SetBasicAuth(b.Username, b.Password)
	return rt.RoundTrip(r)
}
