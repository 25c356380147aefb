package netclient

import (
	"net/http"
)

// Credential is anything which can authenticate an outbound request. A nil
// Credential sends the request unauthenticated.
type Credential interface {
	Apply(req *http.Request)
}

// BearerToken is a personal API token sent as "Authorization: Bearer ...".
type BearerToken string

func (t BearerToken) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+string(t))
}

// BasicAuth is an email plus API key pair, sent as HTTP basic auth.
type BasicAuth struct {
	Email string
	Key   string
}

func (a BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(a.Email, a.Key)
}
