package usecase

import (
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/oauth2"
)

const (
	// Headers required by the GitHub REST API on every request
	acceptHeader       = "application/vnd.github+json"
	apiVersionHeader   = "X-GitHub-Api-Version"
	apiVersion         = "2022-11-28"
	defaultHTTPTimeout = 30 * time.Second
)

// TokenEnvVars lists the environment variables searched for the API token, in order.
var TokenEnvVars = []string{"GITHUB_TOKEN", "TOKEN"}

// ResolveToken returns explicit when set, otherwise the first non-empty token
// environment variable. A missing token is a configuration error so that no
// unauthenticated request is ever sent.
func ResolveToken(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	for _, key := range TokenEnvVars {
		if v := os.Getenv(key); v != "" {
			return v, nil
		}
	}
	return "", domain.ErrConfiguration.Wrap(
		goerr.New("GitHub token is not set; export GITHUB_TOKEN or TOKEN, or pass --token"))
}

// NewHTTPClient builds the client used for every GitHub API call: bearer
// authentication over a transport that pins the API headers and counts
// requests against the Session in the request context.
func NewHTTPClient(token string, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = timeout
	client.Transport = &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		Base:   &apiTransport{base: client.Transport},
	}
	return client
}

type apiTransport struct {
	base http.RoundTripper
}

func (t *apiTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	r := req.Clone(req.Context())
	r.Header.Set("Accept", acceptHeader)
	r.Header.Set(apiVersionHeader, apiVersion)

	if s := SessionFrom(r.Context()); s != nil {
		s.countRequest()
	}
	return t.base.RoundTrip(r)
}
