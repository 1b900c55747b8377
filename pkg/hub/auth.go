package hub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/sca-tools/bdreport/pkg/types"
)

// expirySkew is subtracted from the server-reported token lifetime so a
// bearer token is refreshed before it actually expires mid-request.
const expirySkew = 30 * time.Second

// tokenSource exchanges a long-lived API token for a short-lived bearer token.
// It implements oauth2.TokenSource so it can be wrapped in an
// oauth2.ReuseTokenSource, which caches the bearer until it goes stale.
type tokenSource struct {
	httpClient types.HTTPClientInterface
	baseURL    string
	apiToken   string
}

type authResponse struct {
	BearerToken           string `json:"bearerToken"`
	ExpiresInMilliseconds int64  `json:"expiresInMilliseconds"`
}

// Token performs the token exchange against /api/tokens/authenticate.
func (ts *tokenSource) Token() (*oauth2.Token, error) {
	req, err := http.NewRequest(http.MethodPost, ts.baseURL+"/api/tokens/authenticate", nil) //nolint:noctx
	if err != nil {
		return nil, fmt.Errorf("error creating authenticate request: %w", err)
	}
	req.Header.Set("Authorization", "token "+ts.apiToken)
	req.Header.Set("Accept", "application/vnd.blackducksoftware.user-4+json")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error authenticating: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token authentication failed with status %d: check the API token and its permissions",
			resp.StatusCode)
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("error parsing authenticate response: %w", err)
	}
	if ar.BearerToken == "" {
		return nil, fmt.Errorf("authenticate response contained no bearer token")
	}

	tok := &oauth2.Token{
		AccessToken: ar.BearerToken,
		TokenType:   "Bearer",
	}
	if ar.ExpiresInMilliseconds > 0 {
		tok.Expiry = time.Now().Add(time.Duration(ar.ExpiresInMilliseconds)*time.Millisecond - expirySkew)
	}
	return tok, nil
}
