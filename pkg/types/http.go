package types

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// HTTPClientInterface is an abstraction that allows for easier testing by mocking HTTP responses.
// It defines a single method, Do, which takes an http.Request and returns an http.Response and an error.
type HTTPClientInterface interface {
	Do(req *http.Request) (*http.Response, error)
}

// RealHTTPClient is a concrete implementation of HTTPClientInterface that uses a real http.Client to make requests.
type RealHTTPClient struct {
	Client *http.Client
}

// NewRealHTTPClient creates a new instance of RealHTTPClient.
// When trustCert is true the client skips TLS certificate verification, which is
// required for Black Duck servers running with self-signed certificates.
func NewRealHTTPClient(timeout time.Duration, trustCert bool) *RealHTTPClient {
	transport := http.DefaultTransport
	if trustCert {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // trust_cert opt-in for self-signed servers
		}
	}
	return &RealHTTPClient{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Do sends an HTTP request using the underlying http.Client and returns the response.
// It satisfies the HTTPClientInterface by implementing the Do method.
func (c *RealHTTPClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to do request: %w", err)
	}
	return resp, nil
}
