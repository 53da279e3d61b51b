/* Copyright 2025 Everjot Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package remote provides interfaces for interacting with the everjot server
// and the data structures for responses. Documents crossing this boundary are
// validated explicitly, so a malformed remote record fails loudly at ingestion
// rather than propagating into the merge logic.
package remote

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/everjot/everjot/pkg/cli/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrNotLoggedIn is an error for requests that require a session
var ErrNotLoggedIn = errors.New("not logged in")

// ErrInvalidDocument is an error for remote documents that fail validation
var ErrInvalidDocument = errors.New("invalid remote document")

// HTTPError represents an HTTP error response from the server
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(`response %d "%s"`, e.StatusCode, e.Message)
}

// IsConflict returns true if the error is a 409 Conflict error
func (e *HTTPError) IsConflict() bool {
	return e.StatusCode == 409
}

// IsAuthError returns true if the error indicates an expired or invalid session
func (e *HTTPError) IsAuthError() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

const (
	// defaultRequestTimeout bounds every remote call so a hung request is
	// treated as a failure instead of blocking the sync guard indefinitely.
	defaultRequestTimeout = 30 * time.Second

	// clientRateLimitPerSecond is the max requests per second the client will make
	clientRateLimitPerSecond = 50
	// clientRateLimitBurst is the burst capacity for rate limiting
	clientRateLimitBurst = 100
)

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// NewRateLimitedHTTPClient creates an HTTP client with rate limiting and a
// bounded request timeout
func NewRateLimitedHTTPClient() *http.Client {
	interval := time.Second / time.Duration(clientRateLimitPerSecond)

	transport := &rateLimitedTransport{
		transport: http.DefaultTransport,
		limiter:   rate.NewLimiter(rate.Every(interval), clientRateLimitBurst),
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultRequestTimeout,
	}
}

func getHTTPClient(ctx context.EverjotCtx) *http.Client {
	if ctx.HTTPClient != nil {
		return ctx.HTTPClient
	}

	return &http.Client{Timeout: defaultRequestTimeout}
}

func getReq(ctx context.EverjotCtx, path, method, body string) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s%s", ctx.APIEndpoint, path)
	req, err := http.NewRequest(method, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "constructing http request")
	}

	req.Header.Set("CLI-Version", ctx.Version)

	if ctx.SessionKey != "" {
		credential := fmt.Sprintf("Bearer %s", ctx.SessionKey)
		req.Header.Set("Authorization", credential)
	}

	return req, nil
}

// checkRespErr checks if the given http response indicates an error. It returns a boolean indicating
// if the response is an error, and a decoded error message.
func checkRespErr(res *http.Response) error {
	if res.StatusCode < 400 {
		return nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "server responded with %d but client could not read the response body", res.StatusCode)
	}

	bodyStr := string(body)
	return &HTTPError{
		StatusCode: res.StatusCode,
		Message:    strings.TrimRight(bodyStr, "\n"),
	}
}

// doReq does a http request to the given path in the api endpoint
func doReq(ctx context.EverjotCtx, method, path, body string) (*http.Response, error) {
	req, err := getReq(ctx, path, method, body)
	if err != nil {
		return nil, errors.Wrap(err, "getting request")
	}

	log.Debug("HTTP %s %s\n", method, path)

	hc := getHTTPClient(ctx)
	res, err := hc.Do(req)
	if err != nil {
		return res, errors.Wrap(err, "making http request")
	}

	log.Debug("HTTP %d %s\n", res.StatusCode, res.Status)

	if err = checkRespErr(res); err != nil {
		return res, errors.Wrap(err, "server responded with an error")
	}

	return res, nil
}

// doAuthorizedReq does a http request to the given path in the api endpoint as a user,
// with the appropriate headers. The given path should include the preceding slash.
func doAuthorizedReq(ctx context.EverjotCtx, method, path, body string) (*http.Response, error) {
	if ctx.SessionKey == "" {
		return nil, ErrNotLoggedIn
	}

	return doReq(ctx, method, path, body)
}
