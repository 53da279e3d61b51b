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

package remote

import (
	"encoding/json"
	"net/http"

	"github.com/everjot/everjot/pkg/cli/context"
	"github.com/pkg/errors"
)

// SigninResponse is the response from the signin endpoint
type SigninResponse struct {
	Key       string `json:"key"`
	ExpiresAt int64  `json:"expires_at"`
	OwnerID   string `json:"owner_id"`
}

// Signin exchanges the credentials for a session
func Signin(ctx context.EverjotCtx, email, password string) (SigninResponse, error) {
	var ret SigninResponse

	payload := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{
		Email:    email,
		Password: password,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ret, errors.Wrap(err, "marshaling payload")
	}

	res, err := doReq(ctx, "POST", "/v1/signin", string(b))
	if err != nil {
		return ret, errors.Wrap(err, "making signin request")
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(&ret); err != nil {
		return ret, errors.Wrap(err, "decoding the response")
	}

	if ret.Key == "" || ret.OwnerID == "" {
		return ret, errors.New("malformed signin response")
	}

	return ret, nil
}

// Signout invalidates the given session key in the server
func Signout(ctx context.EverjotCtx, sessionKey string) error {
	ctx.SessionKey = sessionKey

	res, err := doAuthorizedReq(ctx, "POST", "/v1/signout", "")
	if err != nil {
		var httpErr *HTTPError
		// an already dead session is as good as signed out
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return nil
		}

		return errors.Wrap(err, "making signout request")
	}
	defer res.Body.Close()

	return nil
}
