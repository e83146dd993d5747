// Package client implements the bouncer API from the remote server's
// side: credentialed requests, the success/error envelope, and the
// error taxonomy callers use to decide between retrying later and
// giving up.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Error codes the bouncer returns that the client switches on. Declared
// here rather than shared with the server packages so this package
// stays importable by external server codebases.
const (
	codeInvalidZulipServer     = "INVALID_ZULIP_SERVER"
	codeInvalidPushDeviceToken = "INVALID_REMOTE_PUSH_DEVICE_TOKEN"
)

// Client is a credentialed connection to one push bouncer.
type Client struct {
	BaseURL    string
	OrgID      string
	OrgKey     string
	UserAgent  string
	HTTPClient *http.Client
}

// New builds a client with the default timeout.
func New(baseURL, orgID, orgKey, serverVersion string) *Client {
	return &Client{
		BaseURL:    baseURL,
		OrgID:      orgID,
		OrgKey:     orgKey,
		UserAgent:  "ZulipServer/" + serverVersion,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// TransientError reports a failure worth retrying later: the bouncer
// was unreachable, timed out, or answered with a server-side error.
type TransientError struct {
	cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("push bouncer temporarily unavailable: %v", e.cause)
}

func (e *TransientError) Unwrap() error { return e.cause }

// BouncerError reports a permanent failure the operator must resolve,
// such as rejected credentials or an unexpected response shape.
type BouncerError struct {
	Message string
}

func (e *BouncerError) Error() string { return e.Message }

// APIError is a structured 4xx answer from the bouncer that is neither
// a credential failure nor an unknown-token signal.
type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("push bouncer returned %d: %s [code: %s]", e.Status, e.Msg, e.Code)
}

// ErrInvalidPushDeviceToken is returned when the bouncer does not
// recognize the device token named in a push or test-notification
// request. Callers surface it to the device rather than retrying.
var ErrInvalidPushDeviceToken = &APIError{
	Status: 404,
	Code:   codeInvalidPushDeviceToken,
	Msg:    "Device not recognized by the push bouncer",
}

// Send performs one request against the bouncer and decodes the
// response envelope. A nil body sends no payload (used for GETs).
func (c *Client) Send(ctx context.Context, method, endpoint string, body map[string]interface{}) (map[string]interface{}, error) {
	url := c.BaseURL + "/api/v1/remotes/" + endpoint

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.OrgID, c.OrgKey)
	req.Header.Set("User-Agent", c.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Connection refused, DNS failure, TLS error, timeout. All of
		// these are worth retrying once the network or the bouncer
		// recovers.
		return nil, &TransientError{cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{cause: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &TransientError{cause: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &BouncerError{Message: fmt.Sprintf("push bouncer returned unparseable response (status %d)", resp.StatusCode)}
	}

	if resp.StatusCode == http.StatusOK {
		return envelope, nil
	}

	if resp.StatusCode >= 400 {
		code, _ := envelope["code"].(string)
		msg, _ := envelope["msg"].(string)
		switch {
		case code == codeInvalidZulipServer:
			// The bouncer rejected this server's credentials. Retrying
			// cannot help until the operator re-registers.
			return nil, &BouncerError{Message: fmt.Sprintf("push bouncer rejected our credentials: %s", msg)}
		case code == codeInvalidPushDeviceToken &&
			(endpoint == "push/notify" || endpoint == "push/test_notification"):
			return nil, ErrInvalidPushDeviceToken
		default:
			return nil, &APIError{Status: resp.StatusCode, Code: code, Msg: msg}
		}
	}

	return nil, &BouncerError{Message: fmt.Sprintf("push bouncer returned unexpected status %d", resp.StatusCode)}
}
