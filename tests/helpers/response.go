// response.go
//
// Mobile push notification relay for self-hosted servers
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of push-bouncer.
// push-bouncer is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// push-bouncer is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with push-bouncer.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package helpers

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
)

// AssertStatus verifies the HTTP status code
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// ParseJSON decodes the response body into the target
func ParseJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	defer resp.Body.Close()

	if err := json.Unmarshal(body, target); err != nil {
		t.Fatalf("Failed to decode JSON: %v. Body: %s", err, string(body))
	}
}

// AssertSuccess decodes the response envelope, verifies result=success
// and returns the full body for further assertions.
func AssertSuccess(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	ParseJSON(t, resp, &envelope)
	if envelope["result"] != "success" {
		t.Errorf("Expected result success, got %v (msg: %v)", envelope["result"], envelope["msg"])
	}
	return envelope
}

// AssertErrorCode decodes the response envelope and verifies the
// machine-readable error code.
func AssertErrorCode(t *testing.T, resp *http.Response, code string) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	ParseJSON(t, resp, &envelope)
	if envelope["result"] != "error" {
		t.Errorf("Expected result error, got %v", envelope["result"])
	}
	if envelope["code"] != code {
		t.Errorf("Expected code %s, got %v (msg: %v)", code, envelope["code"], envelope["msg"])
	}
	return envelope
}
