// common.go
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

package handlers

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/localnerve/push-bouncer/internal/models"
	"github.com/localnerve/push-bouncer/internal/types"
)

var (
	apnsTokenPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	appIDPattern     = regexp.MustCompile(`^\w+(\.\w+)+$`)
)

// serverFromContext returns the authenticated RemoteServer placed in the
// request context by the auth middleware.
func serverFromContext(c *fiber.Ctx) *models.RemoteServer {
	server, _ := c.Locals("server").(*models.RemoteServer)
	return server
}

// validateUUID accepts only canonical v4 UUID strings. Parsing is
// lenient about formats like braces and urn prefixes, so a round-trip
// comparison catches anything non-canonical.
func validateUUID(value string) error {
	parsed, err := uuid.Parse(value)
	if err != nil || parsed.Version() != 4 || parsed.String() != strings.ToLower(value) {
		return types.BadRequest("Invalid UUID")
	}
	return nil
}

// validateHostname checks that the value forms a valid host when placed
// in a URL.
func validateHostname(hostname string) error {
	parsed, err := url.Parse("http://" + hostname)
	if err != nil || parsed.Host != hostname || parsed.Hostname() == "" {
		return types.BadRequest("%s is not a valid hostname", hostname)
	}
	return nil
}

// validateEmail checks the contact address.
func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return types.BadRequest("Enter a valid email address.")
	}
	return nil
}

// validateBouncerToken enforces the token constraints shared by the
// push-device endpoints.
func validateBouncerToken(token string, kind int) error {
	if kind != models.PushKindAPNS && kind != models.PushKindGCM {
		return types.BadRequest("Invalid token type")
	}
	if token == "" || len(token) > models.PushTokenMaxLength {
		return types.BadRequest("Empty or invalid length token")
	}
	if kind == models.PushKindAPNS && !apnsTokenPattern.MatchString(token) {
		return types.BadRequest("Invalid APNS token")
	}
	return nil
}

// validateAppID checks an APNs app id such as "org.zulip.Zulip".
func validateAppID(appID string) error {
	if !appIDPattern.MatchString(appID) {
		return types.BadRequest("Invalid app ID")
	}
	return nil
}
