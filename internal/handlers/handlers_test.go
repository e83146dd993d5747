// handlers_test.go
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

package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/push-bouncer/internal/handlers"
	"github.com/localnerve/push-bouncer/internal/middleware"
	"github.com/localnerve/push-bouncer/internal/models"
	"github.com/localnerve/push-bouncer/internal/senders"
	"github.com/localnerve/push-bouncer/tests/helpers"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Auto-migrate models
	err = db.AutoMigrate(
		&models.RemoteServer{},
		&models.RemoteServerAuditLog{},
		&models.RemoteRealm{},
		&models.RemoteRealmCount{},
		&models.RemoteInstallationCount{},
		&models.RemoteRealmAuditLog{},
		&models.RemotePushDeviceToken{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// setupTestApp wires the full route table the way cmd/server does.
func setupTestApp(db *gorm.DB) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
	})

	platform := &senders.Platform{
		Android: &senders.LogSender{Gateway: "FCM"},
		Apple:   &senders.LogSender{Gateway: "APNs"},
	}

	serverHandler := &handlers.ServerHandler{DB: db}
	deviceHandler := &handlers.PushDeviceHandler{DB: db}
	pushHandler := &handlers.PushHandler{DB: db, Senders: platform}
	analyticsHandler := &handlers.AnalyticsHandler{DB: db}

	remotes := app.Group("/api/v1/remotes")
	remotes.Post("/server/register", serverHandler.Register)

	authed := remotes.Group("", middleware.AuthServer(db))
	authed.Post("/server/deactivate", serverHandler.Deactivate)
	authed.Post("/push/register", deviceHandler.Register)
	authed.Post("/push/unregister", deviceHandler.Unregister)
	authed.Post("/push/unregister/all", deviceHandler.UnregisterAll)
	authed.Post("/push/notify", pushHandler.Notify)
	authed.Post("/push/test_notification", pushHandler.TestNotification)
	authed.Get("/server/analytics/status", analyticsHandler.Status)
	authed.Post("/server/analytics", analyticsHandler.Post)

	return app
}

const (
	testOrgID  = "6cde5f7a-1f7e-4978-9716-49f69ebd31f6"
	testOrgKey = "1234567890123456789012345678901234567890123456789012345678901234"
)

func registerTestServer(t *testing.T, db *gorm.DB) *models.RemoteServer {
	t.Helper()
	return helpers.CreateTestServer(t, db, testOrgID, testOrgKey)
}

// TestServerRegisterValidation exercises the registration field checks.
func TestServerRegisterValidation(t *testing.T) {
	db := setupTestDB(t)
	app := setupTestApp(db)

	send := func(body map[string]interface{}) (int, map[string]interface{}) {
		t.Helper()
		encoded, _ := json.Marshal(body)
		req := httptest.NewRequest("POST", "/api/v1/remotes/server/register", bytes.NewReader(encoded))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		var envelope map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return resp.StatusCode, envelope
	}

	valid := map[string]interface{}{
		"zulip_org_id":  testOrgID,
		"zulip_org_key": testOrgKey,
		"hostname":      "demo.example.com",
		"contact_email": "admin@example.com",
	}

	status, envelope := send(valid)
	if status != 200 || envelope["created"] != true {
		t.Errorf("Expected 200/created, got %d %v", status, envelope)
	}

	// Same credentials again: ok, not created
	status, envelope = send(valid)
	if status != 200 || envelope["created"] != false {
		t.Errorf("Expected 200/not created, got %d %v", status, envelope)
	}

	cases := []struct {
		name  string
		morph func(map[string]interface{})
	}{
		{"ShortOrgID", func(m map[string]interface{}) { m["zulip_org_id"] = "short" }},
		{"NonV4UUID", func(m map[string]interface{}) { m["zulip_org_id"] = "6cde5f7a-1f7e-1978-9716-49f69ebd31f6" }},
		{"ShortKey", func(m map[string]interface{}) { m["zulip_org_key"] = "short" }},
		{"BadHostname", func(m map[string]interface{}) { m["hostname"] = "bad host/name" }},
		{"BadEmail", func(m map[string]interface{}) { m["contact_email"] = "not-an-email" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := map[string]interface{}{}
			for k, v := range valid {
				body[k] = v
			}
			tc.morph(body)
			status, envelope := send(body)
			if status != 400 {
				t.Errorf("Expected 400, got %d (%v)", status, envelope)
			}
		})
	}
}

// TestAuthMiddleware rejects missing and wrong credentials with the
// credential error code.
func TestAuthMiddleware(t *testing.T) {
	db := setupTestDB(t)
	registerTestServer(t, db)
	app := setupTestApp(db)

	// No credentials
	req := httptest.NewRequest("GET", "/api/v1/remotes/server/analytics/status", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	helpers.AssertStatus(t, resp, 401)
	helpers.AssertErrorCode(t, resp, "INVALID_ZULIP_SERVER")

	// Wrong key
	req = httptest.NewRequest("GET", "/api/v1/remotes/server/analytics/status", nil)
	req.Header.Set("Authorization", helpers.BasicAuthHeader(testOrgID, "wrong"))
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	helpers.AssertStatus(t, resp, 401)
	helpers.AssertErrorCode(t, resp, "INVALID_ZULIP_SERVER")

	// Right key
	req = httptest.NewRequest("GET", "/api/v1/remotes/server/analytics/status", nil)
	req.Header.Set("Authorization", helpers.BasicAuthHeader(testOrgID, testOrgKey))
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	helpers.AssertStatus(t, resp, 200)
	envelope := helpers.AssertSuccess(t, resp)
	if envelope["last_realm_count_id"] != float64(0) {
		t.Errorf("Expected zero cursor, got %v", envelope["last_realm_count_id"])
	}
}

// TestPushDeviceRegisterEndpoint covers token validation and the
// FlexInt64 user_id decoding.
func TestPushDeviceRegisterEndpoint(t *testing.T) {
	db := setupTestDB(t)
	registerTestServer(t, db)
	app := setupTestApp(db)

	send := func(body map[string]interface{}) (int, map[string]interface{}) {
		t.Helper()
		encoded, _ := json.Marshal(body)
		req := httptest.NewRequest("POST", "/api/v1/remotes/push/register", bytes.NewReader(encoded))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", helpers.BasicAuthHeader(testOrgID, testOrgKey))
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		var envelope map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return resp.StatusCode, envelope
	}

	// user_id arrives as a string and must still parse
	status, _ := send(map[string]interface{}{
		"token": "sometoken", "token_kind": 2, "user_id": "15",
	})
	if status != 200 {
		t.Errorf("Expected 200 with string user_id, got %d", status)
	}
	var device models.RemotePushDeviceToken
	if err := db.Where("token = ?", "sometoken").First(&device).Error; err != nil {
		t.Fatalf("Failed to load registration: %v", err)
	}
	if device.UserID == nil || *device.UserID != 15 {
		t.Errorf("Expected user id 15, got %v", device.UserID)
	}

	cases := []struct {
		name string
		body map[string]interface{}
		code int
	}{
		{"BadKind", map[string]interface{}{"token": "t", "token_kind": 9, "user_id": 1}, 400},
		{"EmptyToken", map[string]interface{}{"token": "", "token_kind": 2, "user_id": 1}, 400},
		{"NonHexAPNS", map[string]interface{}{"token": "zzzz", "token_kind": 1, "user_id": 1, "ios_app_id": "org.example.App"}, 400},
		{"APNSWithoutAppID", map[string]interface{}{"token": "ab12", "token_kind": 1, "user_id": 1}, 400},
		{"BadAppID", map[string]interface{}{"token": "ab12", "token_kind": 1, "user_id": 1, "ios_app_id": "not valid!"}, 400},
		{"NoIdentity", map[string]interface{}{"token": "t2", "token_kind": 2}, 400},
		{"BadUserUUID", map[string]interface{}{"token": "t3", "token_kind": 2, "user_uuid": "not-a-uuid"}, 400},
		{"ValidAPNS", map[string]interface{}{"token": "AB12cd34", "token_kind": 1, "user_id": 2, "ios_app_id": "org.example.App"}, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, envelope := send(tc.body)
			if status != tc.code {
				t.Errorf("Expected %d, got %d (%v)", tc.code, status, envelope)
			}
		})
	}
}

// TestPushNotifyEndpoint runs the full notify flow through HTTP.
func TestPushNotifyEndpoint(t *testing.T) {
	db := setupTestDB(t)
	server := registerTestServer(t, db)
	app := setupTestApp(db)

	helpers.CreateTestDevice(t, db, server, models.PushKindGCM, "g1", helpers.Int64Ptr(12), nil)
	helpers.CreateTestDevice(t, db, server, models.PushKindAPNS, "aa11", helpers.Int64Ptr(12), nil)

	body := map[string]interface{}{
		"user_id": 12,
		"gcm_payload": map[string]interface{}{
			"event": "message",
			"time":  1700000000,
		},
		"apns_payload": map[string]interface{}{"alert": "hi"},
		"gcm_options":  map[string]interface{}{},
	}
	encoded, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", "/api/v1/remotes/push/notify", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", helpers.BasicAuthHeader(testOrgID, testOrgKey))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	helpers.AssertStatus(t, resp, 200)
	envelope := helpers.AssertSuccess(t, resp)
	if envelope["total_android_devices"] != float64(1) || envelope["total_apple_devices"] != float64(1) {
		t.Errorf("Expected 1/1 devices, got %v/%v", envelope["total_android_devices"], envelope["total_apple_devices"])
	}

	// Missing payloads are required fields
	encoded, _ = json.Marshal(map[string]interface{}{"user_id": 12})
	req = httptest.NewRequest("POST", "/api/v1/remotes/push/notify", bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", helpers.BasicAuthHeader(testOrgID, testOrgKey))
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	helpers.AssertStatus(t, resp, 400)
	helpers.AssertErrorCode(t, resp, "REQUEST_VARIABLE_MISSING")
}

// TestTestNotificationEndpoint maps an unknown token to the dedicated
// error code the device can display.
func TestTestNotificationEndpoint(t *testing.T) {
	db := setupTestDB(t)
	server := registerTestServer(t, db)
	app := setupTestApp(db)

	userUUID := "11111111-2222-4333-8444-555555555555"
	helpers.CreateTestDevice(t, db, server, models.PushKindGCM, "tok", nil, &userUUID)

	send := func(body map[string]interface{}) (int, map[string]interface{}) {
		t.Helper()
		encoded, _ := json.Marshal(body)
		req := httptest.NewRequest("POST", "/api/v1/remotes/push/test_notification", bytes.NewReader(encoded))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", helpers.BasicAuthHeader(testOrgID, testOrgKey))
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		var envelope map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return resp.StatusCode, envelope
	}

	status, _ := send(map[string]interface{}{
		"token": "tok", "token_kind": 2, "user_id": 7, "user_uuid": userUUID,
		"base_payload": map[string]interface{}{"realm_name": "Demo"},
	})
	if status != 200 {
		t.Errorf("Expected 200, got %d", status)
	}

	status, envelope := send(map[string]interface{}{
		"token": "unknown", "token_kind": 2, "user_id": 7, "user_uuid": userUUID,
	})
	if status != 404 {
		t.Errorf("Expected 404, got %d", status)
	}
	if envelope["code"] != "INVALID_REMOTE_PUSH_DEVICE_TOKEN" {
		t.Errorf("Expected INVALID_REMOTE_PUSH_DEVICE_TOKEN, got %v", envelope["code"])
	}

	// Both identity fields are required here
	status, envelope = send(map[string]interface{}{
		"token": "tok", "token_kind": 2, "user_id": 7,
	})
	if status != 400 || envelope["code"] != "REQUEST_VARIABLE_MISSING" {
		t.Errorf("Expected missing-variable error, got %d %v", status, envelope)
	}
}

// TestAnalyticsEndpoint posts rows both as JSON arrays and as
// string-embedded arrays.
func TestAnalyticsEndpoint(t *testing.T) {
	db := setupTestDB(t)
	registerTestServer(t, db)
	app := setupTestApp(db)

	send := func(body map[string]interface{}) (int, map[string]interface{}) {
		t.Helper()
		encoded, _ := json.Marshal(body)
		req := httptest.NewRequest("POST", "/api/v1/remotes/server/analytics", bytes.NewReader(encoded))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", helpers.BasicAuthHeader(testOrgID, testOrgKey))
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Failed to execute request: %v", err)
		}
		var envelope map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return resp.StatusCode, envelope
	}

	// String-embedded tables, the shape the sync client sends
	status, envelope := send(map[string]interface{}{
		"realm_counts":        `[{"id": 1, "realm": 1, "property": "messages_sent:client:day", "end_time": 1700000000, "subgroup": null, "value": 10}]`,
		"installation_counts": `[]`,
		"realms":              `[{"id": 1, "uuid": "aaaaaaaa-0000-4000-8000-000000000001", "uuid_owner_secret": "s", "host": "r.example.com", "url": "https://r.example.com", "deactivated": false, "date_created": 1700000000}]`,
		"version":             "9.2",
	})
	if status != 200 {
		t.Fatalf("Expected 200, got %d (%v)", status, envelope)
	}

	// Status reflects the ingested cursor
	req := httptest.NewRequest("GET", "/api/v1/remotes/server/analytics/status", nil)
	req.Header.Set("Authorization", helpers.BasicAuthHeader(testOrgID, testOrgKey))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	statusEnvelope := helpers.AssertSuccess(t, resp)
	if statusEnvelope["last_realm_count_id"] != float64(1) {
		t.Errorf("Expected cursor 1, got %v", statusEnvelope["last_realm_count_id"])
	}

	// Plain JSON arrays work too
	status, envelope = send(map[string]interface{}{
		"realm_counts": []map[string]interface{}{
			{"id": 2, "realm": 1, "property": "messages_sent:client:day", "end_time": 1700000600, "value": 11},
		},
		"installation_counts": []map[string]interface{}{},
	})
	if status != 200 {
		t.Fatalf("Expected 200, got %d (%v)", status, envelope)
	}

	// Required tables missing
	status, envelope = send(map[string]interface{}{
		"installation_counts": `[]`,
	})
	if status != 400 || envelope["code"] != "REQUEST_VARIABLE_MISSING" {
		t.Errorf("Expected missing-variable error, got %d %v", status, envelope)
	}

	// Out-of-order rows report the dedicated code
	status, envelope = send(map[string]interface{}{
		"realm_counts":        `[{"id": 2, "realm": 1, "property": "messages_sent:client:day", "end_time": 1700000600, "value": 11}]`,
		"installation_counts": `[]`,
	})
	if status != 400 || envelope["code"] != "DATA_OUT_OF_ORDER" {
		t.Errorf("Expected DATA_OUT_OF_ORDER, got %d %v", status, envelope)
	}
}

// TestServerDeactivateEndpoint deactivates and verifies credentials
// stop working.
func TestServerDeactivateEndpoint(t *testing.T) {
	db := setupTestDB(t)
	registerTestServer(t, db)
	app := setupTestApp(db)

	req := httptest.NewRequest("POST", "/api/v1/remotes/server/deactivate", nil)
	req.Header.Set("Authorization", helpers.BasicAuthHeader(testOrgID, testOrgKey))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	helpers.AssertStatus(t, resp, 200)
	helpers.AssertSuccess(t, resp)

	req = httptest.NewRequest("GET", "/api/v1/remotes/server/analytics/status", nil)
	req.Header.Set("Authorization", helpers.BasicAuthHeader(testOrgID, testOrgKey))
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	helpers.AssertStatus(t, resp, 401)
	helpers.AssertErrorCode(t, resp, "INVALID_ZULIP_SERVER")
}
