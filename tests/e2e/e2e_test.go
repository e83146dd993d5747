// e2e_test.go
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

package e2e_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/localnerve/push-bouncer/client"
	"github.com/localnerve/push-bouncer/internal/config"
	"github.com/localnerve/push-bouncer/internal/database"
	"github.com/localnerve/push-bouncer/internal/services"
	"github.com/localnerve/push-bouncer/tests/helpers"
)

// TestE2EWithFullStack tests the entire service stack
func TestE2EWithFullStack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E test in short mode")
	}

	ctx := context.Background()

	tc, err := helpers.CreateAllTestContainers(t)
	if err != nil {
		t.Fatalf("Failed to start test containers: %v", err)
	}
	defer tc.Terminate(t)

	bouncerHost, _ := tc.BouncerContainer.Host(ctx)
	bouncerPort, _ := tc.BouncerContainer.MappedPort(ctx, "3000")
	baseURL := fmt.Sprintf("http://%s:%s", bouncerHost, bouncerPort.Port())

	// Wait a bit for everything to stabilize
	time.Sleep(5 * time.Second)

	// Run E2E tests
	t.Run("HealthCheck", func(t *testing.T) {
		testHealthCheck(t, tc)
	})

	t.Run("PrometheusMetrics", func(t *testing.T) {
		testPrometheusMetrics(t, baseURL)
	})

	t.Run("SwaggerUI", func(t *testing.T) {
		testSwaggerUI(t, baseURL)
	})

	t.Run("ServerLifecycle", func(t *testing.T) {
		testServerLifecycle(t, baseURL)
	})
}

func testHealthCheck(t *testing.T, tc *helpers.TestContainers) {
	ctx := context.Background()

	// Point at the mapped ports on localhost, not internal container names
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	dbHost, _ := tc.DBContainer.Host(ctx)
	dbPort, _ := tc.DBContainer.MappedPort(ctx, "3306")
	cfg.DBHost = dbHost
	cfg.DBPort = dbPort.Port()

	gormDB, err := database.Connect(cfg)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	defer database.Close(gormDB)

	result := services.HealthCheck(cfg, gormDB)
	if result.Status != "healthy" {
		t.Errorf("Health check failed: %+v", result)
	}

	t.Logf("Health check passed: status=%s, database=%s", result.Status, result.Database)
}

func testPrometheusMetrics(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for metrics, got %d. Body: %s", resp.StatusCode, bodyStr)
	}

	t.Logf("Metrics endpoint working, found %d bytes of metrics", len(bodyStr))
}

func testSwaggerUI(t *testing.T, baseURL string) {
	resp, err := http.Get(baseURL + "/swagger/index.html")
	if err != nil {
		t.Fatalf("Failed to get Swagger UI: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for Swagger UI, got %d", resp.StatusCode)
	}
}

// testServerLifecycle drives the bouncer through the client package the
// way a real remote server would: register, register a device token,
// forward a notification, deactivate.
func testServerLifecycle(t *testing.T, baseURL string) {
	ctx := context.Background()

	orgID := helpers.GenerateOrgID()
	orgKey := helpers.GenerateOrgKey()
	c := client.New(baseURL, orgID, orgKey, "10.0")

	_, err := c.Send(ctx, http.MethodPost, "server/register", map[string]interface{}{
		"zulip_org_id":  orgID,
		"zulip_org_key": orgKey,
		"hostname":      "relay.example.com",
		"contact_email": "ops@example.com",
	})
	if err != nil {
		t.Fatalf("Failed to register server: %v", err)
	}

	_, err = c.Send(ctx, http.MethodPost, "push/register", map[string]interface{}{
		"token":      "e2e-device-token",
		"token_kind": 2,
		"user_id":    12,
	})
	if err != nil {
		t.Fatalf("Failed to register device token: %v", err)
	}

	result, err := c.Send(ctx, http.MethodPost, "push/notify", map[string]interface{}{
		"user_id":      12,
		"gcm_payload":  map[string]interface{}{"event": "message"},
		"apns_payload": map[string]interface{}{"alert": "New message"},
		"gcm_options":  map[string]interface{}{},
	})
	if err != nil {
		t.Fatalf("Failed to forward notification: %v", err)
	}
	if result["total_android_devices"] != float64(1) {
		t.Errorf("Expected 1 android device, got %v", result["total_android_devices"])
	}

	_, err = c.Send(ctx, http.MethodPost, "server/deactivate", nil)
	if err != nil {
		t.Fatalf("Failed to deactivate server: %v", err)
	}

	// Deactivated credentials must be rejected
	_, err = c.Send(ctx, http.MethodGet, "server/analytics/status", nil)
	if err == nil {
		t.Fatal("Expected deactivated server to be rejected")
	}
}
