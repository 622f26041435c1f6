package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func testApp(t *testing.T) (*fiber.App, *Service) {
	t.Helper()
	svc := testService(newFakeClock(fixBase))
	t.Cleanup(svc.Shutdown)

	app := fiber.New()
	passthrough := func(c *fiber.Ctx) error { return c.Next() }
	RegisterRoutes(app.Group("/sessions"), svc, passthrough)
	return app, svc
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (*http.Response, StateSnapshot) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	var snap StateSnapshot
	_ = json.NewDecoder(resp.Body).Decode(&snap)
	return resp, snap
}

func TestSessionRoutesLifecycle(t *testing.T) {
	app, _ := testApp(t)

	resp, snap := postJSON(t, app, "/sessions", fiber.Map{"body_mass_kg": 75, "load_mass_kg": 15})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	if snap.SessionID == "" || snap.Status != StatusCreated {
		t.Fatalf("created snapshot: %+v", snap)
	}
	id := snap.SessionID

	resp, snap = postJSON(t, app, "/sessions/"+id+"/start", nil)
	if resp.StatusCode != http.StatusOK || snap.Status != StatusActive {
		t.Fatalf("start: %d %s", resp.StatusCode, snap.Status)
	}

	resp, snap = postJSON(t, app, "/sessions/"+id+"/location", fiber.Map{
		"lat": 40.0, "lng": -3.7, "recorded_at": fixBase,
	})
	if resp.StatusCode != http.StatusOK || snap.RoutePoints != 1 {
		t.Fatalf("location: %d %+v", resp.StatusCode, snap)
	}

	resp, snap = postJSON(t, app, "/sessions/"+id+"/heartrate", fiber.Map{
		"bpm": 128, "recorded_at": fixBase,
	})
	if resp.StatusCode != http.StatusOK || snap.HeartRateCount != 1 {
		t.Fatalf("heartrate: %d %+v", resp.StatusCode, snap)
	}

	resp, snap = postJSON(t, app, "/sessions/"+id+"/pause", nil)
	if resp.StatusCode != http.StatusOK || snap.Status != StatusPaused {
		t.Fatalf("pause: %d %s", resp.StatusCode, snap.Status)
	}
	resp, snap = postJSON(t, app, "/sessions/"+id+"/resume", nil)
	if resp.StatusCode != http.StatusOK || snap.Status != StatusActive {
		t.Fatalf("resume: %d %s", resp.StatusCode, snap.Status)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/current", nil)
	getResp, err := app.Test(req)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("current status %d", getResp.StatusCode)
	}

	resp, snap = postJSON(t, app, "/sessions/"+id+"/complete", fiber.Map{"notes": "hill loop", "rating": 5})
	if resp.StatusCode != http.StatusOK || snap.Status != StatusCompleted {
		t.Fatalf("complete: %d %s", resp.StatusCode, snap.Status)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions/current", nil)
	getResp, err = app.Test(req)
	if err != nil {
		t.Fatalf("current after complete: %v", err)
	}
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after completion, got %d", getResp.StatusCode)
	}
}

func TestSessionRoutesErrors(t *testing.T) {
	app, _ := testApp(t)

	// No live session.
	resp, _ := postJSON(t, app, "/sessions/nope/start", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("start without session: %d", resp.StatusCode)
	}

	// Invalid mass.
	resp, _ = postJSON(t, app, "/sessions", fiber.Map{"body_mass_kg": 0, "load_mass_kg": 5})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid mass: %d", resp.StatusCode)
	}

	resp, snap := postJSON(t, app, "/sessions", fiber.Map{"body_mass_kg": 80, "load_mass_kg": 10})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	id := snap.SessionID

	// Second session while one is open.
	resp, _ = postJSON(t, app, "/sessions", fiber.Map{"body_mass_kg": 80, "load_mass_kg": 10})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second create: %d", resp.StatusCode)
	}

	// Wrong id.
	resp, _ = postJSON(t, app, "/sessions/other/pause", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("wrong id: %d", resp.StatusCode)
	}

	// Zero bpm is rejected before it reaches the machine.
	resp, _ = postJSON(t, app, fmt.Sprintf("/sessions/%s/heartrate", id), fiber.Map{"bpm": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero bpm: %d", resp.StatusCode)
	}
}

func TestWatchFailRoute(t *testing.T) {
	app, _ := testApp(t)

	_, snap := postJSON(t, app, "/sessions", fiber.Map{"body_mass_kg": 75, "load_mass_kg": 15})
	id := snap.SessionID
	postJSON(t, app, "/sessions/"+id+"/start", nil)

	resp, snap := postJSON(t, app, "/sessions/"+id+"/watchfail", fiber.Map{"reason": "ble timeout"})
	if resp.StatusCode != http.StatusOK || !snap.WatchFailed {
		t.Fatalf("watchfail: %d %+v", resp.StatusCode, snap)
	}
}
