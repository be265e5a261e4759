package exceptions_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	workflow "github.com/vulnops/vulnmgt-backend/internal/exceptions"
	"github.com/vulnops/vulnmgt-backend/internal/storage/memstore"
	"github.com/vulnops/vulnmgt-backend/model"
	exceptionsapi "github.com/vulnops/vulnmgt-backend/restapi/modules/exceptions"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestApp mounts the workflow handlers behind a middleware that injects a
// fixed identity, standing in for the JWT middleware.
func newTestApp(wf *workflow.Workflow, username, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("username", username)
		c.Locals("role", role)
		return c.Next()
	})
	app.Post("/requests", exceptionsapi.Create(wf))
	app.Get("/requests", exceptionsapi.ListMine(wf))
	app.Get("/requests/pending", exceptionsapi.ListPending(wf))
	app.Post("/requests/:key/approve", exceptionsapi.Approve(wf))
	app.Post("/requests/:key/reject", exceptionsapi.Reject(wf))
	app.Post("/requests/:key/cancel", exceptionsapi.Cancel(wf))
	return app
}

func newWorkflow() *workflow.Workflow {
	return workflow.NewWorkflow(memstore.New(), zap.NewNop().Sugar()).
		WithClock(func() time.Time { return testNow })
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func validBody() exceptionsapi.CreateRequestBody {
	return exceptionsapi.CreateRequestBody{
		Target:        "CVE-2024-0001",
		Scope:         "pattern",
		Justification: strings.Repeat("compensating control documented in change 4711. ", 2),
		ExpiresAt:     testNow.Add(30 * 24 * time.Hour).Format(time.RFC3339),
	}
}

func decodeRequest(t *testing.T, resp *http.Response) model.ExceptionRequest {
	t.Helper()
	defer resp.Body.Close()
	var req model.ExceptionRequest
	if err := json.NewDecoder(resp.Body).Decode(&req); err != nil {
		t.Fatal(err)
	}
	return req
}

func TestCreateReturnsCreated(t *testing.T) {
	wf := newWorkflow()
	app := newTestApp(wf, "alice", model.RoleUser)

	resp := postJSON(t, app, "/requests", validBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	req := decodeRequest(t, resp)
	if req.Status != model.RequestPending {
		t.Errorf("status = %s, want PENDING", req.Status)
	}
}

func TestCreateBadInputIsBadRequest(t *testing.T) {
	wf := newWorkflow()
	app := newTestApp(wf, "alice", model.RoleUser)

	tests := []struct {
		name   string
		mutate func(*exceptionsapi.CreateRequestBody)
	}{
		{"unknown scope", func(b *exceptionsapi.CreateRequestBody) { b.Scope = "bogus" }},
		{"bad timestamp", func(b *exceptionsapi.CreateRequestBody) { b.ExpiresAt = "tomorrow" }},
		{"short justification", func(b *exceptionsapi.CreateRequestBody) { b.Justification = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validBody()
			tt.mutate(&body)
			resp := postJSON(t, app, "/requests", body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestDuplicateIsConflict(t *testing.T) {
	wf := newWorkflow()
	app := newTestApp(wf, "alice", model.RoleUser)

	if resp := postJSON(t, app, "/requests", validBody()); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create status = %d", resp.StatusCode)
	}
	resp := postJSON(t, app, "/requests", validBody())
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", resp.StatusCode)
	}
}

func TestApproveStatusMapping(t *testing.T) {
	wf := newWorkflow()
	userApp := newTestApp(wf, "alice", model.RoleUser)
	officerApp := newTestApp(wf, "sofia", model.RoleSecurityOfficer)

	created := decodeRequest(t, postJSON(t, userApp, "/requests", validBody()))

	// Plain user may not review.
	if resp := postJSON(t, userApp, "/requests/"+created.Key+"/approve", exceptionsapi.ReviewBody{Version: 1}); resp.StatusCode != http.StatusForbidden {
		t.Errorf("approve as user status = %d, want 403", resp.StatusCode)
	}

	// Unknown key.
	if resp := postJSON(t, officerApp, "/requests/nope/approve", exceptionsapi.ReviewBody{Version: 1}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("approve unknown key status = %d, want 404", resp.StatusCode)
	}

	// Stale version.
	if resp := postJSON(t, officerApp, "/requests/"+created.Key+"/approve", exceptionsapi.ReviewBody{Version: 9}); resp.StatusCode != http.StatusConflict {
		t.Errorf("approve stale version status = %d, want 409", resp.StatusCode)
	}

	// Missing version is rejected before the workflow runs.
	if resp := postJSON(t, officerApp, "/requests/"+created.Key+"/approve", exceptionsapi.ReviewBody{}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("approve without version status = %d, want 400", resp.StatusCode)
	}

	// The real approval.
	resp := postJSON(t, officerApp, "/requests/"+created.Key+"/approve", exceptionsapi.ReviewBody{Version: created.Version})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d, want 200", resp.StatusCode)
	}
	if got := decodeRequest(t, resp); got.Status != model.RequestApproved {
		t.Errorf("status = %s, want APPROVED", got.Status)
	}

	// A second resolution of the same request is a conflict-class failure.
	if resp := postJSON(t, officerApp, "/requests/"+created.Key+"/reject", exceptionsapi.ReviewBody{Version: 2, Comment: "changed my mind"}); resp.StatusCode != http.StatusConflict {
		t.Errorf("re-resolve status = %d, want 409", resp.StatusCode)
	}
}

func TestCancelByStrangerIsNotFound(t *testing.T) {
	wf := newWorkflow()
	aliceApp := newTestApp(wf, "alice", model.RoleUser)
	daveApp := newTestApp(wf, "dave", model.RoleUser)

	created := decodeRequest(t, postJSON(t, aliceApp, "/requests", validBody()))

	if resp := postJSON(t, daveApp, "/requests/"+created.Key+"/cancel", fiber.Map{}); resp.StatusCode != http.StatusNotFound {
		t.Errorf("cancel by stranger status = %d, want 404", resp.StatusCode)
	}
	if resp := postJSON(t, aliceApp, "/requests/"+created.Key+"/cancel", fiber.Map{}); resp.StatusCode != http.StatusOK {
		t.Errorf("cancel by requester status = %d, want 200", resp.StatusCode)
	}
}

func TestListPendingRoleGate(t *testing.T) {
	wf := newWorkflow()
	userApp := newTestApp(wf, "alice", model.RoleUser)
	officerApp := newTestApp(wf, "sofia", model.RoleSecurityOfficer)

	req := httptest.NewRequest(http.MethodGet, "/requests/pending", nil)
	resp, err := userApp.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("pending as user status = %d, want 403", resp.StatusCode)
	}

	resp, err = officerApp.Test(httptest.NewRequest(http.MethodGet, "/requests/pending", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("pending as officer status = %d, want 200", resp.StatusCode)
	}
}
