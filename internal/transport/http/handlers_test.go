package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	jwttoken "bunkhouse/internal/jwt_token"
	"bunkhouse/internal/occupancy"
	"bunkhouse/internal/residency/models"
	"bunkhouse/internal/residency/service"
	httptransport "bunkhouse/internal/transport/http"
	id "bunkhouse/pkg/domain"
	dErrors "bunkhouse/pkg/domain-errors"
	"bunkhouse/pkg/testutil"
)

// fakeService records the last command it received and returns canned
// results, so handler tests exercise routing, auth, and translation only.
type fakeService struct {
	registerResult *service.RegisterResult
	repairReport   *occupancy.Report
	err            error

	lastRegister models.RegisterCommand
	lastExit     models.RecordExitCommand
	lastTransfer models.TransferCommand
}

func (f *fakeService) Register(_ context.Context, cmd models.RegisterCommand) (*service.RegisterResult, error) {
	f.lastRegister = cmd
	if f.err != nil {
		return nil, f.err
	}
	return f.registerResult, nil
}

func (f *fakeService) RecordExit(_ context.Context, cmd models.RecordExitCommand) error {
	f.lastExit = cmd
	return f.err
}

func (f *fakeService) Reactivate(_ context.Context, _ models.ReactivateCommand) error {
	return f.err
}

func (f *fakeService) Transfer(_ context.Context, cmd models.TransferCommand) error {
	f.lastTransfer = cmd
	return f.err
}

func (f *fakeService) EditEntryDate(_ context.Context, _ models.EditEntryDateCommand) error {
	return f.err
}

func (f *fakeService) Remove(_ context.Context, _ models.RemoveCommand) error {
	return f.err
}

func (f *fakeService) Repair(_ context.Context) (*occupancy.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.repairReport, nil
}

type fixture struct {
	svc    *fakeService
	router http.Handler
	token  string
	farmID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtSvc := jwttoken.NewJWTService("handler-test-key", "bunkhouse", "bunkhouse-api")

	farmID := uuid.New()
	token, err := jwtSvc.GenerateAccessToken(uuid.New(), farmID, "admin@farm.example", "farm_admin", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	svc := &fakeService{}
	handler := httptransport.New(svc, logger)
	router := httptransport.NewRouter(handler, jwtSvc, logger)

	return &fixture{svc: svc, router: router, token: token, farmID: farmID}
}

func (f *fixture) do(method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRouterAuth(t *testing.T) {
	testutil.Given(t, "a router with a signed-in farm admin", func(t *testing.T) {
		f := newFixture(t)

		testutil.When(t, "calling a worker route without a token", func(t *testing.T) {
			rec := f.do(http.MethodPost, "/repair", nil, false)

			testutil.Then(t, "it should respond unauthorized", func(t *testing.T) {
				if rec.Code != http.StatusUnauthorized {
					t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
				}
			})
		})

		testutil.When(t, "calling the health endpoint without a token", func(t *testing.T) {
			rec := f.do(http.MethodGet, "/healthz", nil, false)

			testutil.Then(t, "it should stay open", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
			})
		})
	})
}

func TestHandleRegister(t *testing.T) {
	testutil.Given(t, "a registration request", func(t *testing.T) {
		f := newFixture(t)
		workerID := id.NewWorkerID()
		f.svc.registerResult = &service.RegisterResult{
			Worker: &models.Worker{ID: workerID},
		}

		payload := map[string]string{
			"nationalId": "ab12345",
			"fullName":   "Maria Lopez",
			"gender":     "female",
			"room":       "7",
			"sector":     "north",
			"entryDate":  "2026-03-01",
		}

		testutil.When(t, "the service creates the worker", func(t *testing.T) {
			rec := f.do(http.MethodPost, "/workers", payload, true)

			testutil.Then(t, "it should respond 201 with the worker", func(t *testing.T) {
				if rec.Code != http.StatusCreated {
					t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
				}
				var resp httptransport.RegisterResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Worker == nil || resp.Worker.ID != workerID.String() {
					t.Fatalf("expected worker %s in response, got %+v", workerID, resp.Worker)
				}
			})

			testutil.Then(t, "the command should carry the caller's farm and normalized national id", func(t *testing.T) {
				if got := f.svc.lastRegister.FarmID.String(); got != f.farmID.String() {
					t.Fatalf("expected farm %s from the token, got %s", f.farmID, got)
				}
				if got := f.svc.lastRegister.NationalID; got != id.NationalID("AB12345") {
					t.Fatalf("expected normalized national id AB12345, got %s", got)
				}
			})
		})

		testutil.When(t, "the service reports a blocked conflict", func(t *testing.T) {
			f.svc.registerResult = &service.RegisterResult{
				Conflict: &models.ConflictCase{
					Action:   models.ActionBlockAndNotify,
					Existing: models.WorkerRef{ID: workerID},
				},
			}
			rec := f.do(http.MethodPost, "/workers", payload, true)

			testutil.Then(t, "it should respond 409 with the conflict body", func(t *testing.T) {
				if rec.Code != http.StatusConflict {
					t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
				}
				var resp httptransport.RegisterResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Conflict == nil || resp.Conflict.Action != string(models.ActionBlockAndNotify) {
					t.Fatalf("expected blocked conflict in response, got %+v", resp.Conflict)
				}
			})
		})

		testutil.When(t, "the payload has an unparseable date", func(t *testing.T) {
			bad := map[string]string{
				"nationalId": "ab12345",
				"fullName":   "Maria Lopez",
				"gender":     "female",
				"entryDate":  "03/01/2026",
			}
			rec := f.do(http.MethodPost, "/workers", bad, true)

			testutil.Then(t, "it should respond 400 without reaching the service", func(t *testing.T) {
				if rec.Code != http.StatusBadRequest {
					t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
				}
			})
		})
	})
}

func TestHandleRecordExit(t *testing.T) {
	testutil.Given(t, "an exit request", func(t *testing.T) {
		f := newFixture(t)
		workerID := id.NewWorkerID()

		payload := map[string]string{
			"exitDate":   "2026-04-15",
			"exitReason": "season ended",
		}

		testutil.When(t, "the worker exists", func(t *testing.T) {
			rec := f.do(http.MethodPost, "/workers/"+workerID.String()+"/exit", payload, true)

			testutil.Then(t, "it should respond 204 and pass the parsed command", func(t *testing.T) {
				if rec.Code != http.StatusNoContent {
					t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
				}
				if f.svc.lastExit.WorkerID != workerID {
					t.Fatalf("expected worker %s, got %s", workerID, f.svc.lastExit.WorkerID)
				}
				if f.svc.lastExit.ExitReason != "season ended" {
					t.Fatalf("unexpected exit reason %q", f.svc.lastExit.ExitReason)
				}
			})
		})

		testutil.When(t, "the service reports the worker missing", func(t *testing.T) {
			f.svc.err = dErrors.New(dErrors.CodeNotFound, "worker not found")
			rec := f.do(http.MethodPost, "/workers/"+workerID.String()+"/exit", payload, true)

			testutil.Then(t, "it should respond 404 with the error envelope", func(t *testing.T) {
				if rec.Code != http.StatusNotFound {
					t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
				}
				var body map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if body["error"] != "not_found" {
					t.Fatalf("expected error code not_found, got %q", body["error"])
				}
			})
		})

		testutil.When(t, "the worker id is malformed", func(t *testing.T) {
			f.svc.err = nil
			rec := f.do(http.MethodPost, "/workers/not-a-uuid/exit", payload, true)

			testutil.Then(t, "it should respond 400", func(t *testing.T) {
				if rec.Code != http.StatusBadRequest {
					t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
				}
			})
		})
	})
}

func TestHandleTransfer(t *testing.T) {
	testutil.Given(t, "a transfer confirmation", func(t *testing.T) {
		f := newFixture(t)
		workerID := id.NewWorkerID()

		payload := map[string]string{
			"room":      "12",
			"sector":    "east",
			"entryDate": "2026-05-01",
		}

		testutil.When(t, "the receiving farm confirms the pull", func(t *testing.T) {
			rec := f.do(http.MethodPost, "/workers/"+workerID.String()+"/transfer", payload, true)

			testutil.Then(t, "the destination should be the caller's farm", func(t *testing.T) {
				if rec.Code != http.StatusNoContent {
					t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
				}
				if got := f.svc.lastTransfer.ToFarmID.String(); got != f.farmID.String() {
					t.Fatalf("expected destination farm %s from the token, got %s", f.farmID, got)
				}
			})
		})
	})
}

func TestHandleRepair(t *testing.T) {
	testutil.Given(t, "an on-demand repair request", func(t *testing.T) {
		f := newFixture(t)
		f.svc.repairReport = &occupancy.Report{RoomsChecked: 4, RoomsUpdated: 1}

		testutil.When(t, "the pass completes", func(t *testing.T) {
			rec := f.do(http.MethodPost, "/repair", nil, true)

			testutil.Then(t, "it should return the report", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
				var resp httptransport.RepairResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.RoomsChecked != 4 || resp.RoomsUpdated != 1 {
					t.Fatalf("unexpected report %+v", resp)
				}
			})
		})
	})
}
