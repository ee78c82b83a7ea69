package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/baharkarakas/betsave-core/internal/auth"
	"github.com/baharkarakas/betsave-core/internal/models"
	"github.com/baharkarakas/betsave-core/internal/queue"
	"github.com/baharkarakas/betsave-core/internal/repository/memory"
	"github.com/baharkarakas/betsave-core/internal/services"
)

const (
	partnerKey    = "acme-key"
	partnerSecret = "acme-secret"
	adminEmail    = "ops@betsave.io"
	adminPassword = "s3cret"
)

type fixture struct {
	st      *memory.Store
	h       http.Handler
	tokens  *auth.TokenManager
	partner models.Partner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewStore()
	partner := st.AddPartner(models.Partner{Name: "acme", APIKey: partnerKey, APISecret: partnerSecret})
	st.AddUser(models.User{PhoneNumber: "+254700000001", Verified: true, Status: models.UserActive, AutoSave: true})

	broker := queue.NewBroker(st.Jobs())
	eq := broker.Queue(queue.EventProcessing, queue.EventPolicy)
	wq := broker.Queue(queue.PartnerWebhook, queue.WebhookPolicy)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	tokens := auth.NewTokenManager("access", "refresh", "betsave-core", 15*time.Minute, time.Hour)

	h := NewRouter(RouterDeps{
		RateRPS:   0,
		Verifier:  auth.NewRequestVerifier(st.Partners(), time.Second, nil),
		Tokens:    tokens,
		Intake:    services.NewIntakeService(st.Events(), st.Users(), eq, nil),
		Reports:   services.NewReportService(st.Events(), st.Ledger(), st.Wallets(), st.WebhookFailures(), eq, wq),
		AdminAuth: services.NewAdminAuthService(auth.AdminCredentials{Email: adminEmail, PasswordHash: string(hash)}, tokens),
	})
	return &fixture{st: st, h: h, tokens: tokens, partner: partner}
}

func signed(method, uri, body, secret string, at time.Time) *http.Request {
	r := httptest.NewRequest(method, uri, strings.NewReader(body))
	ts := strconv.FormatInt(at.UnixMilli(), 10)
	canon, _ := auth.CanonicalBody([]byte(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(auth.HeaderAPIKey, partnerKey)
	r.Header.Set(auth.HeaderTimestamp, ts)
	r.Header.Set(auth.HeaderSignature, auth.RequestSignature(secret, ts, method, uri, canon))
	return r
}

func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestIngestEndpoint(t *testing.T) {
	f := newFixture(t)
	body := `{"eventId":"E1","phone":"+254700000001","amount":2000}`

	w := f.do(signed("POST", "/api/v1/partners/events", body, partnerSecret, time.Now()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body)
	}
	if got := decode(t, w); got["status"] != "RECEIVED" || got["eventId"] != "E1" {
		t.Fatalf("body = %v", got)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id header missing")
	}

	// whitespace is not part of the signed body
	replay := "{ \"eventId\": \"E1\",\n  \"phone\": \"+254700000001\", \"amount\": 2000 }"
	w = f.do(signed("POST", "/api/v1/partners/events", replay, partnerSecret, time.Now()))
	if w.Code != http.StatusOK || decode(t, w)["status"] != "SKIPPED" {
		t.Fatalf("replay: %d %s", w.Code, w.Body)
	}
	if n := len(f.st.AllEvents()); n != 1 {
		t.Fatalf("want 1 event, got %d", n)
	}
}

func TestIngestAuthFailures(t *testing.T) {
	body := `{"eventId":"E1","phone":"+254700000001","amount":2000}`
	cases := []struct {
		name   string
		req    func(f *fixture) *http.Request
		status int
		code   string
	}{
		{"no headers", func(*fixture) *http.Request {
			return httptest.NewRequest("POST", "/api/v1/partners/events", strings.NewReader(body))
		}, 401, "AUTH_MISSING"},
		{"wrong secret", func(*fixture) *http.Request {
			return signed("POST", "/api/v1/partners/events", body, "other", time.Now())
		}, 401, "AUTH_INVALID"},
		{"stale timestamp", func(*fixture) *http.Request {
			return signed("POST", "/api/v1/partners/events", body, partnerSecret, time.Now().Add(-10*time.Minute))
		}, 401, "AUTH_EXPIRED"},
		{"tampered body", func(*fixture) *http.Request {
			r := signed("POST", "/api/v1/partners/events", body, partnerSecret, time.Now())
			r.Body = io.NopCloser(strings.NewReader(strings.Replace(body, "2000", "9000", 1)))
			return r
		}, 401, "AUTH_INVALID"},
		{"suspended partner", func(f *fixture) *http.Request {
			p := f.partner
			p.Status = models.PartnerSuspended
			f.st.UpdatePartner(p)
			return signed("POST", "/api/v1/partners/events", body, partnerSecret, time.Now())
		}, 403, "AUTH_SUSPENDED"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(c.req(f))
			if w.Code != c.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, c.status, w.Body)
			}
			if got := decode(t, w)["code"]; got != c.code {
				t.Fatalf("code = %v, want %s", got, c.code)
			}
			if n := len(f.st.AllEvents()); n != 0 {
				t.Fatalf("rejected call stored %d events", n)
			}
		})
	}
}

func TestIngestValidation(t *testing.T) {
	cases := map[string]string{
		"fractional amount": `{"eventId":"E1","phone":"+254700000001","amount":10.5}`,
		"zero amount":       `{"eventId":"E1","phone":"+254700000001","amount":0}`,
		"missing phone":     `{"eventId":"E1","amount":100}`,
		"missing event id":  `{"phone":"+254700000001","amount":100}`,
		"amount not number": `{"eventId":"E1","phone":"+254700000001","amount":true}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(signed("POST", "/api/v1/partners/events", body, partnerSecret, time.Now()))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d (%s)", w.Code, w.Body)
			}
			if got := decode(t, w)["code"]; got != "VALIDATION_FAILED" {
				t.Fatalf("code = %v", got)
			}
			if n := len(f.st.AllEvents()); n != 0 {
				t.Fatalf("invalid input stored %d events", n)
			}
			if n := len(f.st.AllJobs("")); n != 0 {
				t.Fatalf("invalid input queued %d jobs", n)
			}
		})
	}
}

func TestIngestBusinessRejection(t *testing.T) {
	f := newFixture(t)
	body := `{"eventId":"E1","phone":"+254799999999","amount":100}`
	w := f.do(signed("POST", "/api/v1/partners/events", body, partnerSecret, time.Now()))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode(t, w)
	if got["status"] != "FAILED" || got["reason"] != "user not found" || got["eventId"] != "E1" {
		t.Fatalf("body = %v", got)
	}
}

func TestPartnerReadRoutes(t *testing.T) {
	f := newFixture(t)
	f.do(signed("POST", "/api/v1/partners/events", `{"eventId":"E1","phone":"+254700000001","amount":100}`, partnerSecret, time.Now()))

	w := f.do(signed("GET", "/api/v1/partners/events?status=received", "", partnerSecret, time.Now()))
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body)
	}
	items := decode(t, w)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %v", items)
	}

	w = f.do(signed("GET", "/api/v1/partners/events/E1", "", partnerSecret, time.Now()))
	if w.Code != http.StatusOK || decode(t, w)["event_id"] != "E1" {
		t.Fatalf("get: %d %s", w.Code, w.Body)
	}
	w = f.do(signed("GET", "/api/v1/partners/events/nope", "", partnerSecret, time.Now()))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing event: %d", w.Code)
	}
	w = f.do(signed("GET", "/api/v1/partners/events?status=bogus", "", partnerSecret, time.Now()))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: %d", w.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest("GET", "/api/v1/admin/overview", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}

	login := httptest.NewRequest("POST", "/api/v1/admin/auth/login",
		strings.NewReader(`{"email":"`+adminEmail+`","password":"wrong"}`))
	if w := f.do(login); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: %d", w.Code)
	}

	login = httptest.NewRequest("POST", "/api/v1/admin/auth/login",
		strings.NewReader(`{"email":"`+adminEmail+`","password":"`+adminPassword+`"}`))
	w = f.do(login)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body)
	}
	token := decode(t, w)["access_token"].(string)

	for _, path := range []string{
		"/api/v1/admin/overview",
		"/api/v1/admin/events?status=PROCESSED",
		"/api/v1/admin/ledger?user_id=u1",
		"/api/v1/admin/webhook-failures",
	} {
		r := httptest.NewRequest("GET", path, nil)
		r.Header.Set("Authorization", "Bearer "+token)
		if w := f.do(r); w.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", path, w.Code, w.Body)
		}
	}

	f.do(signed("POST", "/api/v1/partners/events", `{"eventId":"E1","phone":"+254700000001","amount":100}`, partnerSecret, time.Now()))
	ev := f.st.AllEvents()[0]
	r := httptest.NewRequest("GET", "/api/v1/admin/events/"+ev.ID, nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if w := f.do(r); w.Code != http.StatusOK {
		t.Fatalf("event detail: %d %s", w.Code, w.Body)
	}
	r = httptest.NewRequest("GET", "/api/v1/admin/events/not-a-uuid", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if w := f.do(r); w.Code != http.StatusNotFound {
		t.Fatalf("bad id: %d", w.Code)
	}

	r = httptest.NewRequest("GET", "/api/v1/admin/ledger", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if w := f.do(r); w.Code != http.StatusBadRequest {
		t.Fatalf("ledger without user_id: %d", w.Code)
	}
	r = httptest.NewRequest("GET", "/api/v1/admin/wallets/unknown", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if w := f.do(r); w.Code != http.StatusNotFound {
		t.Fatalf("unknown wallet: %d", w.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newFixture(t)
	pair, err := f.tokens.GeneratePair("someone", "viewer")
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest("GET", "/api/v1/admin/overview", nil)
	r.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	if w := f.do(r); w.Code != http.StatusForbidden {
		t.Fatalf("viewer: %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("health: %d %q", w.Code, w.Body)
	}
}
