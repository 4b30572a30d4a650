package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/fieldrunner/internal/auth/domain"
	"github.com/smallbiznis/fieldrunner/internal/authorization"
	"github.com/smallbiznis/fieldrunner/internal/clock"
	"github.com/smallbiznis/fieldrunner/internal/config"
	directorydomain "github.com/smallbiznis/fieldrunner/internal/directory/domain"
	directoryrepo "github.com/smallbiznis/fieldrunner/internal/directory/repository"
	directoryservice "github.com/smallbiznis/fieldrunner/internal/directory/service"
	"github.com/smallbiznis/fieldrunner/internal/observability"
	webhookdomain "github.com/smallbiznis/fieldrunner/internal/webhook/domain"
	webhookrepo "github.com/smallbiznis/fieldrunner/internal/webhook/repository"
	webhookservice "github.com/smallbiznis/fieldrunner/internal/webhook/service"
	"github.com/smallbiznis/fieldrunner/internal/webhook/signature"
	"github.com/smallbiznis/fieldrunner/pkg/db/dbtest"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_dGVzdC1zaWduaW5nLXNlY3JldC0wMTIzNDU2Nzg5YWI="

// fakeSessions accepts the tokens it was seeded with.
type fakeSessions map[string]authdomain.Principal

func (f fakeSessions) VerifySessionToken(ctx context.Context, token string) (*authdomain.Principal, error) {
	principal, ok := f[token]
	if !ok {
		return nil, authdomain.ErrUnauthorized
	}
	return &principal, nil
}

var sessions = fakeSessions{
	"admin-token": {
		UserID: "user_1", SessionID: "sess_1",
		OrgID: "org_1", OrgSlug: "acme", OrgRole: "org:admin",
	},
	"member-token": {
		UserID: "user_2", SessionID: "sess_2",
		OrgID: "org_1", OrgSlug: "acme", OrgRole: "org:member",
	},
	"personal-token": {
		UserID: "user_1", SessionID: "sess_3",
	},
}

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	signer *svix.Webhook
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	models := append(directorydomain.Models(), &webhookdomain.Event{})
	db := dbtest.Open(t, models...)

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	directory := directoryservice.NewService(directoryservice.Params{
		Repo:  directoryrepo.NewRepository(db),
		Log:   log,
		GenID: node,
		Clock: clk,
	})
	verifier, err := signature.NewVerifierWithSecret(testSecret)
	require.NoError(t, err)
	webhooks := webhookservice.NewService(webhookservice.Params{
		Repo:      webhookrepo.NewRepository(db),
		Directory: directory,
		Verifier:  verifier,
		Policy:    config.NewStaticWebhookPolicy(config.DefaultWebhookPolicy()),
		Log:       log,
		GenID:     node,
		Clock:     clk,
	})

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{DB: db, Log: log, Enforcer: enforcer})

	cfg := config.Config{CORSOrigins: []string{"http://localhost:3000"}}
	engine := NewEngine(EngineParams{
		Cfg:    cfg,
		ObsCfg: observability.Config{Environment: "test"},
	})
	NewServer(ServerParams{
		Gin:          engine,
		Cfg:          cfg,
		Log:          log,
		WebhookSvc:   webhooks,
		DirectorySvc: directory,
		Sessions:     sessions,
		AuthzSvc:     authz,
	})

	signer, err := svix.NewWebhook(testSecret)
	require.NoError(t, err)

	return testServer{engine: engine, db: db, signer: signer}
}

// deliver posts a signed provider event.
func (s testServer) deliver(t *testing.T, msgID string, eventType string, data string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"type":"` + eventType + `","object":"event","data":` + data + `,"timestamp":1714550400000}`
	now := time.Now()
	sig, err := s.signer.Sign(msgID, now, []byte(body))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhookdomain.HeaderID, msgID)
	req.Header.Set(webhookdomain.HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	req.Header.Set(webhookdomain.HeaderSignature, sig)
	return s.do(req)
}

func (s testServer) get(path string, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.do(req)
}

func (s testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w.Body)
	payload, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	typ, _ := payload["type"].(string)
	return typ
}

const (
	userPayload = `{
		"id": "user_1",
		"first_name": "Ada",
		"email_addresses": [{"id": "idn_1", "email_address": "ada@example.com"}],
		"primary_email_address_id": "idn_1",
		"created_at": 1714550400000,
		"updated_at": 1714550400000
	}`
	orgPayload = `{
		"id": "org_1",
		"name": "Acme",
		"slug": "acme",
		"created_at": 1714550400000,
		"updated_at": 1714550400000
	}`
	membershipPayload = `{
		"id": "orgmem_1",
		"role": "org:admin",
		"organization": {"id": "org_1"},
		"public_user_data": {"user_id": "user_1"},
		"created_at": 1714550400000,
		"updated_at": 1714550400000
	}`
)
