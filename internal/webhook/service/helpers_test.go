package service

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/fieldrunner/internal/clock"
	"github.com/smallbiznis/fieldrunner/internal/config"
	directorydomain "github.com/smallbiznis/fieldrunner/internal/directory/domain"
	directoryrepo "github.com/smallbiznis/fieldrunner/internal/directory/repository"
	directoryservice "github.com/smallbiznis/fieldrunner/internal/directory/service"
	obsmetrics "github.com/smallbiznis/fieldrunner/internal/observability/metrics"
	"github.com/smallbiznis/fieldrunner/internal/webhook/domain"
	webhookrepo "github.com/smallbiznis/fieldrunner/internal/webhook/repository"
	"github.com/smallbiznis/fieldrunner/internal/webhook/signature"
	"github.com/smallbiznis/fieldrunner/pkg/db/dbtest"
	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_dGVzdC1zaWduaW5nLXNlY3JldC0wMTIzNDU2Nzg5YWI="

type testEnv struct {
	db       *gorm.DB
	svc      domain.Service
	clock    *clock.FakeClock
	registry *prometheus.Registry
	signer   *svix.Webhook
}

type envOption func(*Params)

func withCache(c domain.ProcessedCache) envOption {
	return func(p *Params) { p.Cache = c }
}

func withLocker(l domain.EventLocker) envOption {
	return func(p *Params) { p.Locker = l }
}

func withDirectory(wrap func(directorydomain.Service) directorydomain.Service) envOption {
	return func(p *Params) { p.Directory = wrap(p.Directory) }
}

func newTestEnv(t *testing.T, opts ...envOption) testEnv {
	t.Helper()

	models := append(directorydomain.Models(), &domain.Event{})
	db := dbtest.Open(t, models...)

	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	verifier, err := signature.NewVerifierWithSecret(testSecret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	signer, err := svix.NewWebhook(testSecret)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}

	directory := directoryservice.NewService(directoryservice.Params{
		Repo:  directoryrepo.NewRepository(db),
		Log:   log,
		GenID: node,
		Clock: clk,
	})

	registry := prometheus.NewRegistry()
	params := Params{
		Repo:           webhookrepo.NewRepository(db),
		Directory:      directory,
		Verifier:       verifier,
		Policy:         config.NewStaticWebhookPolicy(config.DefaultWebhookPolicy()),
		Log:            log,
		GenID:          node,
		Clock:          clk,
		WebhookMetrics: obsmetrics.NewWebhookMetricsForRegistry(registry),
	}
	for _, opt := range opts {
		opt(&params)
	}

	return testEnv{
		db:       db,
		svc:      NewService(params),
		clock:    clk,
		registry: registry,
		signer:   signer,
	}
}

// delivery builds a signed request body the way the provider sends it.
func (e testEnv) delivery(t *testing.T, msgID string, eventType domain.EventType, data string) ([]byte, domain.SignatureHeaders) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"type":      eventType,
		"object":    "event",
		"data":      json.RawMessage(data),
		"timestamp": e.clock.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	now := time.Now()
	sig, err := e.signer.Sign(msgID, now, body)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return body, domain.SignatureHeaders{
		ID:        msgID,
		Timestamp: strconv.FormatInt(now.Unix(), 10),
		Signature: sig,
	}
}

func (e testEnv) event(t *testing.T, msgID string) domain.Event {
	t.Helper()
	var event domain.Event
	if err := e.db.Where("provider_event_id = ?", msgID).Take(&event).Error; err != nil {
		t.Fatalf("load event %s: %v", msgID, err)
	}
	return event
}

func (e testEnv) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (e testEnv) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := e.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

const (
	userPayload = `{
		"id": "user_1",
		"first_name": "Ada",
		"last_name": "Lovelace",
		"email_addresses": [
			{"id": "idn_1", "email_address": "ada@old.example.com"},
			{"id": "idn_2", "email_address": "ada@example.com"}
		],
		"primary_email_address_id": "idn_2",
		"public_metadata": {"plan": "pro"},
		"created_at": 1714550400000,
		"updated_at": 1714550400000
	}`
	orgPayload = `{
		"id": "org_1",
		"name": "Acme",
		"slug": "acme",
		"members_count": null,
		"created_by": "user_1",
		"created_at": 1714550400000,
		"updated_at": 1714550400000
	}`
	membershipPayload = `{
		"id": "orgmem_1",
		"role": "org:admin",
		"permissions": ["org:sys_memberships:manage"],
		"organization": {"id": "org_1"},
		"public_user_data": {"user_id": "user_1"},
		"created_at": 1714550400000,
		"updated_at": 1714550400000
	}`
)
