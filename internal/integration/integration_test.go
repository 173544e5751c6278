//go:build integration
// +build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	httpapi "github.com/groupbuy-hub/groupbuy-hub/internal/api/http"
	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/bidding"
	appDispute "github.com/groupbuy-hub/groupbuy-hub/internal/application/dispute"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/ledger"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/lifecycle"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/scheduler"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/selection"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/eventbus"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/postgres"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/sse"
)

const auditKeyHex = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
const jwtSecret = "integration-secret-0123456789"

type env struct {
	url      string
	auth     *httpapi.Authenticator
	auditSvc *appAudit.Service
}

func TestGroupPurchaseLifecycleIntegration(t *testing.T) {
	e := newTestServer(t)
	creator := actor(user.RoleBuyer)
	buyer := actor(user.RoleBuyer)
	seller := actor(user.RoleSeller)
	admin := actor(user.RoleAdmin)

	var inst map[string]interface{}
	e.call(t, creator, http.MethodPost, "/v1/group-purchases", map[string]interface{}{
		"title":           "Integration beans",
		"product":         map[string]interface{}{"productId": "sku-int", "name": "Beans", "basePrice": 2500},
		"minParticipants": 1,
		"maxParticipants": 3,
		"endTime":         time.Now().Add(time.Hour).UTC(),
	}, http.StatusCreated, &inst)
	base := "/v1/group-purchases/" + inst["instanceId"].(string)

	e.call(t, buyer, http.MethodPost, base+"/join", nil, http.StatusCreated, nil)
	e.call(t, admin, http.MethodPost, "/v1/admin/tokens/grants", map[string]interface{}{
		"sellerId": seller.UserID, "type": "SINGLE_USE", "quantity": 1,
	}, http.StatusCreated, nil)
	e.call(t, admin, http.MethodPost, "/v1/payments/token-purchases", map[string]interface{}{
		"sellerId": seller.UserID, "type": "SINGLE_USE", "quantity": 5, "externalOrderId": "order-1",
	}, http.StatusCreated, nil)
	e.call(t, admin, http.MethodPost, "/v1/payments/token-purchases", map[string]interface{}{
		"sellerId": seller.UserID, "type": "SINGLE_USE", "quantity": 5, "externalOrderId": "order-1",
	}, http.StatusOK, nil)

	e.call(t, seller, http.MethodPost, base+"/bids", map[string]interface{}{"amount": 7000}, http.StatusCreated, nil)
	e.call(t, seller, http.MethodPost, base+"/bids", map[string]interface{}{"amount": 6500}, http.StatusCreated, nil)

	var bal map[string]interface{}
	e.call(t, seller, http.MethodGet, "/v1/tokens/balance", nil, http.StatusOK, &bal)
	if bal["available"].(float64) != 4 {
		t.Fatalf("expected 4 tokens left, got %v", bal["available"])
	}

	var closed map[string]interface{}
	e.call(t, creator, http.MethodPost, base+"/close", nil, http.StatusOK, &closed)
	if got := closed["instance"].(map[string]interface{})["status"]; got != "FINAL_SELECTION_BUYERS" {
		t.Fatalf("unexpected status after close: %v", got)
	}

	e.call(t, buyer, http.MethodPost, base+"/decisions", map[string]string{"decision": "CONFIRM"}, http.StatusOK, nil)
	var done map[string]interface{}
	e.call(t, seller, http.MethodPost, base+"/decisions", map[string]string{"decision": "CONFIRM"}, http.StatusOK, &done)
	if got := done["instance"].(map[string]interface{})["status"]; got != "COMPLETED" {
		t.Fatalf("unexpected final status: %v", got)
	}

	var report map[string]interface{}
	e.call(t, buyer, http.MethodPost, "/v1/reports", map[string]interface{}{
		"instanceId": inst["instanceId"], "reportedId": seller.UserID, "type": "SELLER_NO_SHOW",
		"content": "seller never delivered",
	}, http.StatusCreated, &report)
	reportPath := "/v1/reports/" + report["reportId"].(string)
	e.call(t, buyer, http.MethodPatch, reportPath, map[string]interface{}{"content": "seller never delivered, twice"}, http.StatusOK, nil)
	e.call(t, buyer, http.MethodPatch, reportPath, map[string]interface{}{"content": "again"}, http.StatusConflict, nil)
	e.call(t, seller, http.MethodPost, reportPath+"/objection", map[string]interface{}{"content": "delivered on time"}, http.StatusCreated, nil)

	e.auditSvc.Flush()
	var logs []map[string]interface{}
	e.call(t, admin, http.MethodGet, "/v1/admin/audit?entityId="+inst["instanceId"].(string), nil, http.StatusOK, &logs)
	if len(logs) == 0 {
		t.Fatalf("expected audit entries for the group purchase")
	}
	var verified map[string]interface{}
	e.call(t, admin, http.MethodGet, "/v1/admin/audit/"+logs[0]["auditId"].(string)+"/verify", nil, http.StatusOK, &verified)
	if verified["verified"] != true {
		t.Fatalf("audit signature not verified: %v", verified)
	}
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	e := newTestServer(t)
	creator := actor(user.RoleBuyer)

	var inst map[string]interface{}
	e.call(t, creator, http.MethodPost, "/v1/group-purchases", map[string]interface{}{
		"title":           "Capacity race",
		"product":         map[string]interface{}{"productId": "sku-race", "name": "Race"},
		"minParticipants": 1,
		"maxParticipants": 3,
		"endTime":         time.Now().Add(time.Hour).UTC(),
	}, http.StatusCreated, &inst)
	path := "/v1/group-purchases/" + inst["instanceId"].(string) + "/join"

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code := e.send(t, actor(user.RoleBuyer), http.MethodPost, path, nil)
			mu.Lock()
			statuses[code]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if statuses[http.StatusCreated] != 3 || statuses[http.StatusConflict] != 7 {
		t.Fatalf("unexpected join outcomes: %v", statuses)
	}
}

func TestSSEDeliveryIntegration(t *testing.T) {
	e := newTestServer(t)
	creator := actor(user.RoleBuyer)
	buyer := actor(user.RoleBuyer)
	seller := actor(user.RoleSeller)
	admin := actor(user.RoleAdmin)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url+"/v1/events", nil)
	if err != nil {
		t.Fatalf("sse request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token(t, seller))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sse connect: %v", err)
	}
	defer resp.Body.Close()

	msgCh := make(chan map[string]interface{}, 4)
	go func() {
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data: ") {
				var msg map[string]interface{}
				if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data: "))), &msg); err == nil {
					msgCh <- msg
				}
			}
		}
	}()

	var inst map[string]interface{}
	e.call(t, creator, http.MethodPost, "/v1/group-purchases", map[string]interface{}{
		"title":           "SSE flow",
		"product":         map[string]interface{}{"productId": "sku-sse", "name": "SSE"},
		"minParticipants": 1,
		"maxParticipants": 2,
		"endTime":         time.Now().Add(time.Hour).UTC(),
	}, http.StatusCreated, &inst)
	base := "/v1/group-purchases/" + inst["instanceId"].(string)
	e.call(t, buyer, http.MethodPost, base+"/join", nil, http.StatusCreated, nil)
	e.call(t, admin, http.MethodPost, "/v1/admin/tokens/grants", map[string]interface{}{
		"sellerId": seller.UserID, "type": "SINGLE_USE", "quantity": 1,
	}, http.StatusCreated, nil)
	e.call(t, seller, http.MethodPost, base+"/bids", map[string]interface{}{"amount": 1000}, http.StatusCreated, nil)
	e.call(t, creator, http.MethodPost, base+"/close", nil, http.StatusOK, nil)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msg := <-msgCh:
			if msg["type"] == "BidSelected" {
				if msg["instanceId"] != inst["instanceId"] {
					t.Fatalf("event for wrong instance: %v", msg["instanceId"])
				}
				return
			}
		case <-deadline:
			t.Fatalf("BidSelected event not received")
		}
	}
}

func actor(role user.Role) user.Actor {
	return user.Actor{UserID: uuid.New(), Role: role, ProfileComplete: true}
}

func (e *env) token(t *testing.T, a user.Actor) string {
	t.Helper()
	tok, err := e.auth.Issue(a, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *env) send(t *testing.T, a user.Actor, method, path string, body interface{}) int {
	resp := e.do(t, a, method, path, body)
	if resp == nil {
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func (e *env) do(t *testing.T, a user.Actor, method, path string, body interface{}) *http.Response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Errorf("marshal request: %v", err)
			return nil
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.url+path, reader)
	if err != nil {
		t.Errorf("new request: %v", err)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token(t, a))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Errorf("%s %s: %v", method, path, err)
		return nil
	}
	return resp
}

func (e *env) call(t *testing.T, a user.Actor, method, path string, body interface{}, want int, out interface{}) {
	t.Helper()
	resp := e.do(t, a, method, path, body)
	if resp == nil {
		t.FailNow()
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, resp.StatusCode, want, string(data))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func newTestServer(t *testing.T) *env {
	t.Helper()
	dsn := testDatabaseURL(t)

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolOptions{MaxConns: 10})
	if err != nil {
		t.Fatalf("db pool: %v", err)
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	if err := resetDatabase(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("reset db: %v", err)
	}

	logger := zerolog.Nop()
	st := postgres.NewStore(pool)
	sseHub := sse.NewHub(16)
	dispatcher := eventbus.NewDispatcher(64, logger, sseHub)
	dispatcher.Start(ctx)

	auditSvc := appAudit.NewService(postgres.NewAuditRepository(pool), logger, mustDecodeHex(t, auditKeyHex))
	lifecycleSvc := lifecycle.NewService(st, auditSvc, dispatcher, lifecycle.Config{
		BuyerDecisionWindow: 48 * time.Hour, SellerDecisionWindow: 24 * time.Hour,
	}, logger)
	ledgerSvc := ledger.NewService(st, auditSvc, logger)
	biddingSvc := bidding.NewService(st, ledgerSvc, auditSvc, logger)
	selectionSvc := selection.NewService(st, auditSvc, dispatcher, logger)
	disputeSvc := appDispute.NewService(st, auditSvc, dispatcher, appDispute.Config{}, logger)
	sweeper := scheduler.NewService(st, lifecycleSvc, selectionSvc, logger)
	auth := httpapi.NewAuthenticator(jwtSecret, "")

	apiServer := httpapi.NewServer(lifecycleSvc, biddingSvc, selectionSvc, ledgerSvc, disputeSvc, auditSvc, sweeper, sseHub, auth, nil, logger)
	server := httptest.NewServer(apiServer.Router())

	t.Cleanup(func() {
		sseHub.Stop()
		server.Close()
		dispatcher.Close()
		auditSvc.Flush()
		pool.Close()
	})
	return &env{url: server.URL, auth: auth, auditSvc: auditSvc}
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	t.Skip("TEST_DATABASE_URL not set; skipping integration tests")
	return ""
}

func resetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	tables := []string{
		"report_objections",
		"no_show_reports",
		"decision_records",
		"token_consumptions",
		"token_grants",
		"bids",
		"participations",
		"group_buy_instances",
		"audit_logs",
	}
	_, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", ")))
	return err
}

func mustDecodeHex(t *testing.T, value string) []byte {
	t.Helper()
	b, err := hex.DecodeString(value)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	return b
}
