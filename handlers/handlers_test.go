package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"mint-dashboard/db"
	"mint-dashboard/gateway"
	"mint-dashboard/handlers"
	"mint-dashboard/logger"
	"mint-dashboard/models"
	"mint-dashboard/repository"
	"mint-dashboard/routers"
	"mint-dashboard/session"
)

const now = 1_700_000_000

type mockWallet struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	account  common.Address
	rank     int64
	mint     *models.MintRecord
	readErr  error
	claimErr error
	writes   int
}

func (m *mockWallet) Account() common.Address { return m.account }

func (m *mockWallet) GlobalRank(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return big.NewInt(m.rank), nil
}

func (m *mockWallet) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return big.NewInt(2_500_000_000_000_000_000), nil
}

func (m *mockWallet) UserMints(ctx context.Context, owner common.Address) (*models.MintRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mint == nil {
		return &models.MintRecord{Rank: big.NewInt(0)}, nil
	}
	// return a copy to simulate a chain read
	copy := *m.mint
	return &copy, nil
}

func (m *mockWallet) ClaimRank(ctx context.Context, term uint64) (*models.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	m.rank++
	m.mint = &models.MintRecord{Term: term, Rank: big.NewInt(m.rank), MaturityTs: m.clock.Now().Unix() + int64(term)*86400}
	return &models.Receipt{TxHash: common.HexToHash("0xaa"), BlockNumber: 10, Status: 1}, nil
}

func (m *mockWallet) ClaimMintReward(ctx context.Context) (*models.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	m.mint = nil
	return &models.Receipt{TxHash: common.HexToHash("0xbb"), BlockNumber: 11, Status: 1}, nil
}

func (m *mockWallet) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func testServer(t *testing.T) (*mux.Router, *mockWallet) {
	t.Helper()
	logger.Logger = zap.NewNop()

	clock := clockwork.NewFakeClockAt(time.Unix(now, 0))
	wallet := &mockWallet{clock: clock, account: common.HexToAddress("0x00000000000000000000000000000000000000d4"), rank: 5}

	ldb, err := db.NewMemLevelDB()
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	t.Cleanup(func() { ldb.Close() })
	journal := repository.NewActivityRepository(ldb)

	sessions, err := session.NewManager(session.Config{Wallet: wallet, Journal: journal, Clock: clock})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(func() { sessions.Close(context.Background()) })

	handler := handlers.NewHandler(sessions, journal)
	router := mux.NewRouter()
	routers.RegisterRoutes(router, handler)
	return router, wallet
}

func do(router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		bodyJSON, _ := json.Marshal(body)
		reader = bytes.NewReader(bodyJSON)
	} else {
		reader = bytes.NewReader(nil)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(method, path, reader))
	return res
}

func connect(t *testing.T, router *mux.Router) {
	t.Helper()
	res := do(router, http.MethodPost, "/session", nil)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected connect 201, got %d, body: %s", res.Code, res.Body.String())
	}
}

func decodeState(t *testing.T, res *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var state map[string]interface{}
	if err := json.Unmarshal(res.Body.Bytes(), &state); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	return state
}

func TestState_NotConnected(t *testing.T) {
	router, _ := testServer(t)

	for _, path := range []string{"/state", "/session", "/activity"} {
		res := do(router, http.MethodGet, path, nil)
		if res.Code != http.StatusConflict {
			t.Fatalf("%s: expected 409, got %d, body: %s", path, res.Code, res.Body.String())
		}
	}
	res := do(router, http.MethodPost, "/mint/claim-rank", map[string]interface{}{"term": 1})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestConnect_ReturnsSyncedState(t *testing.T) {
	router, _ := testServer(t)
	connect(t, router)

	res := do(router, http.MethodGet, "/state", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	state := decodeState(t, res)
	if state["state"] != string(models.StateNoMint) {
		t.Fatalf("expected no_mint, got %v", state["state"])
	}
	if state["mint"] != nil {
		t.Fatalf("expected null mint, got %v", state["mint"])
	}
	if state["balance_display"] != "2.5" {
		t.Fatalf("expected balance 2.5, got %v", state["balance_display"])
	}
	if _, ok := state["reward_estimate"]; ok {
		t.Fatalf("reward estimate must be absent without a mint")
	}
}

func TestClaimRank_Success(t *testing.T) {
	router, wallet := testServer(t)
	connect(t, router)

	res := do(router, http.MethodPost, "/mint/claim-rank", map[string]interface{}{"term": 2})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	body := decodeState(t, res)
	state, ok := body["state"].(map[string]interface{})
	if !ok {
		t.Fatalf("Missing 'state' in response: %v", body)
	}
	if state["state"] != string(models.StateMintActive) {
		t.Fatalf("expected mint_active, got %v", state["state"])
	}
	if state["countdown"] != "48:00:00" {
		t.Fatalf("expected countdown 48:00:00, got %v", state["countdown"])
	}
	if wallet.writeCount() != 1 {
		t.Fatalf("expected 1 write, got %d", wallet.writeCount())
	}
}

func TestClaimRank_InvalidPayload(t *testing.T) {
	router, wallet := testServer(t)
	connect(t, router)

	for _, body := range []interface{}{
		map[string]interface{}{},
		map[string]interface{}{"term": -1},
		"nope",
	} {
		res := do(router, http.MethodPost, "/mint/claim-rank", body)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d, body: %s", body, res.Code, res.Body.String())
		}
	}

	res := do(router, http.MethodPost, "/mint/claim-rank", map[string]interface{}{"term": 0})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero term, got %d", res.Code)
	}
	if wallet.writeCount() != 0 {
		t.Fatalf("expected no writes, got %d", wallet.writeCount())
	}
}

func TestClaimRank_AlreadyMinting(t *testing.T) {
	router, wallet := testServer(t)
	wallet.mint = &models.MintRecord{Term: 1, Rank: big.NewInt(3), MaturityTs: now + 100}
	connect(t, router)

	res := do(router, http.MethodPost, "/mint/claim-rank", map[string]interface{}{"term": 1})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body: %s", res.Code, res.Body.String())
	}
	if wallet.writeCount() != 0 {
		t.Fatalf("expected no writes, got %d", wallet.writeCount())
	}
}

func TestClaimReward_NotMatured(t *testing.T) {
	router, wallet := testServer(t)
	wallet.mint = &models.MintRecord{Term: 1, Rank: big.NewInt(3), MaturityTs: now + 100}
	connect(t, router)

	res := do(router, http.MethodPost, "/mint/claim-reward", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body: %s", res.Code, res.Body.String())
	}
	if wallet.writeCount() != 0 {
		t.Fatalf("expected no writes, got %d", wallet.writeCount())
	}

	state := decodeState(t, do(router, http.MethodGet, "/state", nil))
	if state["countdown"] != "00:01:40" {
		t.Fatalf("expected countdown 00:01:40, got %v", state["countdown"])
	}
	if state["reward_estimate"] != float64(2) {
		t.Fatalf("expected reward estimate 2, got %v", state["reward_estimate"])
	}
}

func TestClaimReward_Success(t *testing.T) {
	router, wallet := testServer(t)
	wallet.mint = &models.MintRecord{Term: 1, Rank: big.NewInt(5), MaturityTs: now}
	connect(t, router)

	res := do(router, http.MethodPost, "/mint/claim-reward", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	body := decodeState(t, res)
	state := body["state"].(map[string]interface{})
	if state["state"] != string(models.StateNoMint) {
		t.Fatalf("expected no_mint after reward, got %v", state["state"])
	}
}

func TestClaimReward_NoActiveMint(t *testing.T) {
	router, _ := testServer(t)
	connect(t, router)

	res := do(router, http.MethodPost, "/mint/claim-reward", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestClaim_GatewayErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"submission", &gateway.SubmissionError{Method: "claimRank", Err: errors.New("user rejected")}, http.StatusBadGateway},
		{"confirmation", &gateway.ConfirmationError{Method: "claimRank", TxHash: common.HexToHash("0x01"), BlockNumber: 3}, http.StatusUnprocessableEntity},
		{"unconfirmed", &gateway.UnconfirmedError{Method: "claimRank", TxHash: common.HexToHash("0x02"), Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, wallet := testServer(t)
			connect(t, router)
			wallet.mu.Lock()
			wallet.claimErr = tt.err
			wallet.mu.Unlock()

			res := do(router, http.MethodPost, "/mint/claim-rank", map[string]interface{}{"term": 1})
			if res.Code != tt.code {
				t.Fatalf("expected %d, got %d, body: %s", tt.code, res.Code, res.Body.String())
			}

			state := decodeState(t, do(router, http.MethodGet, "/state", nil))
			if state["state"] != string(models.StateNoMint) {
				t.Fatalf("expected state restored to no_mint, got %v", state["state"])
			}
		})
	}
}

func TestRefresh_ReadErrorKeepsState(t *testing.T) {
	router, wallet := testServer(t)
	connect(t, router)

	wallet.mu.Lock()
	wallet.readErr = errors.New("connection refused")
	wallet.mu.Unlock()

	res := do(router, http.MethodPost, "/state/refresh", nil)
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d, body: %s", res.Code, res.Body.String())
	}

	state := decodeState(t, do(router, http.MethodGet, "/state", nil))
	if state["global_rank"] != float64(5) {
		t.Fatalf("expected cached global rank 5, got %v", state["global_rank"])
	}
}

func TestRefresh_RankRegression(t *testing.T) {
	router, wallet := testServer(t)
	connect(t, router)

	wallet.mu.Lock()
	wallet.rank = 2
	wallet.mu.Unlock()

	res := do(router, http.MethodPost, "/state/refresh", nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestActivity_AndDisconnect(t *testing.T) {
	router, _ := testServer(t)
	connect(t, router)

	if res := do(router, http.MethodPost, "/mint/claim-rank", map[string]interface{}{"term": 1}); res.Code != http.StatusOK {
		t.Fatalf("claim failed: %d", res.Code)
	}

	res := do(router, http.MethodGet, "/activity", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Activity []models.Activity `json:"activity"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if len(body.Activity) != 2 {
		t.Fatalf("expected 2 activity entries, got %d", len(body.Activity))
	}
	if body.Activity[1].Status != models.ActivityConfirmed {
		t.Fatalf("expected confirmed entry, got %s", body.Activity[1].Status)
	}

	if res := do(router, http.MethodDelete, "/session", nil); res.Code != http.StatusOK {
		t.Fatalf("expected disconnect 200, got %d", res.Code)
	}
	if res := do(router, http.MethodDelete, "/session", nil); res.Code != http.StatusConflict {
		t.Fatalf("expected second disconnect 409, got %d", res.Code)
	}
	if res := do(router, http.MethodGet, "/state", nil); res.Code != http.StatusConflict {
		t.Fatalf("expected 409 after disconnect, got %d", res.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := testServer(t)
	res := do(router, http.MethodGet, "/metrics", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !bytes.Contains(res.Body.Bytes(), []byte("mint_dashboard_sessions_active")) {
		t.Fatalf("expected dashboard metrics in output")
	}
}
