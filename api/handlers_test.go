package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	cerrors "github.com/kamalbuilds/polyflow-ai-sub001/common/errors"
	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type fakeCore struct {
	mu        sync.Mutex
	submitID  string
	submitErr error
	requests  []*types.OperationRequest
	tx        *types.Transaction
	statusErr error
	cancelErr error
	cancelled []string
	health    map[uint64]bool
}

func (f *fakeCore) Submit(ctx context.Context, request *types.OperationRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	return f.submitID, f.submitErr
}

func (f *fakeCore) GetStatus(transactionID string) (*types.Transaction, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.tx, nil
}

func (f *fakeCore) Cancel(transactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, transactionID)
	return f.cancelErr
}

func (f *fakeCore) HealthStatus() map[uint64]bool {
	return f.health
}

func (f *fakeCore) lastRequest() *types.OperationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func serverTestSetup(t *testing.T, core Core) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return NewServer(&Config{Addr: ":0", Core: core, Logger: logger})
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()

	var response ErrorResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	return response.Error
}

func submitBody() map[string]interface{} {
	return map[string]interface{}{
		"kind":        "teleport",
		"sourceChain": 0,
		"destChain":   1000,
		"asset":       "dot",
		"amount":      "1000000",
		"recipient":   "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
	}
}

func TestSubmitTransactionAccepted(t *testing.T) {
	core := &fakeCore{submitID: "tx-1"}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodPost, "/api/v1/transactions", submitBody())

	assert.Equal(t, http.StatusAccepted, recorder.Code)

	var response SubmitTransactionResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "tx-1", response.TransactionID)
	assert.Equal(t, "PENDING", response.Status)

	request := core.lastRequest()
	assert.NotNil(t, request)
	assert.Equal(t, types.KindTeleport, request.Kind)
	assert.Equal(t, uint64(0), request.SourceChain)
	assert.Equal(t, uint64(1000), request.DestChain)
	assert.Equal(t, "1000000", request.Amount.String())
	assert.Equal(t, types.OptimizationStandard, request.Optimization)
}

func TestSubmitParsesOptionalOverrides(t *testing.T) {
	core := &fakeCore{submitID: "tx-1"}
	s := serverTestSetup(t, core)

	body := submitBody()
	body["optimization"] = "economy"
	body["timeoutMs"] = 90000
	body["includeRefund"] = true

	recorder := doRequest(t, s, http.MethodPost, "/api/v1/transactions", body)

	assert.Equal(t, http.StatusAccepted, recorder.Code)

	request := core.lastRequest()
	assert.Equal(t, types.OptimizationEconomy, request.Optimization)
	assert.Equal(t, 90*time.Second, request.Timeout)
	assert.True(t, request.IncludeRefund)
}

func TestSubmitMissingFieldsRejected(t *testing.T) {
	core := &fakeCore{}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodPost, "/api/v1/transactions", map[string]interface{}{
		"kind": "teleport",
	})

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, recorder).Code)
	assert.Nil(t, core.lastRequest())
}

func TestSubmitMalformedAmountRejected(t *testing.T) {
	core := &fakeCore{}
	s := serverTestSetup(t, core)

	body := submitBody()
	body["amount"] = "12.5"

	recorder := doRequest(t, s, http.MethodPost, "/api/v1/transactions", body)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	detail := decodeError(t, recorder)
	assert.Equal(t, "INVALID_REQUEST", detail.Code)
	assert.Contains(t, detail.Message, "base-10")
	assert.Nil(t, core.lastRequest())
}

func TestSubmitValidationErrorKeepsTransactionID(t *testing.T) {
	core := &fakeCore{
		submitID:  "tx-9",
		submitErr: errors.Wrap(cerrors.ErrValidation, "amount must be positive"),
	}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodPost, "/api/v1/transactions", submitBody())

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	detail := decodeError(t, recorder)
	assert.Equal(t, "VALIDATION_FAILED", detail.Code)
	assert.Equal(t, "tx-9", detail.TransactionID)
	assert.Contains(t, detail.Message, "amount must be positive")
}

func TestSubmitUnsupportedRouteRejected(t *testing.T) {
	core := &fakeCore{
		submitID:  "tx-9",
		submitErr: errors.Wrap(cerrors.ErrUnsupportedRoute, "chain 9999 is not configured"),
	}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodPost, "/api/v1/transactions", submitBody())

	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Equal(t, "UNSUPPORTED_ROUTE", decodeError(t, recorder).Code)
}

func TestGetTransactionSnapshot(t *testing.T) {
	core := &fakeCore{
		tx: &types.Transaction{
			ID:           "tx-1",
			SourceChain:  0,
			DestChain:    2000,
			Asset:        "dot",
			Amount:       big.NewInt(5000),
			Recipient:    "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
			Kind:         types.KindMultiHop,
			Optimization: types.OptimizationStandard,
			Status:       types.StatusInBlock,
			Attempt:      1,
			CurrentHop:   1,
			Hash:         "0xabc",
			Quote: &types.FeeQuote{
				EstimatedFee:      big.NewInt(750),
				EstimatedDuration: time.Minute,
				Confidence:        0.9,
				ComputedAt:        time.Now(),
			},
			Hops: []types.Hop{
				{SourceChain: 0, DestChain: 1000, Hash: "0x1", InBlock: true},
				{SourceChain: 1000, DestChain: 2000},
			},
		},
	}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodGet, "/api/v1/transactions/tx-1", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var response TransactionResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "tx-1", response.TransactionID)
	assert.Equal(t, "MULTI_HOP", response.Kind)
	assert.Equal(t, "IN_BLOCK", response.Status)
	assert.Equal(t, "5000", response.Amount)
	assert.Equal(t, 1, response.CurrentHop)
	assert.NotNil(t, response.Quote)
	assert.Equal(t, "750", response.Quote.EstimatedFee)
	assert.Equal(t, int64(60000), response.Quote.EstimatedDurationMs)
	assert.Len(t, response.Hops, 2)
	assert.True(t, response.Hops[0].InBlock)
	assert.False(t, response.Hops[1].InBlock)
}

func TestGetTransactionNotFound(t *testing.T) {
	core := &fakeCore{
		statusErr: errors.Wrap(cerrors.ErrTransactionNotFound, "transaction tx-404"),
	}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodGet, "/api/v1/transactions/tx-404", nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, recorder).Code)
}

func TestCancelTransactionAccepted(t *testing.T) {
	core := &fakeCore{}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodPost, "/api/v1/transactions/tx-1/cancel", nil)

	assert.Equal(t, http.StatusAccepted, recorder.Code)
	assert.Equal(t, []string{"tx-1"}, core.cancelled)
}

func TestCancelTerminalTransactionConflicts(t *testing.T) {
	core := &fakeCore{
		cancelErr: errors.Wrap(cerrors.ErrState, "transaction tx-1 is already FINALIZED"),
	}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodPost, "/api/v1/transactions/tx-1/cancel", nil)

	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, "CANCELLATION_FAILED", decodeError(t, recorder).Code)
}

func TestCancelUnknownTransactionNotFound(t *testing.T) {
	core := &fakeCore{
		cancelErr: errors.Wrap(cerrors.ErrTransactionNotFound, "transaction tx-404"),
	}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodPost, "/api/v1/transactions/tx-404/cancel", nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, recorder).Code)
}

func TestHealthReportsDegradedChain(t *testing.T) {
	core := &fakeCore{health: map[uint64]bool{0: true, 1000: false}}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Status string          `json:"status"`
		Chains map[string]bool `json:"chains"`
	}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "degraded", response.Status)
	assert.True(t, response.Chains["0"])
	assert.False(t, response.Chains["1000"])
}

func TestHealthAllChainsHealthy(t *testing.T) {
	core := &fakeCore{health: map[uint64]bool{0: true, 1000: true}}
	s := serverTestSetup(t, core)

	recorder := doRequest(t, s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"status":"healthy"`)
}

func TestMetricsEndpointServesPrometheus(t *testing.T) {
	s := serverTestSetup(t, &fakeCore{})

	recorder := doRequest(t, s, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "go_goroutines")
}
