package document

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/docledger/middleware/pkg/ledger"
)

// MockStore is a mock implementation of storage.Store that records calls.
type MockStore struct {
	PutFunc func(ctx context.Context, data []byte) (string, error)

	mu       sync.Mutex
	PutCalls [][]byte
}

func (m *MockStore) Put(ctx context.Context, data []byte) (string, error) {
	m.mu.Lock()
	m.PutCalls = append(m.PutCalls, data)
	m.mu.Unlock()

	if m.PutFunc != nil {
		return m.PutFunc(ctx, data)
	}
	return "", nil
}

func (m *MockStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.PutCalls)
}

// MockLedger is a mock implementation of Ledger that records the calls
// passed to each step.
type MockLedger struct {
	EstimateFunc func(ctx context.Context, call ledger.Call) (ledger.CostEstimate, error)
	SubmitFunc   func(ctx context.Context, call ledger.Call, cost ledger.CostEstimate) (*ledger.Receipt, error)
	QueryFunc    func(ctx context.Context, contract common.Address, method string, args ...interface{}) (interface{}, error)

	mu            sync.Mutex
	EstimateCalls []ledger.Call
	SubmitCalls   []ledger.Call
	QueryMethods  []string
}

func (m *MockLedger) Estimate(ctx context.Context, call ledger.Call) (ledger.CostEstimate, error) {
	m.mu.Lock()
	m.EstimateCalls = append(m.EstimateCalls, call)
	m.mu.Unlock()

	if m.EstimateFunc != nil {
		return m.EstimateFunc(ctx, call)
	}
	return ledger.CostEstimate{}, nil
}

func (m *MockLedger) Submit(ctx context.Context, call ledger.Call, cost ledger.CostEstimate) (*ledger.Receipt, error) {
	m.mu.Lock()
	m.SubmitCalls = append(m.SubmitCalls, call)
	m.mu.Unlock()

	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, call, cost)
	}
	return &ledger.Receipt{}, nil
}

func (m *MockLedger) Query(ctx context.Context, contract common.Address, method string, args ...interface{}) (interface{}, error) {
	m.mu.Lock()
	m.QueryMethods = append(m.QueryMethods, method)
	m.mu.Unlock()

	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, contract, method, args...)
	}
	return nil, nil
}

func (m *MockLedger) Calls() (estimates, submits int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.EstimateCalls), len(m.SubmitCalls)
}
