package gateway

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CallbackFunc receives callbacks produced by the mock gateway.
type CallbackFunc func(ctx context.Context, cb Callback) error

// MockGateway stands in for the real gateway in development. When a sink is
// attached, every opened intent is paid after a short random delay.
type MockGateway struct {
	baseURL string
	signer  *Signer
	logger  *zap.Logger

	mu      sync.Mutex
	sink    CallbackFunc
	amounts map[string]OpenRequest
}

var _ Client = (*MockGateway)(nil)

func NewMockGateway(baseURL string, signer *Signer, logger *zap.Logger) *MockGateway {
	return &MockGateway{
		baseURL: baseURL,
		signer:  signer,
		logger:  logger,
		amounts: make(map[string]OpenRequest),
	}
}

// AutoSettle makes the mock call sink with a PAID callback for each intent.
func (g *MockGateway) AutoSettle(sink CallbackFunc) {
	g.mu.Lock()
	g.sink = sink
	g.mu.Unlock()
}

func (g *MockGateway) OpenIntent(ctx context.Context, req OpenRequest) (*OpenResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref := "mock_" + uuid.NewString()

	g.mu.Lock()
	g.amounts[ref] = req
	sink := g.sink
	g.mu.Unlock()

	if sink != nil {
		go g.settleLater(ref, sink)
	}
	return &OpenResponse{
		GatewayRef:  ref,
		RedirectURL: g.baseURL + "/mock-pay/" + ref,
	}, nil
}

// Callback builds a signed callback for an intent opened at this mock.
func (g *MockGateway) Callback(ref string, outcome Outcome) (Callback, bool) {
	g.mu.Lock()
	req, ok := g.amounts[ref]
	g.mu.Unlock()
	if !ok {
		return Callback{}, false
	}
	return g.signer.SignCallback(Callback{
		GatewayRef: ref,
		Outcome:    outcome,
		Amount:     req.Amount,
	}), true
}

func (g *MockGateway) settleLater(ref string, sink CallbackFunc) {
	time.Sleep(time.Duration(rand.Intn(901)+100) * time.Millisecond)

	cb, ok := g.Callback(ref, OutcomePaid)
	if !ok {
		return
	}
	if err := sink(context.Background(), cb); err != nil {
		g.logger.Warn("mock gateway callback failed", zap.String("gateway_ref", ref), zap.Error(err))
	}
}
