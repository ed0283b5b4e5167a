package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/qs-lzh/seat-booking/internal/pricing"
)

// Client opens payment intents at the gateway.
type Client interface {
	OpenIntent(ctx context.Context, req OpenRequest) (*OpenResponse, error)
}

type OpenRequest struct {
	OrderID   string        `json:"order_id"`
	Amount    pricing.Money `json:"amount"`
	Method    string        `json:"method"`
	ReturnURL string        `json:"return_url"`
	CancelURL string        `json:"cancel_url"`
}

type OpenResponse struct {
	GatewayRef  string `json:"transaction_id"`
	RedirectURL string `json:"redirect_url"`
}

var ErrGatewayRejected = errors.New("gateway rejected the request")

type HTTPClient struct {
	baseURL string
	signer  *Signer
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, signer *Signer) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		signer:  signer,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) OpenIntent(ctx context.Context, req OpenRequest) (*OpenResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/intents", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Signature", c.signer.Sign(req.OrderID, strconv.FormatInt(int64(req.Amount), 10)))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrGatewayRejected, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out OpenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if out.GatewayRef == "" || out.RedirectURL == "" {
		return nil, fmt.Errorf("%w: incomplete response", ErrGatewayRejected)
	}
	return &out, nil
}
