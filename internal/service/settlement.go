package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrSettlementNotFound = errors.New("settlement not registered")
	ErrRateLimited        = errors.New("rate limit exceeded")
)

type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "PENDING"
	SettlementConfirmed SettlementStatus = "CONFIRMED"
	SettlementRejected  SettlementStatus = "REJECTED"
)

// SettlementClient asks the settlement system whether a bank reference has cleared.
type SettlementClient struct {
	baseURL string
	client  *http.Client
}

type SettlementResponse struct {
	Reference string           `json:"reference"`
	Status    SettlementStatus `json:"status"`
	Amount    decimal.Decimal  `json:"amount"`
	SettledAt *time.Time       `json:"settled_at,omitempty"`
}

func NewSettlementClient(baseURL string) *SettlementClient {
	return &SettlementClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SettlementClient) GetSettlement(ctx context.Context, bankReference string) (*SettlementResponse, error) {
	endpoint := fmt.Sprintf("%s/api/settlements/%s", c.baseURL, url.PathEscape(bankReference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var res SettlementResponse
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &res, nil
	case http.StatusNoContent, http.StatusNotFound:
		return nil, ErrSettlementNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, string(body))
	}
}
