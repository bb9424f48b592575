package fiscal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/mshop/payments/internal/billing"
	"github.com/mshop/payments/internal/domain"
	"github.com/mshop/payments/internal/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client talks to a cash-register service over HTTP. One Client serves one
// country's register.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}, nil
}

func (c *Client) CreateBill(_ context.Context, payment domain.PaymentData, items []domain.PaidItem, customerContact string) (port.Receipt, error) {
	var r port.Receipt

	if len(items) == 0 {
		return r, fmt.Errorf("order[%s]: no items", payment.OrderID)
	}

	unit := items[0].Price.Currency

	return port.Receipt{
		ID:        uuid.NewString(),
		OrderID:   payment.OrderID,
		Contact:   customerContact,
		Total:     billing.Total(items, unit),
		Items:     items,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type receiptLine struct {
	SKU   string `json:"sku"`
	Name  string `json:"name"`
	Price string `json:"price"`
	Count int    `json:"count"`
}

type receiptRequest struct {
	ExternalID string        `json:"externalId"`
	OrderID    string        `json:"orderId"`
	Contact    string        `json:"contact"`
	Total      string        `json:"total"`
	Currency   string        `json:"currency"`
	Lines      []receiptLine `json:"lines"`
	CreatedAt  time.Time     `json:"createdAt"`
}

func (c *Client) Send(ctx context.Context, receipt port.Receipt) error {
	lines := make([]receiptLine, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		lines = append(lines, receiptLine{
			SKU:   item.SKU,
			Name:  item.Name,
			Price: item.Price.Amount.StringFixed(item.Price.Decimals()),
			Count: item.Count,
		})
	}

	doc, err := json.Marshal(receiptRequest{
		ExternalID: receipt.ID,
		OrderID:    receipt.OrderID,
		Contact:    receipt.Contact,
		Total:      receipt.Total.Amount.StringFixed(receipt.Total.Decimals()),
		Currency:   receipt.Total.Currency.String(),
		Lines:      lines,
		CreatedAt:  receipt.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/receipts", bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("io.Copy: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("receipt[%s]: unexpected status %d", receipt.ID, resp.StatusCode)
	}

	return nil
}
