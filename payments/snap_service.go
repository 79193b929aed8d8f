package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SnapClient talks to a Midtrans-compatible gateway: the Snap API for
// transaction tokens and the core API for status and expiry.
type SnapClient struct {
	serverKey  string
	snapURL    string
	apiURL     string
	httpClient *http.Client
}

func NewSnapClient(serverKey, snapURL, apiURL string, timeout time.Duration) *SnapClient {
	return &SnapClient{
		serverKey:  serverKey,
		snapURL:    strings.TrimRight(snapURL, "/"),
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type snapTransactionRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	ItemDetails     []snapItem    `json:"item_details,omitempty"`
	CustomerDetails *snapCustomer `json:"customer_details,omitempty"`
	Expiry          *snapExpiry   `json:"expiry,omitempty"`
}

type snapCustomer struct {
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type snapExpiry struct {
	Unit     string `json:"unit"`
	Duration int64  `json:"duration"`
}

type snapItem struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

type snapErrorResponse struct {
	ErrorMessages []string `json:"error_messages"`
}

func (c *SnapClient) CreateTransaction(ctx context.Context, in IntentRequest) (*Intent, error) {
	gross := in.Amount.Round(0).IntPart()
	if gross <= 0 {
		return nil, fmt.Errorf("gross amount must be positive, got %s", in.Amount)
	}

	var payload snapTransactionRequest
	payload.TransactionDetails.OrderID = in.OrderID
	payload.TransactionDetails.GrossAmount = gross
	if in.ItemName != "" {
		payload.ItemDetails = []snapItem{{ID: in.OrderID, Price: gross, Quantity: 1, Name: truncate(in.ItemName, 50)}}
	}
	if in.CustomerEmail != "" || in.CustomerName != "" {
		payload.CustomerDetails = &snapCustomer{FirstName: in.CustomerName, Email: in.CustomerEmail}
	}
	if in.Expiry > 0 {
		payload.Expiry = &snapExpiry{Unit: "minutes", Duration: int64(in.Expiry / time.Minute)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.snapURL+"/snap/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var e snapErrorResponse
		_ = json.Unmarshal(respBody, &e)
		if len(e.ErrorMessages) > 0 {
			return nil, fmt.Errorf("snap returned %s: %s", resp.Status, strings.Join(e.ErrorMessages, "; "))
		}
		return nil, fmt.Errorf("snap returned %s: %s", resp.Status, string(respBody))
	}

	var intent Intent
	if err := json.Unmarshal(respBody, &intent); err != nil {
		return nil, fmt.Errorf("decode snap response: %w", err)
	}
	if intent.Token == "" {
		return nil, fmt.Errorf("snap response carried no token")
	}
	return &intent, nil
}

func (c *SnapClient) GetStatus(ctx context.Context, orderID string) (*Notification, error) {
	endpoint := fmt.Sprintf("%s/v2/%s/status", c.apiURL, url.PathEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status API returned %s: %s", resp.Status, string(respBody))
	}

	var n Notification
	if err := json.NewDecoder(resp.Body).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	// The core API reports unknown orders with HTTP 200 and status_code 404.
	if n.StatusCode == "404" {
		return nil, ErrTransactionNotFound
	}
	if n.OrderID == "" {
		n.OrderID = orderID
	}
	return &n, nil
}

// Expire cancels an unpaid transaction. Orders the gateway never saw are
// treated as already gone.
func (c *SnapClient) Expire(ctx context.Context, orderID string) error {
	endpoint := fmt.Sprintf("%s/v2/%s/expire", c.apiURL, url.PathEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var n Notification
	respBody, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(respBody, &n)

	if resp.StatusCode == http.StatusNotFound || n.StatusCode == "404" {
		log.Printf("Gateway has no transaction %s to expire, continuing", orderID)
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expire API returned %s: %s", resp.Status, string(respBody))
	}
	return nil
}

func (c *SnapClient) authorize(req *http.Request) {
	req.SetBasicAuth(c.serverKey, "")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
