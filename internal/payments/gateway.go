package payments

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/imroc/req"
)

// Order is the provider-side order a checkout is opened against.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// RazorpayGateway creates orders through the Razorpay REST API.
type RazorpayGateway struct {
	baseURL string
	auth    string
	r       *req.Req
}

// NewRazorpayGateway returns a gateway for baseURL (e.g. https://api.razorpay.com/v1).
// A nil client gets a 10s timeout.
func NewRazorpayGateway(baseURL, keyID, keySecret string, client *http.Client) *RazorpayGateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	r := req.New()
	r.SetClient(client)
	return &RazorpayGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte(keyID+":"+keySecret)),
		r:       r,
	}
}

// CreateOrder opens an order for amount (minor units).
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	header := req.Header{
		"Authorization": g.auth,
		"Content-Type":  "application/json",
	}
	resp, err := g.r.Post(g.baseURL+"/orders", header, req.BodyJSON(&createOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}), ctx)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if code := resp.Response().StatusCode; code >= 300 {
		return nil, fmt.Errorf("create order: provider returned %d: %s", code, resp.String())
	}
	var o Order
	if err := resp.ToJSON(&o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	if o.ID == "" {
		return nil, errors.New("create order: provider returned no order id")
	}
	return &o, nil
}
