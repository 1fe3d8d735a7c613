package prodigi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func sampleRequest() CreateOrderRequest {
	return CreateOrderRequest{
		MerchantReference: "stripe-cs_test_1",
		Recipient: Recipient{
			Name: "Ada Lovelace",
			Address: Address{
				Line1:           "1 Main St",
				PostalOrZipCode: "94107",
				CountryCode:     "US",
				TownOrCity:      "San Francisco",
			},
		},
		Items: []Item{{
			SKU:    "GLOBAL-CFP-18X24",
			Assets: []Asset{{URL: "https://cdn.example.com/poster.png"}},
		}},
	}
}

func TestCreateOrderRequest(t *testing.T) {
	var (
		capturedURL     string
		capturedHeaders http.Header
		payload         map[string]any
	)
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"outcome":"Created","order":{"id":"ord_123","merchantReference":"stripe-cs_test_1","status":{"stage":"InProgress"}}}`), nil
	})

	client, err := NewClient("test-key", WithBaseURL("http://prodigi.test/v4.0/"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.CreateOrder(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if capturedURL != "http://prodigi.test/v4.0/Orders" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("X-API-Key") != "test-key" {
		t.Fatalf("api key header missing")
	}
	if payload["shippingMethod"] != "Standard" {
		t.Fatalf("expected default shipping method, got %v", payload["shippingMethod"])
	}
	items := payload["items"].([]any)
	item := items[0].(map[string]any)
	if item["copies"] != float64(1) || item["sizing"] != "fillPrintArea" {
		t.Fatalf("expected item defaults, got %+v", item)
	}
	asset := item["assets"].([]any)[0].(map[string]any)
	if asset["printArea"] != "default" {
		t.Fatalf("expected default print area, got %v", asset["printArea"])
	}
	if resp.Order.ID != "ord_123" {
		t.Fatalf("unexpected order id %q", resp.Order.ID)
	}
}

func TestCreateOrderValidationFailure(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"outcome":"ValidationFailed","failures":{"recipient.address.postalOrZipCode":[{"code":"PostalCodeInvalid"}]}}`), nil
	})
	client, _ := NewClient("test-key", WithHTTPClient(&http.Client{Transport: rt}))

	_, err := client.CreateOrder(context.Background(), sampleRequest())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Outcome != "ValidationFailed" || apiErr.Temporary() {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if len(apiErr.Failures["recipient.address.postalOrZipCode"]) != 1 {
		t.Fatalf("expected failures to be decoded, got %+v", apiErr.Failures)
	}
}

func TestCreateOrderServerErrorIsTemporary(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadGateway, `upstream down`), nil
	})
	client, _ := NewClient("test-key", WithHTTPClient(&http.Client{Transport: rt}))

	_, err := client.CreateOrder(context.Background(), sampleRequest())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Temporary() {
		t.Fatalf("expected temporary APIError, got %v", err)
	}
}

func TestCreateOrderUnexpectedOutcome(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"outcome":"OnHold","order":{"id":"ord_1"}}`), nil
	})
	client, _ := NewClient("test-key", WithHTTPClient(&http.Client{Transport: rt}))

	_, err := client.CreateOrder(context.Background(), sampleRequest())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Outcome != "OnHold" {
		t.Fatalf("expected outcome error, got %v", err)
	}
}

func TestCreateOrderTransportError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection reset")
	})
	client, _ := NewClient("test-key", WithHTTPClient(&http.Client{Transport: rt}))

	_, err := client.CreateOrder(context.Background(), sampleRequest())
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected missing api key error")
	}
	client, err := NewClient("k", WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.httpClient.Timeout != 2*time.Second {
		t.Fatalf("expected timeout override, got %s", client.httpClient.Timeout)
	}
}
