package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	domcart "github.com/bookwell/cartsync/internal/domain/cart"
	"github.com/bookwell/cartsync/internal/domain/catalog"
	"github.com/bookwell/cartsync/internal/observability"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	componentRemote = "remote_client"
	headerRequestID = "X-Request-ID"
)

// Client talks to the remote booking API that owns cart records and the
// service catalog. It implements the engine's remote store port and the
// catalog resolver. The wire shape is the remote service's concern; this
// client maps it to domain types at the boundary (prices to cents, duration
// strings to seconds).
type Client struct {
	baseURL string
	http    *http.Client

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewClient(baseURL string, timeout time.Duration, tel observability.Observability) *Client {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log:          tel.Logger().With(observability.F("component", componentRemote)),
		reqCounter:   tel.Metrics().Counter(observability.MRemoteRequests),
		durHistogram: tel.Metrics().Histogram(observability.MRemoteRequestDuration),
	}
}

type lineItemDTO struct {
	ID        string `json:"id"`
	ServiceID string `json:"service_id"`
	Quantity  int    `json:"quantity"`
}

type cartDTO struct {
	ID      string        `json:"id"`
	OwnerID string        `json:"owner_id"`
	Items   []lineItemDTO `json:"items"`
}

type serviceDTO struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Duration string  `json:"duration"`
	Image    string  `json:"image"`
	Active   bool    `json:"active"`
}

type addItemDTO struct {
	ServiceID string `json:"service_id"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityDTO struct {
	Quantity int `json:"quantity"`
}

// FetchOrCreate returns the owner's cart, creating it server-side when absent.
func (c *Client) FetchOrCreate(ctx context.Context, ownerID string) (*domcart.Cart, error) {
	var dto cartDTO
	endpoint := "/owners/" + url.PathEscape(ownerID) + "/cart"
	if err := c.do(ctx, http.MethodPost, endpoint, "owner_cart", nil, &dto); err != nil {
		return nil, err
	}
	return toDomainCart(dto), nil
}

func (c *Client) AddItem(ctx context.Context, cartID, serviceID string, quantity int) (*domcart.LineItem, error) {
	var dto lineItemDTO
	endpoint := "/carts/" + url.PathEscape(cartID) + "/items"
	body := addItemDTO{ServiceID: serviceID, Quantity: quantity}
	if err := c.do(ctx, http.MethodPost, endpoint, "cart_items", body, &dto); err != nil {
		return nil, err
	}
	return toDomainLine(dto), nil
}

func (c *Client) UpdateItemQuantity(ctx context.Context, cartID, itemID string, quantity int) (*domcart.LineItem, error) {
	var dto lineItemDTO
	endpoint := "/carts/" + url.PathEscape(cartID) + "/items/" + url.PathEscape(itemID)
	body := updateQuantityDTO{Quantity: quantity}
	if err := c.do(ctx, http.MethodPatch, endpoint, "cart_item", body, &dto); err != nil {
		return nil, err
	}
	return toDomainLine(dto), nil
}

func (c *Client) RemoveItem(ctx context.Context, cartID, itemID string) error {
	endpoint := "/carts/" + url.PathEscape(cartID) + "/items/" + url.PathEscape(itemID)
	return c.do(ctx, http.MethodDelete, endpoint, "cart_item", nil, nil)
}

func (c *Client) ListCarts(ctx context.Context) ([]*domcart.Cart, error) {
	var dtos []cartDTO
	if err := c.do(ctx, http.MethodGet, "/carts", "carts", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]*domcart.Cart, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, toDomainCart(dto))
	}
	return out, nil
}

// Resolve implements the catalog resolver against GET /services/{id}.
func (c *Client) Resolve(ctx context.Context, serviceID string) (catalog.Snapshot, error) {
	var dto serviceDTO
	endpoint := "/services/" + url.PathEscape(serviceID)
	if err := c.do(ctx, http.MethodGet, endpoint, "services", nil, &dto); err != nil {
		return catalog.Snapshot{}, err
	}

	seconds, err := catalog.ParseDuration(dto.Duration)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("remote: service %s: %w", serviceID, err)
	}

	return catalog.Snapshot{
		ServiceID:       serviceID,
		DisplayName:     dto.Name,
		UnitPrice:       int64(math.Round(dto.Price * 100)),
		DurationSeconds: seconds,
		ImageRef:        dto.Image,
		Available:       dto.Active,
		ResolvedAt:      time.Now().UTC(),
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, endpointLabel string, body, dst any) error {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: marshal %s: %w", endpoint, err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, payload)
	if err != nil {
		return fmt.Errorf("remote: build request %s: %w", endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerRequestID, uuid.NewString())

	start := time.Now()
	resp, err := c.http.Do(req)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if c.durHistogram != nil {
		c.durHistogram.Observe(time.Since(start).Seconds(),
			observability.L("method", method),
			observability.L("endpoint", endpointLabel),
		)
	}
	defer func() {
		if c.reqCounter != nil {
			c.reqCounter.Add(1,
				observability.L("method", method),
				observability.L("endpoint", endpointLabel),
				observability.L("outcome", outcome),
			)
		}
	}()
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound && endpointLabel == "services" {
		outcome = "not_found"
		return catalog.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "error"
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote: %s %s: status %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		outcome = "error"
		return fmt.Errorf("remote: decode %s: %w", endpoint, err)
	}
	return nil
}

func toDomainCart(dto cartDTO) *domcart.Cart {
	c := domcart.New(dto.ID, dto.OwnerID)
	for _, li := range dto.Items {
		c.Items = append(c.Items, toDomainLine(li))
	}
	return c
}

func toDomainLine(dto lineItemDTO) *domcart.LineItem {
	return &domcart.LineItem{
		ID:        dto.ID,
		ServiceID: dto.ServiceID,
		Quantity:  dto.Quantity,
	}
}
