// Package upstream talks to the platform API that owns appointments,
// resources, services and operating hours. The engine only ever reads
// snapshots from it and hands confirmed bookings back to it.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"trimly/internal/model"
)

// Client is an HTTP client for the platform API with optional Redis
// read-through caching on catalog GETs.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client with baseURL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// FetchOperatingHours fetches a barbershop's operating-hours configuration.
func (c *Client) FetchOperatingHours(ctx context.Context, barbershopID int64) (*model.OperatingHours, error) {
	endpoint := fmt.Sprintf("%s/api/v1/shops/%d/hours", c.baseURL, barbershopID)
	cacheKey := fmt.Sprintf("hours:%d", barbershopID)

	var hours model.OperatingHours
	if c.readCache(ctx, cacheKey, &hours) {
		return &hours, nil
	}
	if err := c.doGet(ctx, endpoint, &hours); err != nil {
		return nil, fmt.Errorf("fetch operating hours: %w", err)
	}
	c.writeCache(ctx, cacheKey, hours)
	return &hours, nil
}

// FetchResources fetches the barbershop's bookable resources.
func (c *Client) FetchResources(ctx context.Context, barbershopID int64) ([]model.Resource, error) {
	endpoint := fmt.Sprintf("%s/api/v1/shops/%d/resources", c.baseURL, barbershopID)
	cacheKey := fmt.Sprintf("resources:%d", barbershopID)

	var resp struct {
		Resources []model.Resource `json:"resources"`
	}
	if c.readCache(ctx, cacheKey, &resp) {
		return resp.Resources, nil
	}
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch resources: %w", err)
	}
	c.writeCache(ctx, cacheKey, resp)
	return resp.Resources, nil
}

// FetchServices fetches the barbershop's service catalog.
func (c *Client) FetchServices(ctx context.Context, barbershopID int64) ([]model.Service, error) {
	endpoint := fmt.Sprintf("%s/api/v1/shops/%d/services", c.baseURL, barbershopID)
	cacheKey := fmt.Sprintf("services:%d", barbershopID)

	var resp struct {
		Services []model.Service `json:"services"`
	}
	if c.readCache(ctx, cacheKey, &resp) {
		return resp.Services, nil
	}
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch services: %w", err)
	}
	c.writeCache(ctx, cacheKey, resp)
	return resp.Services, nil
}

// FetchAppointments fetches the appointment snapshot for a date.
// Appointments change under staff hands, so this is never cached.
func (c *Client) FetchAppointments(ctx context.Context, barbershopID int64, selector model.ResourceSelector, date time.Time) ([]model.Appointment, error) {
	endpoint := fmt.Sprintf("%s/api/v1/shops/%d/appointments?date=%s&resource=%s",
		c.baseURL, barbershopID, date.Format(model.DateLayout), selector)

	var resp struct {
		Appointments []model.Appointment `json:"appointments"`
	}
	if err := c.doGet(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch appointments: %w", err)
	}
	return resp.Appointments, nil
}

// CreateAppointmentRequest is the booking-creation payload.
type CreateAppointmentRequest struct {
	BarbershopID int64           `json:"barbershop_id"`
	ResourceID   int64           `json:"resource_id"`
	ServiceID    int64           `json:"service_id"`
	ClientID     int64           `json:"client_id"`
	Date         string          `json:"date"` // YYYY-MM-DD
	Start        model.TimeOfDay `json:"start_time"`
	End          model.TimeOfDay `json:"end_time"`
	Price        int64           `json:"price"`
}

// CreateAppointment hands a confirmed booking to the platform API.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (int64, error) {
	endpoint := fmt.Sprintf("%s/api/v1/shops/%d/appointments", c.baseURL, req.BarbershopID)

	var resp struct {
		ID    int64  `json:"id"`
		Error string `json:"error,omitempty"`
	}
	if err := c.doPost(ctx, endpoint, req, &resp); err != nil {
		return 0, fmt.Errorf("create appointment: %w", err)
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("create appointment: %s", resp.Error)
	}
	return resp.ID, nil
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("platform api status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, value any) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, data, c.cacheTTL)
}
