package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// CloudConfig holds the third-party IoT cloud credentials and endpoints.
type CloudConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	ThingID      string
}

// CloudClient talks to the Arduino-style IoT cloud property API: reading
// the gas/motor properties of a thing and publishing a desired motor
// state. Requests retry with exponential backoff and run behind a circuit
// breaker so a flapping cloud cannot stall the poller loop.
type CloudClient struct {
	cfg  CloudConfig
	http *http.Client
	cb   *gobreaker.CircuitBreaker

	mu         sync.Mutex
	token      string
	tokenUntil time.Time
}

const (
	cloudRequestTimeout = 10 * time.Second
	tokenSafetyWindow   = 30 * time.Second
	cloudMaxRetries     = 3
)

func NewCloudClient(cfg CloudConfig) *CloudClient {
	return &CloudClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cloudRequestTimeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "iot-cloud",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

// FetchGasAndMotor reads the thing's gasLevel and motorState properties.
func (c *CloudClient) FetchGasAndMotor(ctx context.Context, thingID string) (float64, bool, error) {
	props, err := c.thingProperties(ctx, thingID)
	if err != nil {
		return 0, false, err
	}

	gasProp := findProperty(props, propGasLevel)
	motorProp := findProperty(props, propMotorState)
	if gasProp == nil || motorProp == nil {
		return 0, false, fmt.Errorf("thing %q: gasLevel or motorState property not found", thingID)
	}

	gas, ok := coerceFloat(gasProp.LastValue)
	if !ok {
		return 0, false, fmt.Errorf("thing %q: gasLevel is not numeric", thingID)
	}
	return gas, coerceBool(motorProp.LastValue), nil
}

// SetMotorState publishes the desired motor state to the thing's actuator
// property.
func (c *CloudClient) SetMotorState(ctx context.Context, thingID string, on bool) error {
	props, err := c.thingProperties(ctx, thingID)
	if err != nil {
		return err
	}
	motorProp := findProperty(props, propMotorState)
	if motorProp == nil {
		return fmt.Errorf("thing %q: motorState property not found", thingID)
	}

	body, _ := json.Marshal(map[string]any{"value": on})
	endpoint := fmt.Sprintf("%s/v2/properties/%s/publish", strings.TrimRight(c.cfg.BaseURL, "/"), motorProp.ID)
	return c.do(ctx, http.MethodPut, endpoint, body, nil)
}

type cloudProperty struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	VariableName string `json:"variable_name"`
	LastValue    any    `json:"last_value"`
}

func findProperty(props []cloudProperty, name string) *cloudProperty {
	for i := range props {
		if props[i].Name == name || props[i].VariableName == name {
			return &props[i]
		}
	}
	return nil
}

func (c *CloudClient) thingProperties(ctx context.Context, thingID string) ([]cloudProperty, error) {
	if thingID == "" {
		return nil, fmt.Errorf("thing id is empty")
	}
	endpoint := fmt.Sprintf("%s/v2/things/%s/properties", strings.TrimRight(c.cfg.BaseURL, "/"), thingID)

	var props []cloudProperty
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// do runs one authenticated request through the circuit breaker with
// bounded retries.
func (c *CloudClient) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	_, err := c.cb.Execute(func() (any, error) {
		bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
		return nil, backoff.Retry(func() error {
			return c.doOnce(ctx, method, endpoint, body, out)
		}, backoff.WithMaxRetries(bo, cloudMaxRetries))
	})
	return err
}

func (c *CloudClient) doOnce(ctx context.Context, method, endpoint string, body []byte, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d", method, endpoint, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// accessToken returns a cached token, refreshing it when close to expiry.
func (c *CloudClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenUntil.Add(-tokenSafetyWindow)) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.cfg.RefreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloud token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("cloud token request: status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode cloud token: %w", err)
	}
	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = 900
	}

	c.token = tok.AccessToken
	c.tokenUntil = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}
