package solaxcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultEndpoint = "https://eu.solaxcloud.com/proxyApp/proxy/api/getRealtimeInfo.do"

	// DefaultLockTimeout bounds how long the access lock may stay held by a
	// single request before the watchdog force-releases it.
	DefaultLockTimeout = 10 * time.Second
)

var (
	ErrInvalidAPIToken = errors.New("solaxcloud: invalid API token")
	ErrInvalidDeviceSN = errors.New("solaxcloud: invalid device serial number")
)

// ConnectionError covers transport failures and unrecognized responses.
// Unlike the credential errors it is expected to clear on a later attempt.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("solaxcloud: connection failed: %s", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err requires reconfiguration by the user
// instead of a retry.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidAPIToken) || errors.Is(err, ErrInvalidDeviceSN)
}

type Reader interface {
	GetRealtimeInfo(ctx context.Context, apiToken, deviceSN string) (*RealtimeInfo, error)
	GetDeviceMetadata(ctx context.Context, apiToken, deviceSN string) (*DeviceMetadata, error)
}

type Client struct {
	endpoint    string
	httpClient  *http.Client
	lockTimeout time.Duration
	logger      *zap.Logger

	sem chan struct{}

	mu       sync.Mutex
	gen      uint64
	held     bool
	watchdog *time.Timer
}

func CreateClient(endpoint string, requestTimeout time.Duration, logger *zap.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultLockTimeout
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		lockTimeout: DefaultLockTimeout,
		logger:      logger.With(zap.String("component", "solaxcloud")),
		sem:         make(chan struct{}, 1),
	}
}

// GetRealtimeInfo fetches the current telemetry for a device. At most one
// realtime query is in flight at a time; concurrent callers block until the
// previous query completes or the lock watchdog fires.
func (c *Client) GetRealtimeInfo(ctx context.Context, apiToken, deviceSN string) (*RealtimeInfo, error) {
	gen, err := c.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.release(gen)

	raw, err := c.fetchResult(ctx, apiToken, deviceSN)
	if err != nil {
		return nil, err
	}
	var info RealtimeInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return &info, nil
}

// GetDeviceMetadata resolves the device identity during credential
// validation. It does not contend on the access lock: it runs once at setup
// time, before any polling starts.
func (c *Client) GetDeviceMetadata(ctx context.Context, apiToken, deviceSN string) (*DeviceMetadata, error) {
	raw, err := c.fetchResult(ctx, apiToken, deviceSN)
	if err != nil {
		return nil, err
	}
	var partial struct {
		InverterSN string `json:"inverterSN"`
	}
	if err := json.Unmarshal(raw, &partial); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return &DeviceMetadata{
		SN:         deviceSN,
		InverterSN: partial.InverterSN,
	}, nil
}

// ValidateAndIdentify checks the supplied credentials against the cloud
// service and derives the stable identity used to register the device.
func (c *Client) ValidateAndIdentify(ctx context.Context, apiToken, deviceSN string) (*Identity, error) {
	metadata, err := c.GetDeviceMetadata(ctx, apiToken, deviceSN)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Title: metadata.SN,
		SN:    metadata.SN,
	}, nil
}

// fetchResult performs one authenticated GET and classifies the response:
// transport failure or non-200 status -> ConnectionError, success:true ->
// result object, code 103 -> ErrInvalidAPIToken, code 0 -> ErrInvalidDeviceSN,
// anything else -> ConnectionError.
func (c *Client) fetchResult(ctx context.Context, apiToken, deviceSN string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	query := req.URL.Query()
	query.Set("tokenId", apiToken)
	query.Set("sn", deviceSN)
	req.URL.RawQuery = query.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("request failed", zap.Error(err))
		return nil, &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ConnectionError{Err: fmt.Errorf("unexpected status code %d", resp.StatusCode)}
	}

	var env statusEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	if env.Success {
		return env.Result, nil
	}
	if env.Code != nil {
		switch *env.Code {
		case codeInvalidAPIToken:
			return nil, ErrInvalidAPIToken
		case codeInvalidDeviceSN:
			return nil, ErrInvalidDeviceSN
		}
	}
	// A 200 with neither success:true nor a recognized code cannot be told
	// apart from a transient service error. Never treat it as success.
	return nil, &ConnectionError{Err: fmt.Errorf("unrecognized response (exception=%q)", env.Exception)}
}

// acquire takes the access lock and arms the watchdog. The returned
// generation ties the later release to this acquisition.
func (c *Client) acquire(ctx context.Context) (uint64, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return 0, &ConnectionError{Err: ctx.Err()}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	gen := c.gen
	c.held = true
	c.watchdog = time.AfterFunc(c.lockTimeout, func() {
		// Force-release after the bound, whether or not the request is still
		// outstanding. Known limitation: a response arriving after this point
		// still runs to completion concurrently with the next query. The
		// HTTP client timeout matches the bound, which keeps that window
		// narrow, but it is not a cancellation.
		if c.releaseGen(gen) {
			c.logger.Warn("access lock force-released by watchdog",
				zap.Duration("timeout", c.lockTimeout))
		}
	})
	return gen, nil
}

func (c *Client) release(gen uint64) {
	c.releaseGen(gen)
}

func (c *Client) releaseGen(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.held || c.gen != gen {
		// already force-released, or the lock moved on to a newer holder
		return false
	}
	c.held = false
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
	<-c.sem
	return true
}
