package powerfox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/foxwatt/foxwatt/pkg/common"
	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/metrics"
	"github.com/foxwatt/foxwatt/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const (
	DefaultBaseURL = "https://backend.powerfox.energy/api/2.0/my"

	// maxBodySize bounds how much of a response body is read. A yearly quarter
	// hour report is well below this.
	maxBodySize = 16 << 20
)

// CallRecorder persists a record of every Powerfox call.
type CallRecorder interface {
	InsertAPICallLog(ctx context.Context, entry types.APICallLog) error
}

// Client talks to the Powerfox REST API on behalf of a user. It holds no
// credentials itself, they are passed to every call.
type Client struct {
	baseURL  string
	client   *http.Client
	recorder CallRecorder
}

// Configured registers the Powerfox flags and returns a client that records
// its calls to recorder. recorder may be nil.
func Configured(recorder CallRecorder) *Client {
	apiURL := lflag.String("powerfox-api-url", DefaultBaseURL, "Base URL of the Powerfox API")
	timeout := lflag.Duration("powerfox-timeout", 30*time.Second, "Timeout for requests to the Powerfox API")

	c := &Client{recorder: recorder}

	lflag.Do(func() {
		c.baseURL = *apiURL
		c.client = common.HTTPClient(*timeout)
		if err := c.Validate(); err != nil {
			panic(fmt.Sprintf("powerfox validation failed: %v", err))
		}
	})

	return c
}

// New returns a client for the given base URL.
func New(baseURL string, httpClient *http.Client, recorder CallRecorder) *Client {
	if httpClient == nil {
		httpClient = common.HTTPClient(30 * time.Second)
	}
	return &Client{
		baseURL:  baseURL,
		client:   httpClient,
		recorder: recorder,
	}
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	if c.baseURL == "" {
		return fmt.Errorf("powerfox-api-url is required")
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return fmt.Errorf("failed to parse powerfox url (%s): %w", c.baseURL, err)
	}
	return nil
}

// FetchReport returns the report of the device for the given period. The
// vendor picks the granularity from which parameters are set.
func (c *Client) FetchReport(ctx context.Context, creds types.Credentials, deviceID string, p types.ReportParams) (ReportPayload, error) {
	var payload ReportPayload
	err := c.get(ctx, creds, "report", deviceID+"/report", reportQuery(p), func(body []byte) error {
		return json.Unmarshal(body, &payload)
	})
	if err != nil {
		return ReportPayload{}, err
	}
	return payload, nil
}

// FetchDevices returns all devices of the account. Entries without a device
// ID are skipped.
func (c *Client) FetchDevices(ctx context.Context, creds types.Credentials) ([]types.Device, error) {
	var devices []types.Device
	err := c.get(ctx, creds, "devices", "all/devices", nil, func(body []byte) error {
		var err error
		devices, err = decodeDevices(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// FetchCurrent returns the live reading of the device in Wh.
func (c *Client) FetchCurrent(ctx context.Context, creds types.Credentials, deviceID string) (types.CurrentReading, error) {
	var cur currentResponse
	err := c.get(ctx, creds, "current", deviceID+"/current", map[string]string{"unit": "wh"}, func(body []byte) error {
		return json.Unmarshal(body, &cur)
	})
	if err != nil {
		return types.CurrentReading{}, err
	}
	return cur.reading(deviceID), nil
}

func (c *Client) newGetRequest(ctx context.Context, endpoint string, params map[string]string) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	u.Path, err = url.JoinPath(u.Path, endpoint)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
}

// get performs the request and hands a 200 body to decode. Every call is
// recorded, whatever its outcome. name is the low cardinality metric label.
func (c *Client) get(ctx context.Context, creds types.Credentials, name, endpoint string, params map[string]string, decode func([]byte) error) error {
	if !creds.Valid() {
		return ErrInvalidCredentials
	}

	start := time.Now()
	status, err := c.doRequest(ctx, creds, endpoint, params, decode)
	duration := time.Since(start)

	metrics.ObserveVendorCall(name, metrics.Result(err), duration)
	log.Ctx(ctx).DebugContext(
		ctx,
		"powerfox call",
		slog.String("endpoint", endpoint),
		slog.Any("params", params),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.Any("error", err),
	)
	c.record(ctx, types.APICallLog{
		Timestamp:    start,
		Endpoint:     endpoint,
		Method:       http.MethodGet,
		Params:       params,
		StatusCode:   status,
		Success:      err == nil,
		ErrorMessage: errorMessage(err),
		DurationMS:   duration.Milliseconds(),
	})
	return err
}

func (c *Client) doRequest(ctx context.Context, creds types.Credentials, endpoint string, params map[string]string, decode func([]byte) error) (int, error) {
	req, err := c.newGetRequest(ctx, endpoint, params)
	if err != nil {
		return 0, fmt.Errorf("failed to build powerfox request: %w", err)
	}
	req.SetBasicAuth(creds.Email, creds.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &Error{Kind: KindNetwork, Message: "Failed to reach the Powerfox API", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return resp.StatusCode, errorForStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, &Error{Kind: KindNetwork, StatusCode: resp.StatusCode, Message: "Failed to read the Powerfox response", Err: err}
	}
	if err := decode(body); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode powerfox response", slog.String("endpoint", endpoint), slog.Any("error", err))
		return resp.StatusCode, fmt.Errorf("failed to decode powerfox %s response: %w", endpoint, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) record(ctx context.Context, entry types.APICallLog) {
	if c.recorder == nil {
		return
	}
	// the call already finished, a canceled request should still be logged
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.recorder.InsertAPICallLog(rctx, entry); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to record powerfox call", slog.String("endpoint", entry.Endpoint), slog.Any("error", err))
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Message
	}
	return err.Error()
}
