package xrpl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/watchxrpl/watchxrpl/internal/common"
	"github.com/watchxrpl/watchxrpl/internal/logger"
)

// Failure kinds for RPCError.
const (
	FailTimeout   = "timeout"
	FailTransport = "transport"
	FailStatus    = "status"
	FailMalformed = "malformed"
	FailUpstream  = "upstream"
)

// RPCError is a typed failure from a rippled admin command.
type RPCError struct {
	Method string
	Kind   string
	Err    error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rippled %s failed (%s): %v", e.Method, e.Kind, e.Err)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

// Client is the query surface of the monitored rippled node. Implementations
// must not be assumed to use any particular transport.
type Client interface {
	ServerInfo(ctx context.Context) (*ServerInfoResponse, error)
	Peers(ctx context.Context) ([]Peer, error)
	Fee(ctx context.Context) (*FeeResponse, error)
}

// RPCClient talks to the rippled admin JSON-RPC port over HTTP.
type RPCClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewRPCClient(endpoint string) *RPCClient {
	return &RPCClient{
		endpoint:   endpoint,
		httpClient: common.NewHTTPClient(10 * time.Second),
	}
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type rpcResultStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorMessage string `json:"error_message"`
}

func (c *RPCClient) ServerInfo(ctx context.Context) (*ServerInfoResponse, error) {
	var resp ServerInfoResponse
	if err := c.call(ctx, "server_info", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RPCClient) Peers(ctx context.Context) ([]Peer, error) {
	var resp PeersResponse
	if err := c.call(ctx, "peers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

func (c *RPCClient) Fee(ctx context.Context) (*FeeResponse, error) {
	var resp FeeResponse
	if err := c.call(ctx, "fee", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// call posts one JSON-RPC command and decodes the result payload into v.
// Transport and 5xx failures are retried with exponential backoff; client
// errors, upstream command errors, and malformed payloads are not.
func (c *RPCClient) call(ctx context.Context, method string, params map[string]any, v any) error {
	reqBody := rpcRequest{Method: method}
	if params != nil {
		reqBody.Params = []any{params}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return &RPCError{Method: method, Kind: FailMalformed, Err: err}
	}

	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return &RPCError{Method: method, Kind: FailTimeout, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
		if err != nil {
			return &RPCError{Method: method, Kind: FailTransport, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			kind := FailTransport
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				kind = FailTimeout
			}
			lastErr = &RPCError{Method: method, Kind: kind, Err: err}
			logger.Debug("Request failed (attempt %d/%d) for %s: %v", attempt+1, maxRetries, method, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := &RPCError{
				Method: method,
				Kind:   FailStatus,
				Err:    fmt.Errorf("HTTP %d", resp.StatusCode),
			}
			// Client errors won't improve on retry.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return statusErr
			}
			lastErr = statusErr
			logger.Debug("Server error %d (attempt %d/%d) for %s", resp.StatusCode, attempt+1, maxRetries, method)
			continue
		}

		if readErr != nil {
			lastErr = &RPCError{Method: method, Kind: FailTransport, Err: readErr}
			continue
		}

		return c.decodeResult(method, body, v)
	}

	return lastErr
}

func (c *RPCClient) decodeResult(method string, body []byte, v any) error {
	var envelope rpcEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		logger.Error("Failed to decode response for %s: %v", method, err)
		return &RPCError{Method: method, Kind: FailMalformed, Err: err}
	}
	if len(envelope.Result) == 0 {
		return &RPCError{Method: method, Kind: FailMalformed, Err: errors.New("response has no result")}
	}

	var status rpcResultStatus
	if err := json.Unmarshal(envelope.Result, &status); err == nil && status.Status == "error" {
		msg := status.ErrorMessage
		if msg == "" {
			msg = status.Error
		}
		return &RPCError{Method: method, Kind: FailUpstream, Err: errors.New(msg)}
	}

	if err := json.Unmarshal(envelope.Result, v); err != nil {
		logger.Error("Failed to decode %s result: %v", method, err)
		return &RPCError{Method: method, Kind: FailMalformed, Err: err}
	}
	return nil
}
