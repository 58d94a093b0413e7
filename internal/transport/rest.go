package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"tank-tracker/internal/config"
	"tank-tracker/internal/dto"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// RESTClient is the request/response fallback channel.
type RESTClient struct {
	baseURL   string
	accessKey string
	client    *fasthttp.Client
	logger    zerolog.Logger
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func NewRESTClient(cfg *config.Config, key AccessKey, logger zerolog.Logger) *RESTClient {
	return &RESTClient{
		baseURL:   cfg.BackendURL,
		accessKey: string(key),
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
	}
}

func (c *RESTClient) FetchStats(ctx context.Context) (*dto.Snapshot, error) {
	snap, err := doRequest[dto.Snapshot](ctx, c, fasthttp.MethodGet, c.statsURL(""), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	if !snap.Success {
		return nil, fmt.Errorf("fetch stats: backend rejected request: %s", snap.Message)
	}
	return snap, nil
}

func (c *RESTClient) PushStats(ctx context.Context, payload []byte) error {
	return c.statusRequest(ctx, fasthttp.MethodPost, c.statsURL(""), payload, "push stats")
}

func (c *RESTClient) ClearStats(ctx context.Context) error {
	return c.statusRequest(ctx, fasthttp.MethodPost, c.statsURL("/clear"), nil, "clear stats")
}

func (c *RESTClient) DeleteBattle(ctx context.Context, arenaID string) error {
	path := fmt.Sprintf("/battles/%s/delete", url.PathEscape(arenaID))
	return c.statusRequest(ctx, fasthttp.MethodPost, c.statsURL(path), nil, "delete battle")
}

func (c *RESTClient) ImportStats(ctx context.Context, payload []byte) error {
	return c.statusRequest(ctx, fasthttp.MethodPost, c.statsURL("/import"), payload, "import stats")
}

func (c *RESTClient) statsURL(suffix string) string {
	return fmt.Sprintf("%s/api/stats/%s%s", c.baseURL, url.PathEscape(c.accessKey), suffix)
}

func (c *RESTClient) statusRequest(ctx context.Context, method, reqURL string, body []byte, op string) error {
	resp, err := doRequest[statusResponse](ctx, c, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.Success {
		return fmt.Errorf("%s: backend rejected request: %s", op, resp.Message)
	}
	return nil
}

func doRequest[T any](ctx context.Context, client *RESTClient, method, reqURL string, body []byte) (*T, error) {
	if client.accessKey == "" {
		return nil, ErrNoAccessKey
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(reqURL)
	req.Header.SetMethod(method)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("backend error: %d", resp.StatusCode())
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
