package quote

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"farmzap/internal/approval"
	"farmzap/internal/route"
)

const (
	defaultTimeout = 12 * time.Second
	defaultRate    = 5
)

// Config configures the route service client.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

// Client fetches swap routes from the quote service.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("quote base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		client.SetHeader("x-api-key", key)
	}
	return &Client{
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}, nil
}

// HTTPError is a non-2xx response from the quote service.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("quote http %d", e.StatusCode)
	}
	return fmt.Sprintf("quote http %d: %s", e.StatusCode, b)
}

type approvalJSON struct {
	Kind    string `json:"kind"`
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type routeJSON struct {
	AmountOut string         `json:"amountOut"`
	Router    string         `json:"router"`
	Value     string         `json:"value"`
	Approvals []approvalJSON `json:"approvals"`
	Calls     []string       `json:"calls"`
}

type quoteResponse struct {
	Routes []routeJSON `json:"routes"`
}

// Quote implements route.Quoter.
func (c *Client) Quote(ctx context.Context, req route.QuoteRequest) ([]route.Route, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount is required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	side := req.Side
	if side == "" {
		side = route.SideSell
	}
	var out quoteResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"sellToken":   req.SellToken.Hex(),
			"buyToken":    req.BuyToken.Hex(),
			"amount":      req.Amount.String(),
			"slippageBps": strconv.Itoa(int(req.SlippageBps)),
			"recipient":   req.Recipient.Hex(),
			"side":        side,
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/quote")
	if err != nil {
		return nil, fmt.Errorf("request quote: %w", err)
	}
	if res.IsError() {
		return nil, &HTTPError{StatusCode: res.StatusCode(), Body: res.Body()}
	}

	routes := make([]route.Route, 0, len(out.Routes))
	for i, r := range out.Routes {
		decoded, err := decodeRoute(r)
		if err != nil {
			return nil, fmt.Errorf("decode route %d: %w", i, err)
		}
		routes = append(routes, decoded)
	}
	return routes, nil
}

func decodeRoute(r routeJSON) (route.Route, error) {
	amountOut, err := parseAmount(r.AmountOut)
	if err != nil {
		return route.Route{}, fmt.Errorf("amountOut: %w", err)
	}
	value, err := parseAmount(r.Value)
	if err != nil {
		return route.Route{}, fmt.Errorf("value: %w", err)
	}
	out := route.Route{AmountOut: amountOut, Value: value}
	if r.Router != "" {
		if !common.IsHexAddress(r.Router) {
			return route.Route{}, fmt.Errorf("invalid router %q", r.Router)
		}
		out.Router = common.HexToAddress(r.Router)
	}
	for _, a := range r.Approvals {
		if !common.IsHexAddress(a.Token) || !common.IsHexAddress(a.Spender) {
			return route.Route{}, fmt.Errorf("invalid approval %s/%s", a.Token, a.Spender)
		}
		kind, err := approval.ParseKind(a.Kind)
		if err != nil {
			return route.Route{}, err
		}
		amount, err := parseAmount(a.Amount)
		if err != nil {
			return route.Route{}, fmt.Errorf("approval amount: %w", err)
		}
		out.Approvals = append(out.Approvals, approval.Spec{
			Kind:    kind,
			Token:   common.HexToAddress(a.Token),
			Spender: common.HexToAddress(a.Spender),
			Amount:  amount,
		})
	}
	for _, call := range r.Calls {
		data, err := hexutil.Decode(call)
		if err != nil {
			return route.Route{}, fmt.Errorf("call data: %w", err)
		}
		out.Calls = append(out.Calls, data)
	}
	return out, nil
}

// parseAmount accepts decimal or 0x-prefixed integers. Empty is zero.
func parseAmount(value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return big.NewInt(0), nil
	}
	base := 10
	digits := value
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		base = 16
		digits = value[2:]
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return n, nil
}
