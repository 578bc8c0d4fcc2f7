package quote

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmzap/internal/approval"
	"farmzap/internal/route"
)

var (
	sellToken = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	buyToken  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	router    = common.HexToAddress("0x00000000000000000000000000000000000000f0")
)

func TestQuoteDecodesRoutes(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"routes":[{"amountOut":"990000","router":"%s","value":"0x0","approvals":[{"token":"%s","spender":"%s","amount":"2000"}],"calls":["0xdeadbeef","0x01"]}]}`,
			router.Hex(), sellToken.Hex(), router.Hex())
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL + "/", APIKey: "secret", RateLimit: 100})
	require.NoError(t, err)

	routes, err := client.Quote(context.Background(), route.QuoteRequest{
		SellToken:   sellToken,
		BuyToken:    buyToken,
		Amount:      big.NewInt(2000),
		SlippageBps: 50,
		Recipient:   router,
	})
	require.NoError(t, err)
	require.Len(t, routes, 1)

	r := routes[0]
	assert.Equal(t, int64(990_000), r.AmountOut.Int64())
	assert.Equal(t, router, r.Router)
	assert.Equal(t, 0, r.Value.Sign())
	require.Len(t, r.Approvals, 1)
	assert.Equal(t, approval.KindERC20, r.Approvals[0].Kind)
	assert.Equal(t, sellToken, r.Approvals[0].Token)
	assert.Equal(t, int64(2000), r.Approvals[0].Amount.Int64())
	require.Len(t, r.Calls, 2)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, r.Calls[0])

	assert.Equal(t, "2000", query["amount"])
	assert.Equal(t, "50", query["slippageBps"])
	assert.Equal(t, router.Hex(), query["recipient"])
	assert.Equal(t, route.SideSell, query["side"])
}

func TestQuoteDecodesOperatorApproval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"routes":[{"amountOut":"5","approvals":[{"kind":"operator","token":"%s","spender":"%s"}],"calls":["0x01"]}]}`,
			sellToken.Hex(), router.Hex())
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	routes, err := client.Quote(context.Background(), route.QuoteRequest{Amount: big.NewInt(1)})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	require.Len(t, routes[0].Approvals, 1)
	assert.Equal(t, approval.KindOperator, routes[0].Approvals[0].Kind)
	assert.Equal(t, router, routes[0].Approvals[0].Spender)
}

func TestQuoteRejectsUnknownApprovalKind(t *testing.T) {
	_, err := decodeRoute(routeJSON{
		Approvals: []approvalJSON{{Kind: "permit2", Token: sellToken.Hex(), Spender: router.Hex()}},
		Calls:     []string{"0x01"},
	})
	assert.ErrorContains(t, err, "permit2")
}

func TestQuoteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Quote(context.Background(), route.QuoteRequest{Amount: big.NewInt(1)})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestQuoteRequiresAmount(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://localhost"})
	require.NoError(t, err)
	_, err = client.Quote(context.Background(), route.QuoteRequest{})
	assert.Error(t, err)

	_, err = NewClient(Config{})
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	for input, want := range map[string]int64{"": 0, "12": 12, "0x10": 16, "010": 10} {
		got, err := parseAmount(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got.Int64(), input)
	}
	_, err := parseAmount("-1")
	assert.Error(t, err)
}
