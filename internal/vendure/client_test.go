package vendure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const productsResponse = `{
  "data": {
    "products": {
      "items": [
        {
          "id": "3",
          "name": "Trail Blazer",
          "slug": "trail-blazer",
          "description": "Grippy soles",
          "featuredAsset": {"id": "a1", "preview": "https://cdn.example.com/tb.jpg", "source": "src"},
          "variants": [
            {"id": "v1", "name": "Trail Blazer 28", "price": 3999, "priceWithTax": 4799, "currencyCode": "USD", "sku": "TB-28", "stockLevel": "IN_STOCK"},
            {"id": "v2", "name": "Trail Blazer 30", "price": 3999, "priceWithTax": 4799, "currencyCode": "USD", "sku": null, "stockLevel": "OUT_OF_STOCK"}
          ],
          "collections": [{"id": "c1", "name": "Hiking", "slug": "hiking"}]
        },
        {
          "id": 4,
          "name": "Plain",
          "slug": "plain",
          "description": null,
          "featuredAsset": null,
          "variants": [],
          "collections": [],
          "unknownField": {"nested": [1, 2, 3]}
        }
      ],
      "totalItems": 2
    }
  }
}`

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newServer(t *testing.T, status int, body string, captured *capturedRequest, header *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			data, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.NoError(t, json.Unmarshal(data, captured))
		}
		if header != nil {
			*header = r.Header.Clone()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListProducts(t *testing.T) {
	var captured capturedRequest
	var header http.Header
	srv := newServer(t, http.StatusOK, productsResponse, &captured, &header)

	c := New(Config{URL: srv.URL, ChannelToken: "chan"})
	records, err := c.ListProducts(context.Background(), ListOptions{Take: 20, NameContains: "shoes"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Contains(t, captured.Query, "products(options: $options)")
	assert.Equal(t, map[string]any{
		"options": map[string]any{
			"take":   float64(20),
			"filter": map[string]any{"name": map[string]any{"contains": "shoes"}},
		},
	}, captured.Variables)
	assert.Equal(t, "chan", header.Get("vendure-token"))
	assert.Equal(t, "application/json", header.Get("Content-Type"))

	first := records[0]
	assert.Equal(t, "3", first.ID)
	assert.Equal(t, "Trail Blazer", first.Name)
	assert.Equal(t, "trail-blazer", first.Slug)
	require.NotNil(t, first.FeaturedAsset)
	assert.Equal(t, "https://cdn.example.com/tb.jpg", first.FeaturedAsset.Preview)
	require.Len(t, first.Variants, 2)
	assert.Equal(t, int64(4799), first.Variants[0].PriceWithTax)
	assert.Equal(t, "TB-28", first.Variants[0].SKU)
	assert.Equal(t, "", first.Variants[1].SKU)
	assert.Equal(t, "OUT_OF_STOCK", first.Variants[1].StockLevel)
	assert.Equal(t, []string{"Hiking"}, first.CollectionNames())

	second := records[1]
	assert.Equal(t, "4", second.ID)
	assert.Nil(t, second.FeaturedAsset)
	assert.Empty(t, second.Description)
	assert.Empty(t, second.Variants)
}

func TestListProducts_NoFilter(t *testing.T) {
	var captured capturedRequest
	srv := newServer(t, http.StatusOK, `{"data":{"products":{"items":[],"totalItems":0}}}`, &captured, nil)

	records, err := New(Config{URL: srv.URL}).ListProducts(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, map[string]any{"options": map[string]any{}}, captured.Variables)
}

func TestListCollections(t *testing.T) {
	var captured capturedRequest
	body := `{"data":{"collections":{"items":[
		{"id":"1","name":"Kids' Shoes","slug":"kids-shoes","description":"For little feet"},
		{"id":"2","name":"Boots","slug":"boots","description":null}
	],"totalItems":2}}}`
	srv := newServer(t, http.StatusOK, body, &captured, nil)

	cols, err := New(Config{URL: srv.URL}).ListCollections(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "Kids' Shoes", cols[0].Name)
	assert.Equal(t, "For little feet", cols[0].Description)
	assert.Equal(t, "boots", cols[1].Slug)
	assert.Contains(t, captured.Query, "collections(options: $options)")
	assert.Equal(t, map[string]any{"options": map[string]any{"take": float64(20)}}, captured.Variables)
}

func TestClient_GraphQLErrors(t *testing.T) {
	body := `{"data":null,"errors":[{"message":"forbidden","path":["products"]},{"message":"try later"}]}`
	srv := newServer(t, http.StatusOK, body, nil, nil)

	_, err := New(Config{URL: srv.URL}).ListProducts(context.Background(), ListOptions{})
	require.Error(t, err)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, []string{"forbidden", "try later"}, respErr.Messages)
	assert.ErrorIs(t, err, ErrGraphQL)
	assert.EqualError(t, err, "list products: graphql: forbidden; try later")
}

func TestClient_BadStatus(t *testing.T) {
	srv := newServer(t, http.StatusBadGateway, `upstream down`, nil, nil)

	_, err := New(Config{URL: srv.URL}).ListCollections(context.Background(), 5)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestListProducts_SkipsMalformedRecord(t *testing.T) {
	body := `{"data":{"products":{"items":[
		{"id":"1","name":"Good","variants":[{"price":1000,"priceWithTax":1000}]},
		{"id":"2","name":"Bad","variants":[{"price":"1000"}]},
		{"id":"3","name":"Also Good","featuredAsset":null}
	]}}}`
	srv := newServer(t, http.StatusOK, body, nil, nil)

	core, logs := observer.New(zapcore.WarnLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	records, err := New(Config{URL: srv.URL}).ListProducts(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, int64(1000), records[0].Variants[0].PriceWithTax)
	assert.Equal(t, "3", records[1].ID)

	entries := logs.FilterMessage("Skipped malformed records").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["skipped"])
	assert.Equal(t, "products", entries[0].ContextMap()["list"])
}

func TestListCollections_SkipsMalformedRecord(t *testing.T) {
	body := `{"data":{"collections":{"items":[{"id":"1","name":7},{"id":"2","name":"Boots"}]}}}`
	srv := newServer(t, http.StatusOK, body, nil, nil)

	cols, err := New(Config{URL: srv.URL}).ListCollections(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "Boots", cols[0].Name)
}

func TestClient_MalformedBody(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"data": {"products": {"items": [{"id": ]}}}`, nil, nil)

	_, err := New(Config{URL: srv.URL}).ListProducts(context.Background(), ListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := newServer(t, http.StatusOK, productsResponse, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{URL: srv.URL}).ListProducts(ctx, ListOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecodeRecord(t *testing.T) {
	r, err := DecodeRecord([]byte(`{"id":"7","name":"Velcro Walker","variants":[{"priceWithTax":3550.4}]}`))
	require.NoError(t, err)
	assert.Equal(t, "7", r.ID)
	require.Len(t, r.Variants, 1)
	assert.Equal(t, int64(3550), r.Variants[0].PriceWithTax)

	_, err = DecodeRecord([]byte(`{"id":"7","variants":[{"priceWithTax":"free"}]}`))
	require.Error(t, err)
}
