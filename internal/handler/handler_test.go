package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/kart-voice/internal/assistant"
	"github.com/xenking/kart-voice/internal/catalog"
	"github.com/xenking/kart-voice/internal/fixture"
	"github.com/xenking/kart-voice/internal/merge"
	"github.com/xenking/kart-voice/internal/vendure"
)

type productResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       int      `json:"price"`
	Image       string   `json:"image"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Collections []string `json:"collections"`
	InStock     bool     `json:"inStock"`
	Source      string   `json:"source"`
}

type searchResponse struct {
	Transcript string `json:"transcript"`
	Criteria   struct {
		MinPrice   *int     `json:"minPrice"`
		MaxPrice   *int     `json:"maxPrice"`
		Category   string   `json:"category"`
		Categories []string `json:"categories"`
		Keywords   []string `json:"keywords"`
		InStock    bool     `json:"inStock"`
	} `json:"criteria"`
	Products []productResponse `json:"products"`
	Summary  string            `json:"summary"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type liveStub struct {
	records     []catalog.Record
	collections []catalog.Collection
	err         error
}

func (s *liveStub) ListProducts(context.Context, vendure.ListOptions) ([]catalog.Record, error) {
	return s.records, s.err
}

func (s *liveStub) ListCollections(context.Context, int) ([]catalog.Collection, error) {
	return s.collections, s.err
}

type transcriberFunc func(ctx context.Context) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context) (string, error) { return f(ctx) }

func newHandler(t *testing.T, live *liveStub, opts ...assistant.Option) *Handler {
	t.Helper()
	repo, err := fixture.Load()
	require.NoError(t, err)

	m := merge.New(repo, live, merge.Config{})
	a, err := assistant.New(m, opts...)
	require.NoError(t, err)
	return New(a, m)
}

func newServer(t *testing.T, live *liveStub, opts ...assistant.Option) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	newHandler(t, live, opts...).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestListProducts(t *testing.T) {
	srv := newServer(t, &liveStub{})

	resp, err := http.Get(srv.URL + "/api/products")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Products []productResponse `json:"products"`
	}](t, resp)
	require.Len(t, body.Products, 10)
	assert.Equal(t, "Tiny Trainers", body.Products[0].Name)
	assert.Equal(t, "fallback", body.Products[0].Source)
	assert.False(t, body.Products[9].InStock)
}

func TestVoiceSearch(t *testing.T) {
	live := &liveStub{records: []catalog.Record{{
		ID:       "3",
		Name:     "Dash Runner Shoes",
		Variants: []catalog.Variant{{PriceWithTax: 4900, StockLevel: "IN_STOCK"}},
		FeaturedAsset: &catalog.Asset{
			Preview: "https://cdn.example.com/dash.jpg",
		},
		Collections: []catalog.CollectionRef{{Name: "Running"}},
	}}}
	srv := newServer(t, live)

	resp := post(t, srv.URL+"/api/voice/search", `{"transcript": "Running shoes under 50 dollars"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[searchResponse](t, resp)

	assert.Equal(t, "Running shoes under 50 dollars", body.Transcript)
	require.NotNil(t, body.Criteria.MaxPrice)
	assert.Equal(t, 50, *body.Criteria.MaxPrice)
	assert.Nil(t, body.Criteria.MinPrice)
	assert.Equal(t, "running", body.Criteria.Category)
	assert.Equal(t, []string{"shoes"}, body.Criteria.Keywords)

	require.Len(t, body.Products, 2)
	assert.Equal(t, productResponse{
		ID:          "vendure-3",
		Name:        "Dash Runner Shoes (Live)",
		Price:       49,
		Image:       "https://cdn.example.com/dash.jpg",
		Description: "Dash Runner Shoes - Premium quality footwear",
		Category:    "running",
		Collections: []string{"Running"},
		InStock:     true,
		Source:      "live",
	}, body.Products[0])
	assert.Equal(t, "1", body.Products[1].ID)
	assert.Equal(t,
		"Found 2 running shoes under $50. Including 1 live product from our store. "+
			"Here they are: Dash Runner Shoes for $49 from our live inventory, Tiny Runner Pro for $45.",
		body.Summary,
	)
}

func TestVoiceSearch_LiveDown(t *testing.T) {
	srv := newServer(t, &liveStub{err: errors.New("unreachable")})

	resp := post(t, srv.URL+"/api/voice/search", `{"transcript": "basketball shoes"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[searchResponse](t, resp)
	require.Len(t, body.Products, 1)
	assert.Equal(t, "Mini Basketball Pro", body.Products[0].Name)
}

func TestVoiceSearch_BadRequest(t *testing.T) {
	srv := newServer(t, &liveStub{})

	for _, input := range []string{
		``,
		`not json`,
		`{}`,
		`{"transcript": ""}`,
		`{"transcript": 42}`,
		`["transcript"]`,
	} {
		resp := post(t, srv.URL+"/api/voice/search", input)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, input)
		body := decode[errorResponse](t, resp)
		assert.Equal(t, http.StatusBadRequest, body.Code)
		assert.NotEmpty(t, body.Message)
	}
}

func TestVoiceSearch_MethodNotAllowed(t *testing.T) {
	srv := newServer(t, &liveStub{})

	resp, err := http.Get(srv.URL + "/api/voice/search")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestVoiceListen(t *testing.T) {
	t.Run("Unsupported", func(t *testing.T) {
		srv := newServer(t, &liveStub{})
		resp := post(t, srv.URL+"/api/voice/listen", ``)
		assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
		body := decode[errorResponse](t, resp)
		assert.Equal(t, "speech recognition not supported", body.Message)
	})

	t.Run("Transcribed", func(t *testing.T) {
		srv := newServer(t, &liveStub{}, assistant.WithTranscriber(transcriberFunc(
			func(context.Context) (string, error) { return "walking shoes", nil },
		)))
		resp := post(t, srv.URL+"/api/voice/listen", ``)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[searchResponse](t, resp)
		assert.Equal(t, "walking shoes", body.Transcript)
		require.Len(t, body.Products, 1)
		assert.Equal(t, "Rainbow Walkers", body.Products[0].Name)
	})

	t.Run("Failed", func(t *testing.T) {
		srv := newServer(t, &liveStub{}, assistant.WithTranscriber(transcriberFunc(
			func(context.Context) (string, error) { return "", errors.New("mic busy") },
		)))
		resp := post(t, srv.URL+"/api/voice/listen", ``)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("ClientGone", func(t *testing.T) {
		h := newHandler(t, &liveStub{}, assistant.WithTranscriber(transcriberFunc(
			func(ctx context.Context) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
		)))

		core, logs := observer.New(zapcore.WarnLevel)
		ctx, cancel := context.WithCancel(zctx.Base(context.Background(), zap.New(core)))
		cancel()

		w := httptest.NewRecorder()
		h.VoiceListen(w, httptest.NewRequestWithContext(ctx, http.MethodPost, "/api/voice/listen", nil))
		assert.Empty(t, w.Body.String())
		assert.Zero(t, logs.Len())
	})
}

func TestRefreshCatalog(t *testing.T) {
	live := &liveStub{records: []catalog.Record{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}}
	srv := newServer(t, live)

	resp := post(t, srv.URL+"/api/catalog/refresh", ``)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Live int `json:"live"`
	}](t, resp)
	assert.Equal(t, 2, body.Live)

	resp, err := http.Get(srv.URL + "/api/products")
	require.NoError(t, err)
	products := decode[struct {
		Products []productResponse `json:"products"`
	}](t, resp)
	assert.Len(t, products.Products, 12)
	assert.Equal(t, "live", products.Products[0].Source)
}

func TestListCategories(t *testing.T) {
	live := &liveStub{collections: []catalog.Collection{{Name: "Kids' Shoes"}, {Name: "Boots"}}}
	srv := newServer(t, live)

	resp, err := http.Get(srv.URL + "/api/categories")
	require.NoError(t, err)
	body := decode[struct {
		Categories []string `json:"categories"`
	}](t, resp)
	assert.Equal(t, []string{"kids shoes", "boots"}, body.Categories)
}
