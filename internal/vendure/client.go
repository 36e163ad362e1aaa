// Package vendure is a minimal client for the Vendure shop GraphQL API.
package vendure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-voice/internal/catalog"
)

// DefaultURL is the public shop API endpoint.
const DefaultURL = "https://vendure.tarikrital.website/shop-api"

// maxResponseSize bounds the size of a GraphQL response body.
const maxResponseSize = 8 << 20

// StatusError is returned when the API responds with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// ErrGraphQL is matched by every *ResponseError.
var ErrGraphQL = errors.New("graphql")

// ResponseError carries the messages of a GraphQL error response.
type ResponseError struct {
	Messages []string
}

func (e *ResponseError) Error() string {
	return "graphql: " + strings.Join(e.Messages, "; ")
}

func (e *ResponseError) Unwrap() error {
	return ErrGraphQL
}

// Config configures a Client.
type Config struct {
	// URL is the shop API endpoint. Defaults to DefaultURL.
	URL string
	// ChannelToken is sent as the vendure-token header when non-empty.
	ChannelToken string
	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration
	// HTTPClient overrides the HTTP client. Its Timeout is left untouched.
	HTTPClient *http.Client
}

// Client issues catalog queries against the shop API.
type Client struct {
	url     string
	token   string
	timeout time.Duration
	http    *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		url:     cfg.URL,
		token:   cfg.ChannelToken,
		timeout: cfg.Timeout,
		http:    hc,
	}
}

// ListOptions narrows a product listing.
type ListOptions struct {
	// Take limits the number of products. Zero leaves it to the server.
	Take int
	// NameContains filters products by name substring.
	NameContains string
}

// ListProducts returns products matching opts. Records that fail to decode
// are skipped and logged.
func (c *Client) ListProducts(ctx context.Context, opts ListOptions) ([]catalog.Record, error) {
	vars := func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("options")
		e.ObjStart()
		if opts.Take > 0 {
			e.FieldStart("take")
			e.Int(opts.Take)
		}
		if opts.NameContains != "" {
			e.FieldStart("filter")
			e.ObjStart()
			e.FieldStart("name")
			e.ObjStart()
			e.FieldStart("contains")
			e.Str(opts.NameContains)
			e.ObjEnd()
			e.ObjEnd()
		}
		e.ObjEnd()
		e.ObjEnd()
	}

	var (
		records []catalog.Record
		skipped int
	)
	err := c.do(ctx, productsQuery, vars, func(d *jx.Decoder) (err error) {
		skipped, err = decodeList(d, "products", func(d *jx.Decoder) error {
			r, err := decodeRecord(d)
			if err != nil {
				return err
			}
			records = append(records, r)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	logSkipped(ctx, "products", skipped)
	return records, nil
}

// ListCollections returns up to take collections.
func (c *Client) ListCollections(ctx context.Context, take int) ([]catalog.Collection, error) {
	vars := func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("options")
		e.ObjStart()
		if take > 0 {
			e.FieldStart("take")
			e.Int(take)
		}
		e.ObjEnd()
		e.ObjEnd()
	}

	var (
		collections []catalog.Collection
		skipped     int
	)
	err := c.do(ctx, collectionsQuery, vars, func(d *jx.Decoder) (err error) {
		skipped, err = decodeList(d, "collections", func(d *jx.Decoder) error {
			col, err := decodeCollection(d)
			if err != nil {
				return err
			}
			collections = append(collections, col)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list collections")
	}
	logSkipped(ctx, "collections", skipped)
	return collections, nil
}

func logSkipped(ctx context.Context, list string, n int) {
	if n > 0 {
		zctx.From(ctx).Warn("Skipped malformed records",
			zap.String("list", list),
			zap.Int("skipped", n),
		)
	}
}

// do posts a GraphQL document and hands the "data" member to decodeData.
func (c *Client) do(
	ctx context.Context,
	query string,
	variables func(e *jx.Encoder),
	decodeData func(d *jx.Decoder) error,
) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("query")
	e.Str(query)
	e.FieldStart("variables")
	variables(&e)
	e.ObjEnd()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(e.Bytes()))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("vendure-token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	var messages []string
	if err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "data":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return decodeData(d)
		case "errors":
			return d.Arr(func(d *jx.Decoder) error {
				msg, err := decodeErrorMessage(d)
				if err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return errors.Wrap(err, "decode response")
	}

	if len(messages) > 0 {
		return &ResponseError{Messages: messages}
	}
	return nil
}
