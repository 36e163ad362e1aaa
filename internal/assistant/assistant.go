// Package assistant is the entry point used by voice and HTTP callers: it
// turns transcripts into criteria, searches the merged catalog and phrases
// the answer.
package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/kart-voice/internal/domain/product"
	"github.com/xenking/kart-voice/internal/intent"
	"github.com/xenking/kart-voice/internal/reply"
	"github.com/xenking/kart-voice/internal/search"
)

// ErrUnsupported is returned by Listen when no transcriber is configured.
var ErrUnsupported = errors.New("speech recognition not supported")

// DefaultCaptureLimit is the ceiling on a single voice capture.
const DefaultCaptureLimit = 10 * time.Second

// stopGrace is how long Listen waits for a transcriber to hand back what it
// heard once the capture limit stops it.
const stopGrace = 250 * time.Millisecond

// everythingPhrases ask for the whole catalog rather than a filtered lookup.
var everythingPhrases = []string{"all products", "everything", "show me what you have"}

// Transcriber captures speech and returns its text. When ctx is done an
// implementation stops capturing and returns what it heard so far, if
// anything, alongside ctx.Err().
type Transcriber interface {
	Transcribe(ctx context.Context) (string, error)
}

// Catalog is the merged product source. *merge.Merger implements it.
type Catalog interface {
	Products(ctx context.Context) []product.Product
	Lookup(ctx context.Context, nameContains string) []product.Product
	RefreshAll(ctx context.Context) []product.Product
	LoadCategories(ctx context.Context) []string
	Categories() []string
}

// Answer is the outcome of a transcript search.
type Answer struct {
	Criteria intent.Criteria
	Products []product.Product
	Summary  string
}

// Option configures an Assistant.
type Option func(a *Assistant)

// WithDynamicCategories makes the parser match categories from the catalog
// collections instead of the fixed vocabulary.
func WithDynamicCategories() Option {
	return func(a *Assistant) {
		a.dynamic = true
	}
}

// WithTranscriber enables Listen.
func WithTranscriber(t Transcriber) Option {
	return func(a *Assistant) {
		a.transcriber = t
	}
}

// WithCaptureLimit overrides DefaultCaptureLimit.
func WithCaptureLimit(d time.Duration) Option {
	return func(a *Assistant) {
		a.captureLimit = d
	}
}

// WithSynthesizer sets the response synthesizer.
func WithSynthesizer(s *reply.Synthesizer) Option {
	return func(a *Assistant) {
		a.synth = s
	}
}

// WithMeterProvider sets the meter provider for search metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(a *Assistant) {
		a.meterProvider = mp
	}
}

// Assistant answers shopper requests. It is safe for concurrent use.
type Assistant struct {
	catalog      Catalog
	parser       *intent.Parser
	synth        *reply.Synthesizer
	transcriber  Transcriber
	captureLimit time.Duration
	dynamic      bool

	meterProvider metric.MeterProvider
	searches      metric.Int64Counter
}

// New creates an Assistant over cat.
func New(cat Catalog, opts ...Option) (*Assistant, error) {
	a := &Assistant{
		catalog:       cat,
		captureLimit:  DefaultCaptureLimit,
		meterProvider: noop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.synth == nil {
		a.synth = reply.New(nil)
	}
	if a.dynamic {
		a.parser = intent.NewParser(intent.WithCategorySource(cat))
	} else {
		a.parser = intent.NewParser()
	}

	meter := a.meterProvider.Meter("github.com/xenking/kart-voice/internal/assistant")
	searches, err := meter.Int64Counter("kart.voice.searches",
		metric.WithDescription("Transcript searches by result size"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create searches counter")
	}
	a.searches = searches
	return a, nil
}

// ParseTranscript extracts criteria from text.
func (a *Assistant) ParseTranscript(text string) intent.Criteria {
	return a.parser.Parse(text)
}

// Search filters and ranks the already fetched catalog.
func (a *Assistant) Search(ctx context.Context, c intent.Criteria) []product.Product {
	return search.Search(a.catalog.Products(ctx), c)
}

// SearchAsync parses transcript, fetches matching live products and returns
// the ranked results. Requests for the whole catalog refresh the live
// snapshot instead of running a name-filtered lookup.
func (a *Assistant) SearchAsync(ctx context.Context, transcript string) (intent.Criteria, []product.Product) {
	if a.dynamic {
		// Warm the category cache before parsing.
		a.catalog.LoadCategories(ctx)
	}
	c := a.parser.Parse(transcript)

	var products []product.Product
	if wantsEverything(transcript) {
		products = a.catalog.RefreshAll(ctx)
	} else {
		products = a.catalog.Lookup(ctx, c.FirstKeyword())
	}
	results := search.Search(products, c)

	a.searches.Add(ctx, 1, metric.WithAttributes(attribute.String("result", bucket(len(results)))))
	return c, results
}

// SynthesizeResponse phrases products as a spoken summary.
func (a *Assistant) SynthesizeResponse(products []product.Product, c intent.Criteria) string {
	return a.synth.Synthesize(products, c)
}

// Answer runs SearchAsync and synthesizes the summary.
func (a *Assistant) Answer(ctx context.Context, transcript string) Answer {
	c, products := a.SearchAsync(ctx, transcript)
	return Answer{
		Criteria: c,
		Products: products,
		Summary:  a.SynthesizeResponse(products, c),
	}
}

// Listen captures one utterance with the configured transcriber, bounded by
// the capture limit. It returns ErrUnsupported when no transcriber is set.
func (a *Assistant) Listen(ctx context.Context) (string, error) {
	if a.transcriber == nil {
		return "", ErrUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, a.captureLimit)
	defer cancel()

	done := make(chan transcription, 1)
	go func() {
		text, err := a.transcriber.Transcribe(ctx)
		done <- transcription{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.outcome()
	case <-ctx.Done():
	}

	// Capture was stopped: prefer whatever the transcriber heard.
	timer := time.NewTimer(stopGrace)
	defer timer.Stop()
	select {
	case r := <-done:
		if text, err := r.outcome(); err == nil && text != "" {
			return text, nil
		}
	case <-timer.C:
	}
	return "", errors.Wrap(ctx.Err(), "capture")
}

type transcription struct {
	text string
	err  error
}

// outcome keeps text heard before the capture was stopped.
func (t transcription) outcome() (string, error) {
	switch {
	case t.err == nil:
		return t.text, nil
	case t.text != "" && (errors.Is(t.err, context.DeadlineExceeded) || errors.Is(t.err, context.Canceled)):
		return t.text, nil
	default:
		return "", errors.Wrap(t.err, "transcribe")
	}
}

func wantsEverything(transcript string) bool {
	text := strings.ToLower(transcript)
	for _, phrase := range everythingPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// bucket labels a result size for metrics.
func bucket(n int) string {
	switch {
	case n == 0:
		return "empty"
	case n <= 3:
		return "few"
	default:
		return "many"
	}
}
