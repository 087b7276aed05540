// Package client runs one fetch-and-normalize cycle against the market data provider.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/brlpulse/internal/market"
	"github.com/sawpanic/brlpulse/internal/market/numeral"
	"github.com/sawpanic/brlpulse/internal/net/budget"
	"github.com/sawpanic/brlpulse/internal/net/circuit"
	"github.com/sawpanic/brlpulse/internal/net/ratelimit"
	"github.com/sawpanic/brlpulse/internal/provider"
	"github.com/sawpanic/brlpulse/internal/secrets"
)

// Messages surfaced in FetchResult.Error
const (
	MsgInFlight       = "a market data fetch is already in progress"
	MsgTimeout        = "the market data provider did not answer in time"
	MsgCircuitOpen    = "the market data provider is temporarily unavailable after repeated failures"
	MsgRateLimited    = "too many market data requests; try again shortly"
	MsgUnknown        = "unknown error while contacting the market data provider"
	MsgBlockNotFound  = "could not read the market figures: the response did not contain the expected DATA_START/DATA_END block"
	msgFieldsPrefix   = "could not read the market figures: "
	defaultCredential = "API_KEY"
)

// GeneratorFactory builds a provider client authenticated with apiKey
type GeneratorFactory func(ctx context.Context, apiKey string) (provider.Generator, error)

// Recorder receives every finished fetch, successful or not
type Recorder interface {
	RecordFetch(result market.FetchResult)
}

type nopRecorder struct{}

func (nopRecorder) RecordFetch(market.FetchResult) {}

// Config wires a Client. Only Secrets and Factory are required.
type Config struct {
	Model         string
	CredentialKey string // looked up in Secrets on every fetch
	Secrets       secrets.SecretProvider
	Factory       GeneratorFactory
	Breaker       *circuit.Breaker   // nil: circuit.DefaultConfig
	Limiter       *ratelimit.Limiter // nil: unlimited
	Budget        *budget.Tracker    // nil: unlimited
	Parser        *market.Parser     // nil: numeral.DefaultRules
	Recorder      Recorder
}

// Client is the single entry point that turns a provider answer into a FetchResult
type Client struct {
	model         string
	credentialKey string
	secrets       secrets.SecretProvider
	factory       GeneratorFactory
	breaker       *circuit.Breaker
	limiter       *ratelimit.Limiter
	budget        *budget.Tracker
	parser        *market.Parser
	recorder      Recorder
	redactor      *secrets.Redactor
	now           func() time.Time

	inFlight atomic.Bool

	mu     sync.Mutex
	gen    provider.Generator
	genKey string
}

// New creates a Client, filling unset optional collaborators with defaults
func New(cfg Config) *Client {
	c := &Client{
		model:         cfg.Model,
		credentialKey: cfg.CredentialKey,
		secrets:       cfg.Secrets,
		factory:       cfg.Factory,
		breaker:       cfg.Breaker,
		limiter:       cfg.Limiter,
		budget:        cfg.Budget,
		parser:        cfg.Parser,
		recorder:      cfg.Recorder,
		redactor:      secrets.NewRedactor(),
		now:           time.Now,
	}

	if c.credentialKey == "" {
		c.credentialKey = defaultCredential
	}
	if c.breaker == nil {
		c.breaker = circuit.NewBreaker("provider", circuit.DefaultConfig(), LogStateChange)
	}
	if c.limiter == nil {
		c.limiter = ratelimit.NewLimiter(0, 1)
	}
	if c.budget == nil {
		c.budget = budget.NewTracker("provider", 0, 0, 0)
	}
	if c.parser == nil {
		c.parser = market.NewParser(numeral.DefaultRules)
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	return c
}

// LogStateChange is a circuit.StateChangeFunc that reports transitions through zerolog
func LogStateChange(name string, from, to circuit.State) {
	event := log.Info()
	if to == circuit.StateOpen {
		event = log.Warn()
	}
	event.Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
		Msg("Circuit breaker state changed")
}

// InFlight reports whether a fetch is currently running
func (c *Client) InFlight() bool {
	return c.inFlight.Load()
}

// Breaker exposes the provider breaker for health reporting
func (c *Client) Breaker() *circuit.Breaker {
	return c.breaker
}

// LimiterStats exposes the outbound limiter buckets for health reporting
func (c *Client) LimiterStats() map[string]ratelimit.LimiterStats {
	return c.limiter.Stats()
}

// BudgetStats exposes the daily call budget for health reporting
func (c *Client) BudgetStats() budget.Stats {
	return c.budget.Stats()
}

// Fetch performs one fetch-and-normalize cycle. It never returns an error:
// every failure is reported in the result with its ErrorKind.
func (c *Client) Fetch(ctx context.Context) market.FetchResult {
	start := time.Now()
	result := market.FetchResult{
		ID:      uuid.NewString(),
		Sources: []market.Citation{},
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		fail(&result, market.KindFetchInFlight, MsgInFlight)
		return c.finish(result, start)
	}
	defer c.inFlight.Store(false)

	c.fetch(ctx, &result)
	return c.finish(result, start)
}

func (c *Client) finish(result market.FetchResult, start time.Time) market.FetchResult {
	result.Duration = time.Since(start)

	if result.OK() {
		log.Info().Str("fetch_id", result.ID).Dur("duration", result.Duration).
			Int("sources", len(result.Sources)).
			Float64("btc", result.Snapshot.BTC).Float64("gold", result.Snapshot.Gold).
			Float64("usd_brl", result.Snapshot.USDToBRL).
			Msg("Market data fetched")
	} else {
		log.Warn().Str("fetch_id", result.ID).Dur("duration", result.Duration).
			Str("kind", string(result.ErrorKind)).Str("error", result.Error).
			Msg("Market data fetch failed")
	}

	c.recorder.RecordFetch(result)
	return result
}

func fail(result *market.FetchResult, kind market.ErrorKind, msg string) {
	result.ErrorKind = kind
	result.Error = msg
}

func (c *Client) fetch(ctx context.Context, result *market.FetchResult) {
	secret, err := c.secrets.GetSecret(ctx, c.credentialKey)
	if err != nil {
		var nf *secrets.SecretNotFoundError
		if errors.As(err, &nf) {
			fail(result, market.KindConfigurationMissing, missingKeyMessage(nf))
			return
		}
		c.failTransport(result, err, "")
		return
	}
	apiKey := secret.Reveal()

	gen, err := c.generator(ctx, apiKey)
	if err != nil {
		c.failTransport(result, err, apiKey)
		return
	}

	// an open circuit refuses before a rate token or budget unit is spent
	if c.breaker.State() == circuit.StateOpen {
		fail(result, market.KindProviderUnavailable, MsgCircuitOpen)
		return
	}
	if !c.limiter.Allow(gen.Name()) {
		fail(result, market.KindProviderUnavailable, MsgRateLimited)
		return
	}
	if err := c.budget.Consume(); err != nil {
		if errors.Is(err, budget.ErrBudgetExhausted) {
			fail(result, market.KindProviderUnavailable, err.Error())
			return
		}
		log.Warn().Err(err).Msg("Provider call budget running low")
	}

	req := provider.Request{
		Model:           c.model,
		Prompt:          market.BuildPrompt(),
		SearchGrounding: true,
	}

	var resp *provider.Response
	err = c.breaker.Call(ctx, func(ctx context.Context) error {
		r, err := gen.Generate(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, circuit.ErrRequestTimeout), errors.Is(err, context.DeadlineExceeded):
			fail(result, market.KindTimeout, MsgTimeout)
		case errors.Is(err, circuit.ErrCircuitOpen):
			fail(result, market.KindProviderUnavailable, MsgCircuitOpen)
		default:
			c.failTransport(result, err, apiKey)
		}
		return
	}
	if resp == nil {
		resp = &provider.Response{}
	}

	result.RawText = resp.Text
	result.Sources = market.ExtractCitations(resp.Chunks)

	snap, fields, err := c.parser.Parse(resp.Text, c.now())
	result.Fields = fields
	if err != nil {
		var ferr *market.FieldError
		switch {
		case errors.As(err, &ferr):
			fail(result, ferr.Kind(), msgFieldsPrefix+ferr.Error())
		default:
			fail(result, market.KindParseFailure, MsgBlockNotFound)
		}
		return
	}
	result.Snapshot = &snap
}

// failTransport reports err verbatim, minus anything that looks like a credential
func (c *Client) failTransport(result *market.FetchResult, err error, apiKey string) {
	msg := err.Error()
	var perr *provider.Error
	if errors.As(err, &perr) {
		msg = perr.Message()
	}
	msg = strings.TrimSpace(c.redactor.RedactSecret(msg, apiKey))
	if msg == "" {
		msg = MsgUnknown
	}
	fail(result, market.KindTransportFailure, msg)
}

// generator reuses the provider client while the credential is unchanged
func (c *Client) generator(ctx context.Context, apiKey string) (provider.Generator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != nil && c.genKey == apiKey {
		return c.gen, nil
	}
	if c.factory == nil {
		return nil, errors.New("no provider configured")
	}

	gen, err := c.factory(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("create provider client: %w", err)
	}
	c.gen = gen
	c.genKey = apiKey
	log.Debug().Str("provider", gen.Name()).Str("api_key", secrets.Mask(apiKey)).Msg("Provider client created")
	return gen, nil
}

func missingKeyMessage(nf *secrets.SecretNotFoundError) string {
	if len(nf.Tried) == 0 {
		return "API key not found; configure " + nf.Key
	}
	return "API key not found; set " + strings.Join(nf.Tried, " or ") + " in the environment or .env file"
}
