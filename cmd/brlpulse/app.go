package main

import (
	"fmt"

	"github.com/sawpanic/brlpulse/internal/client"
	"github.com/sawpanic/brlpulse/internal/config"
	"github.com/sawpanic/brlpulse/internal/market"
	"github.com/sawpanic/brlpulse/internal/metrics"
	"github.com/sawpanic/brlpulse/internal/net/budget"
	"github.com/sawpanic/brlpulse/internal/net/circuit"
	"github.com/sawpanic/brlpulse/internal/net/ratelimit"
	"github.com/sawpanic/brlpulse/internal/provider/gemini"
	"github.com/sawpanic/brlpulse/internal/secrets"
)

// app holds the components shared by every subcommand
type app struct {
	cfg     *config.Config
	metrics *metrics.Registry
	client  *client.Client
}

func newApp(cfg *config.Config) (*app, error) {
	p := cfg.Provider

	rules, err := p.Numerals.Rules()
	if err != nil {
		return nil, fmt.Errorf("numerals: %w", err)
	}

	var opts []gemini.Option
	if p.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(p.BaseURL))
	}

	reg := metrics.NewRegistry()
	c := client.New(client.Config{
		Model:         p.Model,
		CredentialKey: p.APIKeyEnv,
		Secrets:       secrets.NewEnvProvider("").WithAlias(p.APIKeyEnv, p.APIKeyFallbacks...),
		Factory:       gemini.Factory(opts...),
		Breaker: circuit.NewBreaker(gemini.Name, circuit.Config{
			FailureThreshold: p.Circuit.FailureThreshold,
			SuccessThreshold: p.Circuit.SuccessThreshold,
			Timeout:          p.Circuit.OpenTimeout,
			RequestTimeout:   p.RequestTimeout,
		}, client.LogStateChange),
		Limiter:  ratelimit.NewLimiter(p.RateLimit.RPS, p.RateLimit.Burst),
		Budget:   budget.NewTracker(gemini.Name, p.Budget.DailyLimit, p.Budget.ResetHour, p.Budget.WarnThreshold),
		Parser:   market.NewParser(rules),
		Recorder: reg,
	})

	return &app{cfg: cfg, metrics: reg, client: c}, nil
}
