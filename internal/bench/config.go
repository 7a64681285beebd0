package bench

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/accelbench/vllmbench/internal/completions"
)

// Defaults used when the caller does not override a setting.
const (
	DefaultEndpointURL    = "http://localhost:8000/v1/completions"
	DefaultModel          = "default_model"
	DefaultPrompt         = "Explain the concept of Large Language Models in one sentence."
	DefaultMaxTokens      = 100
	DefaultTemperature    = 0.1
	DefaultNumRequests    = 5
	DefaultPause          = 500 * time.Millisecond
	DefaultRequestTimeout = 60 * time.Second
)

// Config is the fully resolved set of parameters for one benchmark run.
// It is not modified by the runner.
type Config struct {
	EndpointURL       string          `json:"endpoint_url"`
	ModelName         string          `json:"model"`
	Prompt            string          `json:"prompt"`
	MaxTokens         int             `json:"max_tokens"`
	Temperature       float64         `json:"temperature"`
	NumRequests       int             `json:"num_requests"`
	InterRequestPause time.Duration   `json:"inter_request_pause"`
	RequestTimeout    time.Duration   `json:"request_timeout"`
	API               completions.API `json:"api"`
	OmitModel         bool            `json:"omit_model"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		EndpointURL:       DefaultEndpointURL,
		ModelName:         DefaultModel,
		Prompt:            DefaultPrompt,
		MaxTokens:         DefaultMaxTokens,
		Temperature:       DefaultTemperature,
		NumRequests:       DefaultNumRequests,
		InterRequestPause: DefaultPause,
		RequestTimeout:    DefaultRequestTimeout,
		API:               completions.APICompletions,
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs []error
	if c.EndpointURL == "" {
		errs = append(errs, errors.New("endpoint URL is required"))
	} else if u, err := url.Parse(c.EndpointURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("endpoint URL %q is not an absolute URL", c.EndpointURL))
	}
	if c.NumRequests <= 0 {
		errs = append(errs, fmt.Errorf("number of requests must be positive, got %d", c.NumRequests))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.InterRequestPause < 0 {
		errs = append(errs, fmt.Errorf("inter-request pause must not be negative, got %s", c.InterRequestPause))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max tokens must not be negative, got %d", c.MaxTokens))
	}
	if _, err := completions.ParseAPI(string(c.API)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// request builds the payload sent on every attempt. It is identical for
// all attempts of a run.
func (c Config) request() completions.Request {
	model := c.ModelName
	if c.OmitModel {
		model = ""
	}
	api := c.API
	if api == "" {
		api = completions.APICompletions
	}
	return completions.NewRequest(api, model, c.Prompt, c.MaxTokens, c.Temperature)
}
