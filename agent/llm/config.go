package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/okaimono/shopping-agent/agent/contract"
	openrouterx "github.com/okaimono/shopping-agent/pkg/openrouter"
)

// Capability names the two model-backed features. Each may run on its own
// model and temperature.
type Capability string

const (
	CapabilitySummarize Capability = "summarize"
	CapabilitySuggest   Capability = "suggest"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	SummarizeModel       string  `envconfig:"SUMMARIZE_MODEL" split_words:"true"`
	SuggestModel         string  `envconfig:"SUGGEST_MODEL" split_words:"true"`
	SummarizeTemperature float32 `envconfig:"SUMMARIZE_TEMPERATURE" split_words:"true" default:"-1"`
	SuggestTemperature   float32 `envconfig:"SUGGEST_TEMPERATURE" split_words:"true" default:"-1"`
}

// Enabled reports whether model-backed capabilities are configured at all.
// Without a key the agent runs with deterministic fallbacks only.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required when an api key is set", contract.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(cap Capability) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch cap {
	case CapabilitySummarize:
		if v := strings.TrimSpace(c.SummarizeModel); v != "" {
			modelName = v
		}
		if c.SummarizeTemperature >= 0 {
			temp = c.SummarizeTemperature
		}
	case CapabilitySuggest:
		if v := strings.TrimSpace(c.SuggestModel); v != "" {
			modelName = v
		}
		if c.SuggestTemperature >= 0 {
			temp = c.SuggestTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
