package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// Supported values for -llm-provider.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds           int
	ShutdownBudgetSeconds  int
	APIPort                int
	LLMProvider            string
	OpenAIAPIKey           string
	OpenAIModel            string
	OpenAIBaseURL          string
	ClaudeAPIKey           string
	ClaudeModel            string
	ClassifyTimeoutSeconds int
	TriggersFile           string
	SlackWebhookURL        string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 5, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 30, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 3000, "webhook listen TCP port (1..65535)")
	fs.StringVar(&c.LLMProvider, "llm-provider", ProviderOpenAI, "LLM backend used to classify messages (openai|claude)")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI chat completions API")
	fs.StringVar(&c.OpenAIModel, "openai-model", "gpt-4o-mini", "OpenAI model used for classification")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model used for classification")
	fs.IntVar(&c.ClassifyTimeoutSeconds, "classify-timeout-seconds", 30, "timeout for a single classification call (1..300)")
	fs.StringVar(&c.TriggersFile, "triggers-file", "", "YAML trigger table (empty = built-in triggers)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalation notices")
}

// envFallbacks maps flags to the plain environment variable names the
// service has always honoured, in addition to the prefixed ones.
var envFallbacks = []struct {
	flag string
	env  string
}{
	{"http-port", "PORT"},
	{"openai-api-key", "OPENAI_API_KEY"},
	{"openai-base-url", "OPENAI_BASE_URL"},
	{"claude-api-key", "ANTHROPIC_API_KEY"},
}

// ApplyEnvFallbacks sets flags from their plain environment variables
// (PORT, OPENAI_API_KEY, ...) unless the flag was already set on the command
// line or from a prefixed variable. Call it after flag parsing and
// cfg.FillFromEnv.
func ApplyEnvFallbacks(fs *flag.FlagSet, lookup func(string) (string, bool)) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var errs []error
	for _, fb := range envFallbacks {
		if set[fb.flag] || fs.Lookup(fb.flag) == nil {
			continue
		}
		v, ok := lookup(fb.env)
		if !ok || v == "" {
			continue
		}
		f := fs.Lookup(fb.flag)
		prev := f.Value.String()
		if err := fs.Set(fb.flag, v); err != nil {
			// flag.Value.Set may have clobbered the value before failing
			_ = f.Value.Set(prev)
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", fb.env, v, err))
		}
	}
	return errors.Join(errs...)
}

// ClassifyTimeout returns the classification timeout as a duration.
func (c *Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.ClassifyTimeoutSeconds) * time.Second
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.ClassifyTimeoutSeconds <= 0 || c.ClassifyTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid CLASSIFY_TIMEOUT_SECONDS %d (must be 1..300)", c.ClassifyTimeoutSeconds))
	}

	// The selected provider needs its key and model; the service refuses to start without them
	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
		if c.OpenAIModel == "" {
			errs = append(errs, errors.New("OPENAI_MODEL is required"))
		}
	case ProviderClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY (or ANTHROPIC_API_KEY) is required"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be openai or claude)", c.LLMProvider))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
