package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "scholar-harvest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// MirrorKind selects how a DOI-bearing citation without a direct PDF link
// is resolved to a downloadable URL.
type MirrorKind string

const (
	// MirrorIframe scrapes an embedded viewer element from a mirror page.
	MirrorIframe MirrorKind = "iframe"

	// MirrorOpenAlex asks the OpenAlex works API for an open-access PDF.
	MirrorOpenAlex MirrorKind = "openalex"
)

// RetrievalConfig holds settings for the concurrent download engine.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Concurrency bounds how many requests are in flight at once (default 8).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// ResultsDir receives one <id>.pdf per completed download.
	ResultsDir string `json:"results_dir" yaml:"results_dir" mapstructure:"results_dir"`

	// Mirror selects the fallback strategy (default iframe).
	Mirror MirrorKind `json:"mirror" yaml:"mirror" mapstructure:"mirror"`

	// MirrorURL is the base the publisher URL is appended to for iframe lookups.
	MirrorURL string `json:"mirror_url" yaml:"mirror_url" mapstructure:"mirror_url"`

	// RateLimit caps requests per second to any single host. Zero disables it.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// MaxRetries is the number of retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryDelay is the backoff base for those retries (default 1s). It
	// doubles per attempt while the request holds its executor slot.
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`
}

// ReferenceConfig holds settings for the citation formatting service.
type ReferenceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// URL is the formatting endpoint; style, lang and doi are added as query parameters.
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// Style is the CSL style name.
	Style string `json:"style" yaml:"style" mapstructure:"style"`

	// Lang is the locale for the formatted reference.
	Lang string `json:"lang" yaml:"lang" mapstructure:"lang"`

	// Concurrency bounds parallel reference lookups (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// MailboxConfig locates alert messages.
type MailboxConfig struct {
	// Dir holds exported messages (*.eml, *.html).
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// From, when set, keeps only messages whose sender contains it.
	From string `json:"from,omitempty" yaml:"from,omitempty" mapstructure:"from"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Development switches to human-readable console output.
	Development bool `json:"development" yaml:"development" mapstructure:"development"`
}

// HarvestConfig groups all settings for a harvest run.
type HarvestConfig struct {
	ResultsDir  string          `json:"results_dir" yaml:"results_dir" mapstructure:"results_dir"`
	MetricsFile string          `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
	Mailbox     MailboxConfig   `json:"mailbox" yaml:"mailbox" mapstructure:"mailbox"`
	Retrieval   RetrievalConfig `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Reference   ReferenceConfig `json:"reference" yaml:"reference" mapstructure:"reference"`
	Log         LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
}
