package config

// Config is the root configuration structure for batchmender. Serialised
// to ~/.batchmender/config.json.
type Config struct {
	Runtime   RuntimeConfig   `mapstructure:"runtime"   json:"runtime"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" json:"scheduler"`
	Remediate RemediateConfig `mapstructure:"remediate" json:"remediate"`
	Gateway   GatewayConfig   `mapstructure:"gateway"   json:"gateway"`
	Notify    NotifyConfig    `mapstructure:"notify"    json:"notify"`
}

// RuntimeConfig configures the client connection to the upstream
// runtime API.
type RuntimeConfig struct {
	// BaseURL is the upstream runtime API's base URL.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// APIKey is sent as a bearer header on every request when set.
	APIKey string `mapstructure:"api_key" json:"api_key"` // #nosec G101 -- config field, not a hardcoded credential
	// OAuthClientID and OAuthTokenURL, when both set, switch the client to an
	// OAuth2 client-credentials token source (with OAuthClientSecret)
	// instead of the static APIKey.
	OAuthClientID     string `mapstructure:"oauth_client_id"     json:"oauth_client_id"`
	OAuthClientSecret string `mapstructure:"oauth_client_secret" json:"oauth_client_secret"` // #nosec G101 -- config field, not a hardcoded credential
	OAuthTokenURL     string `mapstructure:"oauth_token_url"     json:"oauth_token_url"`
}

// SchedulerConfig controls the periodic scheduler loop.
type SchedulerConfig struct {
	// IntervalSeconds is the tick interval; default 60.
	IntervalSeconds int `mapstructure:"interval_seconds" json:"interval_seconds"`
	// Enabled, when true, auto-starts the loop on process init.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// RemediateConfig holds the Solution-engine polling parameters.
type RemediateConfig struct {
	InitialDelaySeconds int     `mapstructure:"initial_delay_seconds" json:"initial_delay_seconds"`
	PollIntervalSeconds int     `mapstructure:"poll_interval_seconds" json:"poll_interval_seconds"`
	MaxIntervalSeconds  int     `mapstructure:"max_interval_seconds"  json:"max_interval_seconds"`
	BackoffFactor       float64 `mapstructure:"backoff_factor"        json:"backoff_factor"`
	MaxDurationSeconds  int     `mapstructure:"max_duration_seconds"  json:"max_duration_seconds"`
}

// GatewayConfig controls the façade's HTTP bind.
type GatewayConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

// NotifyConfig controls outbound alerting on scheduler/batch outcomes.
type NotifyConfig struct {
	Slack    SlackNotifyConfig    `mapstructure:"slack"    json:"slack"`
	Telegram TelegramNotifyConfig `mapstructure:"telegram" json:"telegram"`
	Email    EmailNotifyConfig    `mapstructure:"email"    json:"email"`
	Webhook  WebhookNotifyConfig  `mapstructure:"webhook"  json:"webhook"`
	// Events is the explicit list of event types to notify on. Empty means
	// use defaults: tick_failed, batch_failed.
	Events []string `mapstructure:"events" json:"events"`
	// MinSeverity drops events whose severity ranks below it (low < medium <
	// high < critical); an event with no severity always passes. The
	// scheduler loop sets high on tick failures and medium or critical on
	// batch failures.
	MinSeverity string `mapstructure:"min_severity" json:"min_severity"`
}

// SlackNotifyConfig holds the Slack incoming webhook URL.
type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// TelegramNotifyConfig holds Telegram Bot API credentials.
type TelegramNotifyConfig struct {
	BotToken string `mapstructure:"bot_token" json:"bot_token"`
	ChatID   string `mapstructure:"chat_id"   json:"chat_id"`
}

// EmailNotifyConfig holds SMTP settings for email notifications.
type EmailNotifyConfig struct {
	SMTPHost string `mapstructure:"smtp_host" json:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" json:"smtp_port"`
	Username string `mapstructure:"username"  json:"username"`
	Password string `mapstructure:"password"  json:"password"` // #nosec G101 -- config field, not a hardcoded credential
	From     string `mapstructure:"from"      json:"from"`
	To       string `mapstructure:"to"        json:"to"`
	UseTLS   bool   `mapstructure:"use_tls"   json:"use_tls"`
}

// WebhookNotifyConfig holds generic HTTP webhook settings.
type WebhookNotifyConfig struct {
	URL    string `mapstructure:"url"    json:"url"`
	Secret string `mapstructure:"secret" json:"secret"` // HMAC-SHA256 signing key // #nosec G101 -- config field, not a hardcoded credential
}
