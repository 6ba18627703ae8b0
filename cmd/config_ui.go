package cmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/relay-bss/batchmender/internal/config"
	"github.com/spf13/cobra"
)

var (
	configHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	configSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	configSectionStyle = lipgloss.NewStyle().Bold(true).MarginTop(1).MarginBottom(1)
	configDimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

var configUICmd = &cobra.Command{
	Use:   "edit-ui",
	Short: "Interactive configuration editor",
	Long: `Launches an interactive form to configure batchmender settings.

Sections:
  - Runtime: upstream BSS runtime API base URL and credentials
  - Scheduler: tick interval, auto-start
  - Remediate: Solution-engine polling parameters
  - Gateway: HTTP bind host/port
  - Notify: Slack, Telegram, Email, webhook alerting
`,
	RunE: runConfigUI,
}

func runConfigUI(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(configHeaderStyle.Render("  batchmender — Configuration Editor"))
	fmt.Println(configDimStyle.Render("  Select a section • Edit values • Save when done\n"))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	for {
		section := "runtime"
		selectForm := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Configuration Section").
					Options(
						huh.NewOption("Runtime API", "runtime"),
						huh.NewOption("Scheduler", "scheduler"),
						huh.NewOption("Remediate (polling)", "remediate"),
						huh.NewOption("Gateway", "gateway"),
						huh.NewOption("Notifications", "notify"),
						huh.NewOption("Done — exit editor", "done"),
					).
					Value(&section),
			),
		)
		if err := selectForm.Run(); err != nil {
			return err
		}
		if section == "done" {
			return nil
		}

		var updated bool
		switch section {
		case "runtime":
			updated, err = editRuntimeSettings(cfg)
		case "scheduler":
			updated, err = editSchedulerSettings(cfg)
		case "remediate":
			updated, err = editRemediateSettings(cfg)
		case "gateway":
			updated, err = editGatewaySettings(cfg)
		case "notify":
			updated, err = editNotifySettings(cfg)
		}
		if err != nil {
			return err
		}
		if !updated {
			continue
		}

		var saveConfirm bool
		confirmForm := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Save changes?").
					Description("Press Enter to save, Esc to return without saving").
					Value(&saveConfirm),
			),
		)
		if err := confirmForm.Run(); err != nil {
			return err
		}
		if saveConfirm {
			configPath, err := config.ConfigPath(cfgFile)
			if err != nil {
				return fmt.Errorf("getting config path: %w", err)
			}
			if err := config.Save(cfg, configPath); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Println(configSuccessStyle.Render("  ✓ Configuration saved"))
		}
	}
}

func editRuntimeSettings(cfg *config.Config) (bool, error) {
	fmt.Println(configSectionStyle.Render("  Runtime API"))

	baseURL := cfg.Runtime.BaseURL
	apiKey := cfg.Runtime.APIKey
	oauthClientID := cfg.Runtime.OAuthClientID
	oauthClientSecret := cfg.Runtime.OAuthClientSecret
	oauthTokenURL := cfg.Runtime.OAuthTokenURL

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Base URL").Placeholder("https://runtime.example.com/api").Value(&baseURL),
			huh.NewInput().Title("API Key (bearer)").EchoMode(huh.EchoModePassword).Value(&apiKey),
			huh.NewInput().Title("OAuth Client ID (optional)").Value(&oauthClientID),
			huh.NewInput().Title("OAuth Client Secret (optional)").EchoMode(huh.EchoModePassword).Value(&oauthClientSecret),
			huh.NewInput().Title("OAuth Token URL (optional)").Value(&oauthTokenURL),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}

	cfg.Runtime.BaseURL = baseURL
	cfg.Runtime.APIKey = apiKey
	cfg.Runtime.OAuthClientID = oauthClientID
	cfg.Runtime.OAuthClientSecret = oauthClientSecret
	cfg.Runtime.OAuthTokenURL = oauthTokenURL
	return true, nil
}

func editSchedulerSettings(cfg *config.Config) (bool, error) {
	fmt.Println(configSectionStyle.Render("  Scheduler"))

	intervalStr := fmt.Sprintf("%d", cfg.Scheduler.IntervalSeconds)
	enabled := cfg.Scheduler.Enabled

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Tick interval (seconds)").Value(&intervalStr),
			huh.NewConfirm().Title("Auto-start the loop on process init?").Value(&enabled),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}

	var interval int
	if _, err := fmt.Sscanf(intervalStr, "%d", &interval); err == nil && interval > 0 {
		cfg.Scheduler.IntervalSeconds = interval
	}
	cfg.Scheduler.Enabled = enabled
	return true, nil
}

func editRemediateSettings(cfg *config.Config) (bool, error) {
	fmt.Println(configSectionStyle.Render("  Remediate (Solution engine polling)"))

	initialDelay := fmt.Sprintf("%d", cfg.Remediate.InitialDelaySeconds)
	pollInterval := fmt.Sprintf("%d", cfg.Remediate.PollIntervalSeconds)
	maxInterval := fmt.Sprintf("%d", cfg.Remediate.MaxIntervalSeconds)
	backoffFactor := fmt.Sprintf("%.2f", cfg.Remediate.BackoffFactor)
	maxDuration := fmt.Sprintf("%d", cfg.Remediate.MaxDurationSeconds)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Initial delay before first poll (seconds)").Value(&initialDelay),
			huh.NewInput().Title("Poll interval (seconds)").Value(&pollInterval),
			huh.NewInput().Title("Max interval (seconds)").Value(&maxInterval),
			huh.NewInput().Title("Backoff factor").Value(&backoffFactor),
			huh.NewInput().Title("Max poll duration (seconds)").Value(&maxDuration),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}

	var i int
	var f float64
	if _, err := fmt.Sscanf(initialDelay, "%d", &i); err == nil {
		cfg.Remediate.InitialDelaySeconds = i
	}
	if _, err := fmt.Sscanf(pollInterval, "%d", &i); err == nil {
		cfg.Remediate.PollIntervalSeconds = i
	}
	if _, err := fmt.Sscanf(maxInterval, "%d", &i); err == nil {
		cfg.Remediate.MaxIntervalSeconds = i
	}
	if _, err := fmt.Sscanf(backoffFactor, "%f", &f); err == nil {
		cfg.Remediate.BackoffFactor = f
	}
	if _, err := fmt.Sscanf(maxDuration, "%d", &i); err == nil {
		cfg.Remediate.MaxDurationSeconds = i
	}
	return true, nil
}

func editGatewaySettings(cfg *config.Config) (bool, error) {
	fmt.Println(configSectionStyle.Render("  Gateway"))

	host := cfg.Gateway.Host
	portStr := fmt.Sprintf("%d", cfg.Gateway.Port)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Bind host").Value(&host),
			huh.NewInput().Title("Bind port").Value(&portStr),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}

	cfg.Gateway.Host = host
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err == nil && port > 0 {
		cfg.Gateway.Port = port
	}
	return true, nil
}

func editNotifySettings(cfg *config.Config) (bool, error) {
	fmt.Println(configSectionStyle.Render("  Notifications"))

	slackURL := cfg.Notify.Slack.WebhookURL
	telegramToken := cfg.Notify.Telegram.BotToken
	telegramChatID := cfg.Notify.Telegram.ChatID
	webhookURL := cfg.Notify.Webhook.URL
	minSeverity := cfg.Notify.MinSeverity

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Slack webhook URL").EchoMode(huh.EchoModePassword).Value(&slackURL),
			huh.NewInput().Title("Telegram bot token").EchoMode(huh.EchoModePassword).Value(&telegramToken),
			huh.NewInput().Title("Telegram chat id").Value(&telegramChatID),
			huh.NewInput().Title("Generic webhook URL").Value(&webhookURL),
			huh.NewInput().Title("Minimum severity").Placeholder("low|medium|high|critical").Value(&minSeverity),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}

	cfg.Notify.Slack.WebhookURL = slackURL
	cfg.Notify.Telegram.BotToken = telegramToken
	cfg.Notify.Telegram.ChatID = telegramChatID
	cfg.Notify.Webhook.URL = webhookURL
	cfg.Notify.MinSeverity = minSeverity
	return true, nil
}
