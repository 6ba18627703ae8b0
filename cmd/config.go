package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/relay-bss/batchmender/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage batchmender configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		redactSecrets(cfg)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			cfg, loadErr := config.Load(cfgFile)
			if loadErr != nil {
				return loadErr
			}
			if err := config.Save(cfg, p); err != nil {
				return fmt.Errorf("seeding initial config: %w", err)
			}
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}
		fmt.Printf("Opening %s with %s...\n", p, editor)
		c := exec.Command(editor, p)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

// redactSecrets masks credential fields before a config is printed or
// otherwise surfaced outside the process.
func redactSecrets(cfg *config.Config) {
	if cfg.Runtime.APIKey != "" {
		cfg.Runtime.APIKey = "***"
	}
	if cfg.Runtime.OAuthClientSecret != "" {
		cfg.Runtime.OAuthClientSecret = "***"
	}
	if cfg.Notify.Slack.WebhookURL != "" {
		cfg.Notify.Slack.WebhookURL = "***"
	}
	if cfg.Notify.Telegram.BotToken != "" {
		cfg.Notify.Telegram.BotToken = "***"
	}
	if cfg.Notify.Email.Password != "" {
		cfg.Notify.Email.Password = "***"
	}
	if cfg.Notify.Webhook.Secret != "" {
		cfg.Notify.Webhook.Secret = "***"
	}
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configEditCmd, configUICmd)
}
