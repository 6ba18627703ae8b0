package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/relay-bss/batchmender/internal/config"
	"github.com/relay-bss/batchmender/internal/tui"
	"github.com/spf13/cobra"
)

var (
	statusWatch    bool
	statusInterval time.Duration
	statusURLFlag  string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the scheduler's last cycle, or watch it live",
	Long: `Polls the gateway's GET /status endpoint and prints the most recent
scheduler cycle. Pass --watch for a live terminal dashboard that refreshes
on an interval.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "open a live-refreshing dashboard")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 5*time.Second, "poll interval when --watch is set")
	statusCmd.Flags().StringVar(&statusURLFlag, "url", "", "gateway base URL (default derived from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	statusURL, err := resolveStatusURL()
	if err != nil {
		return err
	}

	if statusWatch {
		model := tui.NewStatusModel(statusURL, statusInterval)
		p := tea.NewProgram(model)
		_, err := p.Run()
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(statusURL)
	if err != nil {
		return fmt.Errorf("fetching status: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var snap map[string]any
	if err := json.Unmarshal(body, &snap); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func resolveStatusURL() (string, error) {
	if statusURLFlag != "" {
		return strings.TrimRight(statusURLFlag, "/") + "/status", nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	host := cfg.Gateway.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Gateway.Port
	if port == 0 {
		port = 6090
	}
	return fmt.Sprintf("http://%s:%d/status", host, port), nil
}
