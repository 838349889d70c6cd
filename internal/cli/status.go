package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/harun/skycast/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Long:  `Show the configured agent and whether the gateway is reachable.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("Agent: %s\n", cfg.Agent.Name)
	fmt.Printf("Model: %s\n", cfg.Models.Resolve(cfg.Agent.Model))
	if cfg.Providers.Proxy.Enabled {
		fmt.Printf("Backend: proxy (%s)\n", cfg.Providers.Proxy.BaseURL)
	}

	host := cfg.Gateway.Host
	if host == "0.0.0.0" || host == "" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d/healthz", host, cfg.Gateway.Port)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Println("Gateway: stopped")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		fmt.Printf("Gateway: running (%s)\n", url)
	} else {
		fmt.Printf("Gateway: unhealthy (status %d)\n", resp.StatusCode)
	}
	return nil
}
