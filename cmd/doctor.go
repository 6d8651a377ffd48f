package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"runtime"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/chatdesk-ai/chatdesk/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("chatdesk doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Provider:")
	if n := len(cfg.Providers.Gemini.APIKeys); n > 0 {
		fmt.Printf("    %-12s %d key(s) in rotation pool\n", "Gemini:", n)
	} else {
		fmt.Printf("    %-12s NOT CONFIGURED (set CHATDESK_GEMINI_API_KEYS)\n", "Gemini:")
	}

	fmt.Println()
	fmt.Println("  Channels:")
	checkChannel("Telegram", cfg.Channels.Telegram.Enabled, cfg.Channels.Telegram.Token != "")

	fmt.Println()
	fmt.Println("  Database:")
	if cfg.Database.Mode == "postgres" && cfg.Database.PostgresDSN != "" {
		db, dbErr := sql.Open("pgx", cfg.Database.PostgresDSN)
		if dbErr == nil {
			dbErr = db.Ping()
			db.Close()
		}
		if dbErr != nil {
			fmt.Printf("    %-12s postgres CONNECT FAILED (%s)\n", "Mode:", dbErr)
		} else {
			fmt.Printf("    %-12s postgres (OK)\n", "Mode:")
		}
	} else {
		fmt.Printf("    %-12s memory (no persistence)\n", "Mode:")
	}

	fmt.Println()
	fmt.Println("  Vector index:")
	if path := cfg.VectorPath(); path != "" {
		fmt.Printf("    %-12s %s\n", "SQLite:", path)
	} else {
		fmt.Printf("    %-12s in-memory\n", "Store:")
	}

	fmt.Println()
	fmt.Printf("  Gateway:  %s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	if cfg.Gateway.Token == "" {
		fmt.Println(" (NO TOKEN — open access)")
	} else {
		fmt.Println(" (token set)")
	}
}

func checkChannel(name string, enabled, hasToken bool) {
	switch {
	case enabled && hasToken:
		fmt.Printf("    %-12s enabled\n", name+":")
	case enabled:
		fmt.Printf("    %-12s enabled but NO TOKEN\n", name+":")
	default:
		fmt.Printf("    %-12s disabled\n", name+":")
	}
}
