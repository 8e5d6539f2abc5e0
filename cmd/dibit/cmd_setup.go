package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arazimproject/dibit/internal/app"
	"github.com/arazimproject/dibit/internal/config"
	"github.com/arazimproject/dibit/internal/queue"
	"github.com/arazimproject/dibit/internal/storage/postgres"
)

// cmdInit initializes Dib It for first-time use
func cmdInit() error {
	fmt.Println("Dib It - First-Time Setup")
	fmt.Println("=========================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	// 1. Create directory structure
	fmt.Print("Creating ~/.dibit directory structure... ")
	dibitDir, err := config.EnsureDibitDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	// 2. Load or create the configuration
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	configPath := filepath.Join(dibitDir, "config.yaml")
	_, statErr := os.Stat(configPath)
	fresh := os.IsNotExist(statErr)

	// 3. Storage backend
	if fresh {
		fmt.Println()
		fmt.Println("Storage")
		fmt.Println("-------")
		fmt.Println("local:  one JSON file, easy to back up")
		fmt.Println("sqlite: keeps a history of every change")
		answer := prompt(reader, "Storage backend [local]: ")
		if answer == config.StorageSQLite {
			cfg.Storage.Backend = config.StorageSQLite
		}

		fmt.Print("Creating configuration... ")
		if err := config.SaveLocalConfig(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	} else {
		fmt.Println("Configuration already exists ✓")
	}

	// 4. Optional services
	fmt.Println()
	fmt.Println("Optional Services")
	fmt.Println("-----------------")
	secrets := config.SecretsConfig{
		PostgresURL: cfg.Sync.PostgresURL,
		RabbitMQURL: cfg.Queue.RabbitMQURL,
	}
	changed := false

	if secrets.PostgresURL != "" {
		fmt.Println("Cloud sync (PostgreSQL): already configured ✓")
	} else if dsn := prompt(reader, "PostgreSQL URL for cloud sync (or press Enter to skip): "); dsn != "" {
		secrets.PostgresURL = dsn
		changed = true
	}

	if secrets.RabbitMQURL != "" {
		fmt.Println("Prefetch queue (RabbitMQ): already configured ✓")
	} else if url := prompt(reader, "RabbitMQ URL for the prefetch queue (or press Enter to skip): "); url != "" {
		secrets.RabbitMQURL = url
		changed = true
	}

	if changed {
		if err := config.SaveSecrets(secrets); err != nil {
			fmt.Printf("  ⚠ Failed to save: %v\n", err)
		} else {
			fmt.Println("  ✓ Saved to secrets.yaml")
		}
	}

	// 5. Summary
	fmt.Println()
	fmt.Println("Setup Complete!")
	fmt.Println("===============")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. dibit doctor           # Verify configuration")
	fmt.Println("  2. dibit search <name>    # Find courses")
	fmt.Println("  3. dibit add <course>     # Build your schedule")
	fmt.Println()
	fmt.Println("For editor integration:")
	fmt.Println("  - MCP clients: configure 'dibit mcp' as a stdio server")
	fmt.Println("  - Others:      'dibit start' serves the HTTP API on", daemonURL())

	return nil
}

func prompt(reader *bufio.Reader, question string) string {
	fmt.Print(question)
	answer, _ := reader.ReadString('\n')
	return strings.TrimSpace(answer)
}

// cmdDoctor checks configuration, storage and connectivity
func cmdDoctor() error {
	fmt.Println("Checking Dib It setup...")

	allGood := true
	fail := func(format string, args ...any) {
		fmt.Printf("✗ "+format+"\n", args...)
		allGood = false
	}

	fmt.Print("Directory: ")
	dibitDir, err := config.DibitDir()
	if err != nil {
		fail("%v", err)
	} else if _, err := os.Stat(dibitDir); os.IsNotExist(err) {
		fail("not created (run 'dibit init')")
	} else {
		fmt.Printf("✓ %s\n", dibitDir)
	}

	fmt.Print("Config:    ")
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		fail("%v", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		fail("%v", err)
	} else {
		fmt.Println("✓ valid")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Cloud sync is checked separately so a dead database does not hide
	// the other results
	dsn := cfg.Sync.PostgresURL
	cfg.Sync.PostgresURL = ""

	fmt.Print("Storage:   ")
	a, err := app.NewApp(ctx, app.AppConfig{Config: cfg, Logger: cliLogger("error")})
	if err != nil {
		fail("%v", err)
	} else {
		defer a.Close()
		fmt.Printf("✓ %s\n", cfg.Storage.Backend)

		fmt.Print("Cache:     ")
		if a.CatalogStore == nil {
			fail("unavailable (catalog is fetched on every run)")
		} else {
			fmt.Println("✓ persistent")
		}

		fmt.Print("Catalog:   ")
		if info, err := a.Provider.GeneralInfo(ctx); err != nil {
			fail("%v", err)
		} else {
			fmt.Printf("✓ reachable (current semester %s)\n", info.CurrentSemester)
		}
	}

	fmt.Print("Sync:      ")
	switch {
	case dsn == "":
		fmt.Println("- not configured")
	case cfg.Sync.UserID == "":
		if err := postgres.EnsureSchema(ctx, dsn, cfg.Sync.Table); err != nil {
			fail("%v", err)
		} else {
			fmt.Println("✓ reachable (set sync.user_id to enable)")
		}
	default:
		if err := postgres.EnsureSchema(ctx, dsn, cfg.Sync.Table); err != nil {
			fail("%v", err)
		} else {
			fmt.Printf("✓ reachable (user %s)\n", cfg.Sync.UserID)
		}
	}

	fmt.Print("Queue:     ")
	switch {
	case cfg.Queue.RabbitMQURL == "":
		fmt.Println("- not configured")
	default:
		conn, err := queue.NewConnection(cfg.Queue.RabbitMQURL)
		switch {
		case err != nil:
			fail("%v", err)
		case !conn.IsConnected():
			conn.Close()
			fail("connection dropped right after connecting")
		default:
			conn.Close()
			fmt.Printf("✓ reachable (enabled=%t)\n", cfg.Queue.Enabled)
		}
	}

	fmt.Print("\nDaemon:    ")
	if isRunning() {
		fmt.Println("✓ running")
	} else {
		fmt.Println("- not running (run 'dibit start')")
	}

	fmt.Println()
	if allGood {
		fmt.Println("All checks passed! ✓")
	} else {
		fmt.Println("Some checks failed. Please fix the issues above.")
	}

	return nil
}

// cmdConfig shows current configuration
func cmdConfig() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("Dib It Configuration")

	fmt.Println("\nDaemon:")
	fmt.Printf("  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
	fmt.Printf("  log_level: %s\n", cfg.Daemon.LogLevel)

	fmt.Println("\nCatalog:")
	fmt.Printf("  base_url: %s\n", cfg.Catalog.BaseURL)
	fmt.Printf("  timeout: %s\n", cfg.Catalog.Timeout())
	fmt.Printf("  max_attempts: %d\n", cfg.Catalog.MaxAttempts)
	fmt.Printf("  cache_ttl: %s\n", cfg.Catalog.CacheTTL())
	fmt.Printf("  prefetch_upcoming: %t\n", cfg.Catalog.PrefetchUpcoming)

	fmt.Println("\nStorage:")
	fmt.Printf("  backend: %s\n", cfg.Storage.Backend)

	fmt.Println("\nCalendar:")
	fmt.Printf("  timezone: %s\n", cfg.Calendar.Timezone)

	fmt.Println("\nSync:")
	fmt.Printf("  user_id: %s\n", cfg.Sync.UserID)
	fmt.Printf("  table: %s\n", cfg.Sync.Table)
	fmt.Printf("  postgres: %s\n", configured(cfg.Sync.PostgresURL))

	fmt.Println("\nQueue:")
	fmt.Printf("  enabled: %t\n", cfg.Queue.Enabled)
	fmt.Printf("  workers: %d\n", cfg.Queue.Workers)
	fmt.Printf("  rabbitmq: %s\n", configured(cfg.Queue.RabbitMQURL))

	dibitDir, _ := config.DibitDir()
	fmt.Printf("\nConfig path: %s/config.yaml\n", dibitDir)

	return nil
}

func configured(secret string) string {
	if secret == "" {
		return "✗"
	}
	return "✓"
}
