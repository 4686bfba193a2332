package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"voiceeval/internal/app"
	"voiceeval/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "voiceeval",
	Short: "TTS naturalness evaluation service",
	Long: `voiceeval synthesizes translated speech, scores its naturalness (MOS) and its
speaker similarity (SC) against the original voice, streams progress to WebSocket
subscribers and reports every result downstream.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is given, print help.
		cmd.Help()
	},
	// PersistentPreRunE runs before any subcommand's RunE
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !needsApp(cmd) {
			return nil
		}

		cfg, err := config.LoadConfigFrom(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		appInstance, err := app.NewApp(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		// Store the app instance in the command's context
		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appInstance, err := GetAppFromContext(cmd.Context()); err == nil {
			appInstance.Close()
		}
	},
}

const skipAppAnnotation = "skip-app"

// needsApp reports whether cmd runs against the service stack. Help, shell
// completion and client-side commands do not.
func needsApp(cmd *cobra.Command) bool {
	if !cmd.HasParent() || cmd.Name() == "help" || cmd.Annotations[skipAppAnnotation] == "true" {
		return false
	}
	if p := cmd.Parent(); p != nil && p.Name() == "completion" {
		return false
	}
	return true
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Define a custom type for the context key to avoid collisions.
type contextKey string

const appKey contextKey = "app"

// GetAppFromContext retrieves the app instance stored by PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")

	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check artifact storage and Redis connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		appInstance, err := GetAppFromContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to get app instance: %w", err)
		}
		cfg := appInstance.Config

		fmt.Printf("Checking artifact storage (%s)...\n", cfg.Storage.Driver)
		if err := appInstance.Artifacts.Ping(ctx); err != nil {
			return fmt.Errorf("artifact storage check failed: %w", err)
		}
		if regional, ok := appInstance.Artifacts.(interface {
			BucketRegion(context.Context) (string, error)
		}); ok {
			region, err := regional.BucketRegion(ctx)
			if err != nil {
				return fmt.Errorf("bucket region lookup failed: %w", err)
			}
			if region != cfg.Storage.Region {
				fmt.Printf("WARNING: bucket %s lives in %s but storage.region is %s; public URLs will be wrong.\n",
					cfg.Storage.Bucket, region, cfg.Storage.Region)
			}
		}
		fmt.Println("Artifact storage OK.")

		fmt.Printf("Checking Redis at %s...\n", cfg.Redis.Address)
		if err := appInstance.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		fmt.Println("Redis connection successful.")
		return nil
	},
}
