// Package main is the entry point for the Axon CLI. Axon runs a
// mode-aware robot agent: a perception-reasoning-action loop whose
// sensors, actions, and persona swap with the active mode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/normanking/axon/internal/bus"
	"github.com/normanking/axon/internal/config"
	"github.com/normanking/axon/internal/hook"
	"github.com/normanking/axon/internal/memory"
	"github.com/normanking/axon/internal/mode"
	"github.com/normanking/axon/internal/runtime"
	"github.com/normanking/axon/internal/tts"
)

var (
	version  = "0.1.0"
	logLevel string
	logFile  string
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	modeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "axon",
		Short: "Axon - mode-aware robot agent runtime",
		Long: `Axon runs a robot agent whose behavior is organized into modes.
Each mode carries its own sensors, actions, persona, and loop rate;
transition rules and wire requests move the agent between them.`,
		PersistentPreRunE: initLogging,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Axon v%s\n", version)
		},
	})
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(modesCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(initCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q", logLevel)
	}
	zerolog.SetGlobalLevel(level)

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
		return nil
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	return nil
}

func runCmd() *cobra.Command {
	var ttsURL string
	var noMemory bool

	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run an agent from a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b := bus.New()
			defer b.Close()

			speaker := tts.New(tts.Config{BaseURL: ttsURL})

			var store *memory.Store
			if !noMemory {
				dbPath := filepath.Join(cfg.StateDir, cfg.ConfigName+".db")
				if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
					return fmt.Errorf("create state dir: %w", err)
				}
				store, err = memory.Open(dbPath)
				if err != nil {
					return fmt.Errorf("open memory store: %w", err)
				}
				defer store.Close()
			}

			deps := runtime.Deps{Bus: b, TTS: speaker, Memory: store}
			engine := hook.NewEngine(speaker, runtime.HookActionResolver(cfg, deps))
			registerHookFuncs(b)

			mgr, err := mode.NewManager(cfg, engine)
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render(cfg.Name) + dimStyle.Render(" starting in ") +
				modeStyle.Render(mgr.State().Current()))

			rt := runtime.New(cfg, mgr, deps)
			return rt.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&ttsURL, "tts-url", "", "speech synthesis endpoint (default http://127.0.0.1:8880)")
	cmd.Flags().BoolVar(&noMemory, "no-memory", false, "disable the on-disk interaction store")
	return cmd
}

func modesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes <config.yaml>",
		Short: "List the modes and transitions a configuration defines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render(cfg.Name))
			for name, def := range cfg.Modes {
				marker := "  "
				if name == cfg.DefaultMode {
					marker = dimStyle.Render("* ")
				}
				fmt.Printf("%s%s %s\n", marker, modeStyle.Render(def.Title()),
					dimStyle.Render(def.Description))
			}

			if len(cfg.Rules) > 0 {
				fmt.Println()
				fmt.Println(titleStyle.Render("Transitions"))
				for _, r := range cfg.Rules {
					fmt.Printf("  %s %s %s\n",
						modeStyle.Render(r.FromMode+" -> "+r.ToMode),
						dimStyle.Render(string(r.Kind)),
						dimStyle.Render(fmt.Sprintf("priority %d", r.Priority)))
				}
			}
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Check a configuration file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d modes, %d transition rules, default %s\n",
				cfg.Name, len(cfg.Modes), len(cfg.Rules),
				modeStyle.Render(cfg.DefaultMode))
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [config.yaml]",
		Short: "Write a starter configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "agent.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteExample(path); err != nil {
				return err
			}
			fmt.Println(dimStyle.Render("wrote ") + modeStyle.Render(path))
			return nil
		},
	}
}

// registerHookFuncs installs the function hooks configs may reference
// by module and function name.
func registerHookFuncs(b *bus.Bus) {
	hook.RegisterFunc("system", "announce_status", func(ctx context.Context, hctx hook.Context) error {
		msg, err := bus.NewMessage(bus.TopicStatus, bus.Status{
			Component: "hook",
			Mode:      fmt.Sprint(hctx["to_mode"]),
			Detail:    fmt.Sprint(hctx["reason"]),
		})
		if err != nil {
			return err
		}
		return b.Publish(msg)
	})
	hook.RegisterFunc("system", "log_event", func(ctx context.Context, hctx hook.Context) error {
		log.Info().
			Str("from", fmt.Sprint(hctx["from_mode"])).
			Str("to", fmt.Sprint(hctx["to_mode"])).
			Str("reason", fmt.Sprint(hctx["reason"])).
			Msg("lifecycle event")
		return nil
	})
}
