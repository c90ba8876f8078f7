// Command cbt takes GeoCatalyst tests from a terminal. It runs the exam
// engine locally and talks to the upstream API directly.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/geocatalyst/exam-engine/internal/backend"
	"github.com/geocatalyst/exam-engine/internal/history"
	"github.com/geocatalyst/exam-engine/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cbt",
		Short:         "Take GeoCatalyst computer-based tests from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.String("api-url", "http://localhost:5000/api", "Upstream API base URL")
	pf.String("token", "", "Upstream ID token (prompted when empty)")
	pf.Duration("timeout", 15*time.Second, "Upstream request timeout")
	pf.String("db", "cbt-history.db", "SQLite history database path")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.String("log-format", "pretty", "Log format (pretty, json)")

	root.AddCommand(takeCmd(), reviewCmd(), historyCmd(), leaderboardCmd())
	return root
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvPrefix("GEOCATALYST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("cbt")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/geocatalyst")
	_ = v.ReadInConfig()

	return v
}

// env is what every subcommand needs: merged settings and a stderr logger.
type env struct {
	v   *viper.Viper
	log zerolog.Logger
}

func setup(cmd *cobra.Command) *env {
	v := viperForCmd(cmd)
	log := logger.New(os.Stderr, v.GetString("log-level"), v.GetString("log-format"))
	if f := v.ConfigFileUsed(); f != "" {
		log.Debug().Str("path", f).Msg("Loaded config file")
	}
	return &env{v: v, log: log}
}

func (e *env) client() (*backend.Client, error) {
	token, err := e.token()
	if err != nil {
		return nil, err
	}
	return backend.New(e.v.GetString("api-url"), e.v.GetDuration("timeout"), backend.StaticToken(token), e.log), nil
}

func (e *env) token() (string, error) {
	if t := strings.TrimSpace(e.v.GetString("token")); t != "" {
		return t, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no token: set --token or GEOCATALYST_TOKEN")
	}
	fmt.Fprint(os.Stderr, "ID token: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	t := strings.TrimSpace(string(raw))
	if t == "" {
		return "", fmt.Errorf("no token entered")
	}
	return t, nil
}

func (e *env) history() (*history.Store, error) {
	return history.Open(e.v.GetString("db"))
}
