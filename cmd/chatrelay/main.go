// Command chatrelay runs the multilingual chat relay.
//
//	chatrelay serve                 start the HTTP API (default)
//	chatrelay migrate               create or update the schema and exit
//	chatrelay resolve "<message>"   show how a message would be handled
//	chatrelay version
//
// Configuration comes from the environment; a .env file in the working
// directory is loaded first when present.
//
// @title                       go-chat-relay API
// @version                     1.0
// @description                 Multilingual chat relay: language-aware replies from an OpenRouter model, with history, feedback and user profiles.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("chatrelay failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatrelay",
		Short: "Multilingual chat relay backend",
		Long: `chatrelay relays user messages to an OpenRouter-hosted model and answers
in the language the user asked for, their forced language or their
preferred one. Exchanges, feedback and profiles are stored in SQLite or
Postgres.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadDotEnv(".env")
		},
		RunE: runServe,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newResolveCmd(), newVersionCmd())
	return root
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), buildVersion(os.Getenv("APP_VERSION")))
			return err
		},
	}
}

// buildVersion prefers the linker-provided version over APP_VERSION.
func buildVersion(fromEnv string) string {
	switch {
	case version != "":
		return version
	case fromEnv != "":
		return fromEnv
	}
	return "dev"
}
