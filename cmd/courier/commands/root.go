package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"courier/internal/app"
)

var (
	home       string
	backendURL string
	wsURL      string
	verbose    bool
	email      string

	appCtx *app.App
	logger *zap.Logger
)

// requireEmail guards commands that log in to the backend.
func requireEmail() error {
	if email == "" {
		return fmt.Errorf("COURIER_EMAIL must be set")
	}
	return nil
}

func Execute() error {
	root := &cobra.Command{
		Use:           "courier",
		Short:         "End-to-end encrypted messaging bot",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The password doubles as the identity passphrase, so every
			// command needs it. The email is only checked by commands
			// that log in, keeping offline ones usable without it.
			email = os.Getenv("COURIER_EMAIL")
			password := os.Getenv("COURIER_PASSWORD")
			if password == "" {
				return fmt.Errorf("COURIER_PASSWORD must be set")
			}

			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".courier")
			}

			var err error
			if verbose {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			if err != nil {
				return err
			}

			appCtx, err = app.New(app.Config{
				BackendURL:   backendURL,
				WebSocketURL: wsURL,
				Home:         home,
				Email:        email,
				Password:     password,
				Logger:       logger,
			})
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "state dir (default ~/.courier)")
	root.PersistentFlags().StringVar(&backendURL, "backend", "https://prod-nginz-https.wire.com", "backend base URL")
	root.PersistentFlags().StringVar(&wsURL, "ws", "wss://prod-nginz-ssl.wire.com", "websocket base URL")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(runCmd(), sendCmd(), fingerprintCmd())
	return root.Execute()
}
