package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"courier/internal/domain"
	"courier/internal/genericmsg"
)

// run: log in, connect the event stream and print incoming messages until
// interrupted.
func runCmd() *cobra.Command {
	var echo bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Log in and answer incoming messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEmail(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := appCtx.Login(ctx); err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", appCtx.Self().Name)

			err := appCtx.Run(ctx, func(ctx context.Context, conv domain.ConversationID, from domain.UserID, msg genericmsg.Message) {
				fmt.Printf("%s: %s\n", from, msg.Text)
				if echo && conv != "" {
					if err := appCtx.SendText(ctx, conv, msg.Text); err != nil {
						fmt.Printf("echo failed: %v\n", err)
					}
				}
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&echo, "echo", false, "reply to each message with its own text")
	return cmd
}
