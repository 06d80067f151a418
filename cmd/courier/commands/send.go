package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/domain"
)

// send <conversation> <message>: log in, encrypt and post one message.
func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <conversation> <message>",
		Short: "Send a text into a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEmail(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := appCtx.Login(ctx); err != nil {
				return err
			}
			conv := domain.ConversationID(args[0])
			if err := appCtx.SendText(ctx, conv, args[1]); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
	return cmd
}
