package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/split"
)

// NewMemberInfoCmd создаёт команду пробного батчевого lookup-вызова:
// полезна для проверки, что user-сервис отвечает на RPC.
func NewMemberInfoCmd(logger *slog.Logger, outputFn func() *Output) *cobra.Command {
	var groupID string

	cmd := &cobra.Command{
		Use:   "member-info [user_id...]",
		Short: "Fetch member cards from the user service over RPC",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			cfg := config.LoadRabbit()

			svc := split.NewService(cfg, logger)
			members, err := svc.FetchGroupMembers(cmd.Context(), groupID, args)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(members))
			for _, m := range members {
				rows = append(rows, []string{m.UserID, m.Name, strOrDash(m.AvatarURL)})
			}

			out.Success("Lookup completed")
			out.Print([]string{"USER ID", "NAME", "AVATAR"}, rows, members)
			return nil
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "cli", "Group id to stamp on the request")
	return cmd
}

func strOrDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
