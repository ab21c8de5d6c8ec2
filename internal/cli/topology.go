package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/mq"
)

// NewTopologyCmd создаёт команду объявления топологии брокера.
func NewTopologyCmd(logger *slog.Logger, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "topology",
		Short: "Declare exchanges, queues and bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			cfg := config.LoadRabbit()

			conn := mq.NewConn(cfg, logger)
			if err := conn.Connect(); err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.SetupTopology(conn, cfg); err != nil {
				return err
			}

			out.Success("Topology declared")
			out.Print(
				[]string{"EXCHANGE", "TYPE", "QUEUE", "ROUTING KEY"},
				[][]string{
					{cfg.OTPExchange, "topic", cfg.EmailQueue, cfg.EmailRoutingKey},
					{cfg.OTPExchange, "topic", cfg.SMSQueue, cfg.SMSRoutingKey},
					{cfg.UserLookupExchange, "topic", cfg.UserLookupRequestQueue, cfg.UserLookupRequestKey},
					{cfg.UserLookupExchange, "topic", cfg.UserLookupResponseQueue, cfg.UserLookupResponseKey},
					{cfg.UserInfoExchange, "direct", cfg.UserInfoRequestQueue, cfg.UserInfoRequestRoutingKey},
				},
				cfg,
			)
			return nil
		},
	}
}
