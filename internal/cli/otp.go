package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dolya-app/dolya/internal/config"
	"github.com/dolya-app/dolya/internal/mq"
	"github.com/dolya-app/dolya/internal/otp"
)

// NewOTPCmd создаёт группу команд для OTP-сообщений.
func NewOTPCmd(logger *slog.Logger, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "OTP utilities",
	}

	cmd.AddCommand(newOTPSendCmd(logger, outputFn))
	return cmd
}

// newOTPSendCmd — публикация OTP-сообщения в обход user-сервиса
// (проверка, что notification-сторона разбирает очередь).
func newOTPSendCmd(logger *slog.Logger, outputFn func() *Output) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "send <identifier>",
		Short: "Publish an OTP message for an email or phone identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			cfg := config.LoadRabbit()
			identifier := args[0]

			if code == "" {
				code = otp.GenerateCode(0)
			}

			routingKey := cfg.SMSRoutingKey
			if otp.IdentifierType(identifier) == otp.IdentifierEmail {
				routingKey = cfg.EmailRoutingKey
			}

			conn := mq.NewConn(cfg, logger)
			if err := conn.Connect(); err != nil {
				return err
			}
			defer conn.Close()

			if err := mq.NewProducer(conn, logger).PublishOTP(cmd.Context(), identifier, code, routingKey); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("OTP published to %s", routingKey))
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Code to send (random if omitted)")
	return cmd
}
