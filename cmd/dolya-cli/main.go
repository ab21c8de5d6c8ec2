// Dolya CLI — инструмент командной строки для обслуживания
// messaging-подсистемы.
//
// Использование:
//
//	dolya [--json] <command> [flags]
//
// Команды:
//
//	topology     Объявить exchanges, queues и bindings
//	member-info  Пробный батчевый lookup через RPC
//	otp          OTP-утилиты
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dolya-app/dolya/internal/cli"
	"github.com/dolya-app/dolya/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	logger := telemetry.SetupLogger("dolya-cli")

	rootCmd := &cobra.Command{
		Use:           "dolya",
		Short:         "Dolya CLI — messaging maintenance tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTopologyCmd(logger, outputFn),
		cli.NewMemberInfoCmd(logger, outputFn),
		cli.NewOTPCmd(logger, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
