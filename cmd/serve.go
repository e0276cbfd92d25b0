package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/searchktools/fast-socket/app"
	"github.com/searchktools/fast-socket/config"
)

var (
	serveConfig *config.Config

	ServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Long: `Start the server with the specified configuration. The configuration can be set via
command line flags or environment variables. The format of the environment variables
is FASTSOCKET_<flag> (e.g. FASTSOCKET_RECEIVE_BUFFER_SIZE=8192).`,
		PreRunE: processConfig,
		RunE:    runServe,
	}
)

func init() {
	d := config.Default()
	flags := ServeCmd.Flags()

	flags.Int(config.KeyPort, d.Port, "Port to listen on")
	flags.String(config.KeyProtocol, d.Protocol, wrap("Protocol to serve ("+strings.Join(config.Protocols, ", ")+")"))
	flags.String(config.KeyEnv, d.Env, "Environment name shown in logs")
	flags.Int(config.KeyMaxPackageLength, d.MaxPackageLength, wrap("Largest package a filter may buffer in bytes, 0 for no limit"))
	flags.Int(config.KeyReceiveBufferSize, d.ReceiveBufferSize, "Size of one receive buffer in bytes")
	flags.Int(config.KeyMinPoolSize, d.MinPoolSize, "Buffers and sending queues created up front")
	flags.Int(config.KeyMaxPoolSize, d.MaxPoolSize, wrap("Upper bound of pooled buffers and sending queues"))
	flags.Int(config.KeySendingQueueSize, d.SendingQueueSize, "Slots of a session's sending queue")
	flags.Duration(config.KeyIdleTimeout, d.IdleTimeout, wrap("Close sessions idle for longer, 0 disables the check"))
	flags.Int(config.KeyWorkers, d.Workers, "Send workers, 0 for one per CPU")
	flags.String(config.KeyMetricsAddr, d.MetricsAddr, wrap("Address of the h2c monitoring server (/metrics, /stats, /healthz), empty to disable"))
	flags.Int(config.KeyGCPercent, d.GCPercent, "GOGC applied while serving")
}

// processConfig binds the flags to viper and loads the configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	serveConfig = cfg
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), serveConfig.String())

	a, err := app.New(serveConfig)
	if err != nil {
		return err
	}
	return a.Run()
}
