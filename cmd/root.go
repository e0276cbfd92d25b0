// Package cmd holds the fastsocket command line
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/searchktools/fast-socket/config"
)

const Version = "0.4.0"

var (
	// RootCmd is the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "fastsocket",
		Short: "event driven socket server",
		Long: fmt.Sprintf(`fastsocket (v%s)

An epoll/kqueue socket server framing its input with receive filters.
It serves line commands, HTTP/1.1, websocket or RPC frames.`, Version),
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of fastsocket",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fastsocket v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(CallCmd)
	RootCmd.AddCommand(versionCmd)
}

// initConfig loads .env files and makes viper read FASTSOCKET_* variables
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	config.SetDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())
}

// Execute runs RootCmd, it is called by main.main()
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// wrap breaks long flag descriptions
func wrap(s string) string {
	const width = 60

	var sb strings.Builder
	n := 0
	for i, word := range strings.Fields(s) {
		if i > 0 {
			if n+len(word)+1 > width {
				sb.WriteByte('\n')
				n = 0
			} else {
				sb.WriteByte(' ')
				n++
			}
		}
		sb.WriteString(word)
		n += len(word)
	}
	return sb.String()
}
