package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchktools/fast-socket/core/rpc/client"
)

var CallCmd = &cobra.Command{
	Use:   "call <service.method> [json-args]",
	Short: "Call a method of an RPC server",
	Long: `Call a method of a server started with --protocol rpc. Arguments and reply are JSON.

  fastsocket call Echo.Sum '{"values":[1,2,3]}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func init() {
	CallCmd.Flags().String("addr", "127.0.0.1:8080", "Address of the RPC server")
	CallCmd.Flags().Duration("timeout", 5*time.Second, "Call timeout")
}

func runCall(cmd *cobra.Command, args []string) error {
	service, method, ok := strings.Cut(args[0], ".")
	if !ok || service == "" || method == "" {
		return fmt.Errorf("expected <service>.<method>, got %q", args[0])
	}

	params := json.RawMessage("{}")
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("arguments are not valid JSON: %s", args[1])
		}
		params = json.RawMessage(args[1])
	}

	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	c, err := client.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var reply json.RawMessage
	if err := c.Call(ctx, service, method, params, &reply); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(reply))
	return nil
}
