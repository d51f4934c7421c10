package main

import (
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/spatialpred/cluster"
	"github.com/YuminosukeSato/spatialpred/linear"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
)

var workerHost string

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Serve model fits to a coordinator",
	Long: `Starts a worker node. The coordinator sends fits to every node listed in
pool.nodes on pool.port; all nodes share one port.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		addr := net.JoinHostPort(workerHost, strconv.Itoa(cfg.Pool.Port))
		srv := cluster.NewServer(linear.NewFitter(), log.Default())
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerHost, "host", "", "interface to listen on (default all)")
	workerCmd.Flags().Int("port", 0, "listen port (default pool.port)")
	bindFlags(workerCmd.Flags(), map[string]string{"pool.port": "port"})
	rootCmd.AddCommand(workerCmd)
}
