package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/apptrail/internal/config"
	"github.com/aretw0/apptrail/pkg/adapters/mockapp"
	"github.com/spf13/cobra"
)

var mockCmd = &cobra.Command{
	Use:   "mock <app.yaml>",
	Short: "Serve a mock application over HTTP",
	Long: `Serves the application described in a YAML file on the session endpoints,
so workflows can be developed without a real server. Requests must be signed
when APPTRAIL_HMAC_KEY is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd)
		if err != nil {
			return err
		}
		port, _ := cmd.Flags().GetString("port")

		def, err := mockapp.LoadFile(args[0])
		if err != nil {
			return err
		}
		opts := []mockapp.ServerOption{mockapp.WithServerLogger(env.Logger)}
		if key := os.Getenv(config.EnvHMACKey); key != "" {
			opts = append(opts, mockapp.WithHMACKey([]byte(key)))
		}

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           mockapp.NewHandler(mockapp.New(def), opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Serving mock application %q on %s\n", def.Name, srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			fmt.Fprintf(cmd.OutOrStdout(), "\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("killing server: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Mock application stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mockCmd)
	mockCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
