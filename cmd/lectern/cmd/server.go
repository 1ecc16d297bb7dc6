package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lectern/api"
	"github.com/jmcleod/lectern/auth"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		port    int
		host    string
		tlsCert string
		tlsKey  string
	)
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cached content over a local HTTP interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Serve.Port
			}

			srv := api.New(a.auth, a.content, a.guard,
				api.WithLogger(a.logger),
				api.WithRegistry(a.registry),
			)
			server := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", host, port),
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			cancelWatch := a.auth.Subscribe(func(s auth.State) {
				a.logger.Info("session state changed", "state", s.String())
			})
			defer cancelWatch()

			// Graceful shutdown on SIGINT/SIGTERM.
			done := make(chan error, 1)
			go func() {
				var err error
				if tlsCert != "" && tlsKey != "" {
					err = server.ListenAndServeTLS(tlsCert, tlsKey)
				} else {
					err = server.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					done <- fmt.Errorf("server failed: %w", err)
					return
				}
				done <- nil
			}()

			// Content routes answer 503 until the stored session is restored.
			go a.auth.Initialize(context.WithoutCancel(cmd.Context()))

			printBanner(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s (data: %s)...\n", a.cfg.API.BaseURL, server.Addr, a.cfg.Storage.Path)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			select {
			case sig := <-quit:
				fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(ctx); err != nil {
					return fmt.Errorf("server shutdown failed: %w", err)
				}
				return nil
			case err := <-done:
				return err
			}
		},
	}
	c.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default serve.port)")
	c.Flags().StringVar(&host, "host", "127.0.0.1", "Interface to bind")
	c.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	c.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	return c
}
