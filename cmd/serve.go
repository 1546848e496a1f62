package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/webgen/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the gallery, preview and editor server",
	Long: `Start the host server: the template gallery, device previews, the live
editor and published sites under /site/<slug>.

With the local backend the template catalog directory is watched and open
gallery pages reload when a template changes.

Examples:
  webgen serve                     # localhost:8080
  webgen serve -p 3000 --open      # other port, open a browser
  WEBGEN_STORAGE_BACKEND=remote webgen serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("open", false, "Open a browser once the server is up")
	serveCmd.Flags().String("templates", "templates", "Template catalog directory")

	bindFlags(serveCmd.Flags(), map[string]string{
		"port":      "server.port",
		"host":      "server.host",
		"open":      "server.open",
		"templates": "catalog.dir",
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := server.Options{
		Config:      rt.cfg,
		Backend:     rt.backend,
		Preferences: rt.state,
		Logger:      rt.logger,
	}
	if rt.catalog != nil {
		opts.Catalog = rt.catalog
		if rt.cfg.Catalog.Watch {
			fw, err := rt.catalog.Watch(ctx, rt.cfg.Catalog.Debounce)
			if err != nil {
				rt.logger.Warn(ctx, err, "Template catalog will not reload on change")
			} else {
				defer fw.Stop()
			}
		}
	}

	srv, err := server.New(opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Starting webgen at http://%s\n", rt.cfg.Server.Addr())
	if err := srv.Start(ctx); err != nil {
		return err
	}
	return nil
}

// commandContext returns the command's context, or a background one when
// the command runs outside Execute, as in tests.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
