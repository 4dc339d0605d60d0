package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joeycumines/btdsl/internal/config"
	"github.com/joeycumines/btdsl/internal/control"
)

const shutdownTimeout = 5 * time.Second

// ServeCommand runs the HTTP control plane.
type ServeCommand struct {
	*BaseCommand
	config      *config.Config
	addr        string
	treesDir    string
	snapshotDir string
	endpoint    string
	logFlags    logFlags
}

// NewServeCommand creates a new serve command.
func NewServeCommand(cfg *config.Config) *ServeCommand {
	return &ServeCommand{
		BaseCommand: NewBaseCommand(
			"serve",
			"Run the HTTP control plane for live trees",
			"serve [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the serve command.
func (c *ServeCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.addr, "addr", "", "Listen address (default from config server.addr)")
	fs.StringVar(&c.treesDir, "trees", "", "Directory of <action>.tree files (default from config trees.dir)")
	fs.StringVar(&c.snapshotDir, "snapshots", "", "Save live tree snapshots to this directory (default from config snapshot.dir)")
	fs.StringVar(&c.endpoint, "endpoint", "", "Base URL activations are POSTed to (default from config action.endpoint)")
	c.logFlags.register(fs)
}

// Execute serves until interrupted.
func (c *ServeCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}
	logger, closer, err := c.logFlags.install(c.config, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	addr := orDefault(c.addr, config.DefaultSchema().Resolve(c.config, "serve", "server.addr"))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.serve(ctx, ln, logger, stdout)
}

// serve runs the server on ln until ctx is done, then shuts it down.
func (c *ServeCommand) serve(ctx context.Context, ln net.Listener, logger *slog.Logger, stdout io.Writer) error {
	schema := config.DefaultSchema()
	opts := control.Options{
		TreesDir:    orDefault(c.treesDir, schema.Resolve(c.config, "serve", "trees.dir")),
		SnapshotDir: orDefault(c.snapshotDir, schema.Resolve(c.config, "serve", "snapshot.dir")),
		Conditions:  c.config.Conditions,
		Logger:      logger,
	}
	if endpoint := orDefault(c.endpoint, schema.Resolve(c.config, "serve", "action.endpoint")); endpoint != "" {
		opts.Forwarder = control.NewHTTPForwarder(endpoint, schema.ResolveDuration(c.config, "serve", "action.timeout"))
	}
	manager, err := control.NewManager(opts)
	if err != nil {
		_ = ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:      control.NewHandler(manager),
		ReadTimeout:  schema.ResolveDuration(c.config, "serve", "read-timeout"),
		WriteTimeout: schema.ResolveDuration(c.config, "serve", "write-timeout"),
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	_, _ = fmt.Fprintf(stdout, "Serving trees from %s on http://%s\n", opts.TreesDir, ln.Addr())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
