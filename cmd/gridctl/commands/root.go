// Package commands implements gridctl, a command line client that drives a
// grid against a remote grid backend.
package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/gridkit/internal/grid"
	"github.com/JonMunkholm/gridkit/internal/logging"
	"github.com/JonMunkholm/gridkit/internal/source"
)

var (
	baseURL  string
	apiKey   string
	timeout  time.Duration
	logLevel string

	remote *source.REST
)

// Execute runs gridctl with the process arguments.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if grid.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, grid.FormatUserError(err))
		}
		return err
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gridctl",
		Short:         "Browse and edit a remote data grid",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = os.Getenv("GRIDCTL_URL")
			}
			if baseURL == "" {
				return fmt.Errorf("no grid configured. use --url or GRIDCTL_URL")
			}
			logging.Setup(logging.Options{Level: logLevel, Output: os.Stderr})

			remote = source.NewREST(baseURL)
			remote.HTTP = &http.Client{
				Timeout:   timeout,
				Transport: &requestTagger{next: http.DefaultTransport, apiKey: apiKey},
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "url", "", "grid base URL (e.g. http://127.0.0.1:8080/api/grids/products)")
	root.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("GRIDCTL_API_KEY"), "API key sent with write requests")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "per-request timeout")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(rowsCmd(), schemaCmd(), editCmd(), deleteCmd())
	return root
}

// requestTagger stamps every request with a fresh request id, which the
// server's logs carry, and the API key when one is set.
type requestTagger struct {
	next   http.RoundTripper
	apiKey string
}

func (t *requestTagger) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Request-Id", uuid.NewString())
	if t.apiKey != "" {
		req.Header.Set("X-API-Key", t.apiKey)
	}
	return t.next.RoundTrip(req)
}

// loadSchema fetches the remote grid's columns.
func loadSchema(ctx context.Context) (*grid.Schema, error) {
	return grid.LoadSchema(ctx, remote)
}

// openGrid opens a grid over src with the given initial state. The first
// page is loaded before openGrid returns.
func openGrid(ctx context.Context, src grid.DataSource, schema *grid.Schema, initial grid.TableState) (*grid.Grid, error) {
	g, err := grid.New(ctx, grid.Config{
		Source:      src,
		Schema:      grid.StaticSchema(schema.Columns()),
		Transformer: grid.IdentityTransformer{},
		Initial:     initial,
	})
	if err != nil {
		return nil, err
	}
	g.Wait()
	if v := g.View(); v.Err != nil {
		g.Close()
		return nil, v.Err
	}
	return g, nil
}
