package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/fleet-tracker/internal/connection"
	"github.com/rickgao/fleet-tracker/internal/model"
	"github.com/rickgao/fleet-tracker/internal/store"
)

// TailOptions holds tail-specific flags.
type TailOptions struct {
	Count    int           // Exit after this many entity updates (0 = unlimited)
	Duration time.Duration // Exit after this long (0 = until interrupted)
}

// changeLine is the JSON form of one tailed change.
type changeLine struct {
	Kind      store.ChangeKind `json:"kind"`
	ID        string           `json:"id,omitempty"`
	Status    model.Status     `json:"status,omitempty"`
	Speed     string           `json:"speed,omitempty"`
	Lat       float64          `json:"lat,omitempty"`
	Lng       float64          `json:"lng,omitempty"`
	Heading   float64          `json:"heading,omitempty"`
	Connected bool             `json:"connected"`
	LastError string           `json:"lastError,omitempty"`
	Entities  int              `json:"entities"`
}

// NewTailCommand creates the tail command.
func NewTailCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TailOptions{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream store changes to stdout",
		Long: `Connect to the realtime server and print every entity store change as it
happens. Logs go to stderr so the output can be piped.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			st := store.New(cfg.StoreOptions(), logger.With("component", "store"))
			socket := connection.NewSocket(cfg.SocketConfig(), logger.With("component", "transport"))
			mgr := connection.NewManager(cfg.ManagerConfig(), socket, st, logger.With("component", "connection"))

			return runTail(cmd.Context(), mgr, st, cmd.OutOrStdout(), rootOpts.Format, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 0, "exit after N entity updates")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "exit after this long")

	return cmd
}

// runTail prints store changes until ctx is done, the count is reached or the
// duration elapses.
func runTail(ctx context.Context, mgr connection.Manager, st *store.Store, w io.Writer, format string, opts *TailOptions) error {
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	reached := make(chan struct{})
	var (
		mu       sync.Mutex
		upserts  int
		writeErr error
	)

	unsubscribe := st.Subscribe(func(state store.State, change store.Change) {
		mu.Lock()
		defer mu.Unlock()

		if err := printChange(w, format, state, change); err != nil && writeErr == nil {
			writeErr = err
		}
		if change.Kind != store.ChangeUpsert {
			return
		}
		upserts++
		if opts.Count > 0 && upserts == opts.Count {
			close(reached)
		}
	})
	defer unsubscribe()

	err := connection.WithSession(ctx, mgr, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		case <-reached:
			return nil
		}
	})

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		return err
	}
	return writeErr
}

func printChange(w io.Writer, format string, state store.State, change store.Change) error {
	line := changeLine{
		Kind:      change.Kind,
		ID:        change.ID,
		Connected: state.Connected,
		LastError: state.LastError,
		Entities:  state.Count(),
	}
	if snap, ok := state.Entities[change.ID]; ok && change.Kind == store.ChangeUpsert {
		line.Status = snap.Status
		line.Speed = model.FormatSpeed(snap.Speed)
		line.Lat = snap.Position.Lat
		line.Lng = snap.Position.Lng
		line.Heading = snap.Heading
	}

	if format == "json" {
		return json.NewEncoder(w).Encode(line)
	}

	var err error
	switch change.Kind {
	case store.ChangeUpsert:
		_, err = fmt.Fprintf(w, "[UPSERT] %s %s %s at %.5f,%.5f heading %.0f\n",
			line.ID, line.Status, line.Speed, line.Lat, line.Lng, line.Heading)
	case store.ChangeSelect:
		_, err = fmt.Fprintf(w, "[SELECT] %q\n", line.ID)
	case store.ChangeConnected:
		_, err = fmt.Fprintf(w, "[CONNECTED] %t entities=%d\n", line.Connected, line.Entities)
	case store.ChangeError:
		_, err = fmt.Fprintf(w, "[ERROR] %s\n", line.LastError)
	default:
		_, err = fmt.Fprintf(w, "[%s] %s\n", change.Kind, line.ID)
	}
	return err
}
