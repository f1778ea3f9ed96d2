package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/alienxp03/dbate/internal/config"
	"github.com/alienxp03/dbate/internal/core"
	"github.com/alienxp03/dbate/internal/engine"
	"github.com/alienxp03/dbate/internal/export"
	"github.com/alienxp03/dbate/internal/storage"
	"github.com/alienxp03/dbate/web/handlers"
)

var (
	dbPath    string
	cfgPath   string
	debug     bool
	appConfig *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dbate",
	Short: "Structured debates with a persistent argument log",
	Long: `dbate records structured debates: a motion, a threaded log of arguments,
and a lifecycle from AWAITING_OPPONENT through IN_PROGRESS to CLOSED.

Debates are stored in a local SQLite database and can be served over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		// Load config
		var err error
		if cfgPath != "" {
			appConfig, err = config.LoadFrom(cfgPath)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: ~/.dbate/db/debate.db)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.dbate/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(argueCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// openEngine opens the store and returns an engine on it. The caller must
// call the returned close function.
func openEngine(ctx context.Context) (*engine.Engine, func(), error) {
	path := dbPath
	if path == "" {
		path = appConfig.DBPath()
	}

	db, err := storage.Open(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	eng := engine.New(db, engine.Limits{
		PageSize:    appConfig.Defaults.PageSize,
		MaxPageSize: appConfig.Defaults.MaxPageSize,
		ThreadLimit: appConfig.Defaults.ThreadLimit,
	})
	return eng, func() { db.Close() }, nil
}

// withDebate opens the engine, resolves the id prefix in args[0] and runs fn.
func withDebate(cmd *cobra.Command, args []string, fn func(ctx context.Context, eng *engine.Engine, id string) error) error {
	ctx := cmd.Context()
	eng, closeFn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	id, err := eng.ResolveID(ctx, args[0])
	if err != nil {
		return err
	}
	return fn(ctx, eng, id)
}

// ============================================================================
// NEW COMMAND
// ============================================================================

var (
	motionFlag    string
	typeFlag      string
	roleFlag      string
	requestIDFlag string
)

var newCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Open a new debate",
	Long: `Open a new debate with its motion.

Examples:
  dbate new "Tabs vs spaces" -m "Resolved: tabs are better"
  dbate new "Four-day week" -m "Resolved: adopt a four-day week" --type policy`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeFn, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		view, err := eng.CreateDebate(cmd.Context(), engine.NewDebateRequest{
			Title:           strings.Join(args, " "),
			DebateType:      typeFlag,
			Motion:          motionFlag,
			Role:            roleFlag,
			ClientRequestID: requestIDFlag,
		})
		if err != nil {
			return err
		}

		fmt.Printf("\n🎭 Debate opened: %s\n", view.Debate.Title)
		fmt.Printf("   Type: %s | State: %s\n", view.Debate.DebateType, view.Debate.State)
		fmt.Printf("   Motion: %s\n", view.Motion.Content)
		fmt.Printf("   ID: %s\n\n", view.Debate.ID)
		return nil
	},
}

func init() {
	newCmd.Flags().StringVarP(&motionFlag, "motion", "m", "", "Opening motion (required)")
	newCmd.Flags().StringVarP(&typeFlag, "type", "t", "policy", "Debate type")
	newCmd.Flags().StringVarP(&roleFlag, "role", "r", core.RoleProposer, "Role of the motion's author")
	newCmd.Flags().StringVar(&requestIDFlag, "request-id", "", "Idempotency token for the motion")
	newCmd.MarkFlagRequired("motion")
}

// ============================================================================
// LIST COMMAND
// ============================================================================

var (
	listState  string
	listLimit  int
	listOffset int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List debates, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeFn, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		page, err := eng.ListDebates(cmd.Context(), engine.ListOptions{
			State:  core.DebateState(strings.ToUpper(listState)),
			Limit:  listLimit,
			Offset: listOffset,
		})
		if err != nil {
			return err
		}

		if len(page.Items) == 0 {
			fmt.Println("No debates found. Start one with: dbate new \"Title\" -m \"Resolved: ...\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tTYPE\tSTATE\tUPDATED")
		fmt.Fprintln(w, "──\t─────\t────\t─────\t───────")

		for _, d := range page.Items {
			title := truncate(d.Title, 40)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				core.ShortID(d.ID),
				title,
				d.DebateType,
				d.State,
				humanize.Time(d.UpdatedAt),
			)
		}
		w.Flush()

		fmt.Printf("\nShowing %d-%d of %s\n", page.Offset+1, page.Offset+len(page.Items), humanize.Comma(int64(page.Total)))
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listState, "state", "s", "", "Only debates in this state")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Page size (default from config)")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Number of debates to skip")
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// ============================================================================
// SHOW COMMAND
// ============================================================================

var (
	showLimit int
	showDesc  bool
)

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a debate with its thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDebate(cmd, args, func(ctx context.Context, eng *engine.Engine, id string) error {
			order := storage.Ascending
			if showDesc {
				order = storage.Descending
			}
			view, err := eng.GetDebate(ctx, id, engine.ThreadOptions{Limit: showLimit, Order: order})
			if err != nil {
				return err
			}

			d := view.Debate
			fmt.Printf("\n🎭 Debate: %s\n", d.Title)
			fmt.Printf("   ID: %s\n", d.ID)
			fmt.Printf("   Type: %s\n", d.DebateType)
			fmt.Printf("   State: %s\n", d.State)
			fmt.Printf("   Created: %s\n", d.CreatedAt.Format(time.RFC3339))
			fmt.Printf("   Updated: %s (%s)\n", d.UpdatedAt.Format(time.RFC3339), humanize.Time(d.UpdatedAt))
			fmt.Println()

			if view.Motion != nil {
				fmt.Println(strings.Repeat("═", 60))
				fmt.Printf("📜 MOTION (%s)\n", view.Motion.Role)
				fmt.Println(strings.Repeat("═", 60))
				fmt.Println(view.Motion.Content)
			}

			for _, arg := range view.Arguments {
				fmt.Printf("\n📢 #%d %s (%s)", arg.Seq, arg.Role, arg.Type)
				if arg.ParentID != "" {
					fmt.Printf(" ↳ %s", core.ShortID(arg.ParentID))
				}
				fmt.Printf("  %s\n", core.ShortID(arg.ID))
				fmt.Println(strings.Repeat("─", 40))
				fmt.Println(arg.Content)
			}
			return nil
		})
	},
}

func init() {
	showCmd.Flags().IntVarP(&showLimit, "limit", "n", 0, "Number of arguments to show (default from config)")
	showCmd.Flags().BoolVar(&showDesc, "desc", false, "Newest arguments first")
}

// ============================================================================
// ARGUE COMMAND
// ============================================================================

var (
	argType      string
	argRole      string
	argParent    string
	argRequestID string
	argNextState string
)

var argueCmd = &cobra.Command{
	Use:   "argue [id] [content]",
	Short: "Append an argument to a debate",
	Long: `Append an argument to a debate's log.

Examples:
  dbate argue 3f2a91c0 "Tabs let readers choose their width" --role PRO
  dbate argue 3f2a91c0 "Spaces render the same everywhere" --role CON --type REBUTTAL --parent 9c1e0b7d
  dbate argue 3f2a91c0 "PRO carries it" --role ARBITRATOR --type RULING --next-state CLOSED`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDebate(cmd, args, func(ctx context.Context, eng *engine.Engine, id string) error {
			res, err := eng.SubmitArgument(ctx, engine.SubmitRequest{
				DebateID:        id,
				ParentID:        argParent,
				Type:            strings.ToUpper(argType),
				Role:            argRole,
				Content:         strings.Join(args[1:], " "),
				ClientRequestID: argRequestID,
				NextState:       core.DebateState(strings.ToUpper(argNextState)),
			})
			if err != nil {
				return err
			}

			fmt.Printf("Appended #%d (%s) to %s [%s]\n", res.Argument.Seq, res.Argument.ID, core.ShortID(id), res.Debate.State)
			return nil
		})
	},
}

func init() {
	argueCmd.Flags().StringVarP(&argType, "type", "t", core.ArgumentTypeClaim, "Argument type")
	argueCmd.Flags().StringVarP(&argRole, "role", "r", "", "Author role (required)")
	argueCmd.Flags().StringVarP(&argParent, "parent", "p", "", "Id of the argument this one replies to")
	argueCmd.Flags().StringVar(&argRequestID, "request-id", "", "Idempotency token; a retry with the same token is not appended twice")
	argueCmd.Flags().StringVar(&argNextState, "next-state", "", "Move the debate to this state in the same step")
	argueCmd.MarkFlagRequired("role")
}

// ============================================================================
// POLL COMMAND
// ============================================================================

var (
	pollAfter    int64
	pollWatch    bool
	pollInterval time.Duration
)

var pollCmd = &cobra.Command{
	Use:   "poll [id]",
	Short: "Show the latest argument after a sequence number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDebate(cmd, args, func(ctx context.Context, eng *engine.Engine, id string) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			after := pollAfter
			for {
				latest, err := eng.Poll(ctx, id, after)
				if errors.Is(err, engine.ErrThreadReset) {
					fmt.Printf("Debate %s was reset, reading from the start\n", core.ShortID(id))
					after = 0
					continue
				}
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				if latest != nil {
					fmt.Printf("#%d %s (%s): %s\n", latest.Seq, latest.Role, latest.Type, latest.Content)
					after = latest.Seq
				} else if !pollWatch {
					fmt.Printf("No arguments after #%d\n", after)
				}

				if !pollWatch {
					return nil
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(pollInterval):
				}
			}
		})
	},
}

func init() {
	pollCmd.Flags().Int64Var(&pollAfter, "after", 0, "Sequence number already seen")
	pollCmd.Flags().BoolVarP(&pollWatch, "watch", "w", false, "Keep polling until interrupted")
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 2*time.Second, "Polling interval with --watch")
}

// ============================================================================
// STATE / RESET / DELETE COMMANDS
// ============================================================================

var stateCmd = &cobra.Command{
	Use:       "state [id] [state]",
	Short:     "Move a debate to another state",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(core.StateAwaitingOpponent), string(core.StateInProgress), string(core.StateClosed)},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDebate(cmd, args, func(ctx context.Context, eng *engine.Engine, id string) error {
			debate, err := eng.TransitionState(ctx, id, core.DebateState(strings.ToUpper(args[1])))
			if err != nil {
				return err
			}
			fmt.Printf("Debate %s is now %s\n", core.ShortID(debate.ID), debate.State)
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset [id]",
	Short: "Clear a debate's arguments and reopen it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDebate(cmd, args, func(ctx context.Context, eng *engine.Engine, id string) error {
			view, err := eng.ResetDebate(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("Reset debate %s (%s)\n", core.ShortID(view.Debate.ID), view.Debate.State)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a debate and all its arguments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDebate(cmd, args, func(ctx context.Context, eng *engine.Engine, id string) error {
			if err := eng.DeleteDebate(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Deleted debate: %s\n", id)
			return nil
		})
	},
}

// ============================================================================
// EXPORT COMMAND
// ============================================================================

var exportCmd = &cobra.Command{
	Use:   "export [id] [format]",
	Short: "Export debate to file",
	Long: `Export a debate to markdown, JSON, YAML or PDF.

Examples:
  dbate export abc123 markdown
  dbate export abc123 pdf
  dbate export abc123 yaml -o debate.yaml
  dbate export abc123 json -o -`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDebate(cmd, args, func(ctx context.Context, eng *engine.Engine, id string) error {
			format := export.Format(strings.ToLower(args[1]))
			exporter, err := export.GetExporter(format)
			if err != nil {
				return err
			}

			outputPath, _ := cmd.Flags().GetString("output")
			if outputPath == "-" {
				return eng.ExportDebate(ctx, id, format, os.Stdout)
			}
			if outputPath == "" {
				view, err := eng.GetDebate(ctx, id, engine.ThreadOptions{Limit: 1})
				if err != nil {
					return err
				}
				outputPath = export.GenerateFilename(view.Debate, exporter.FileExtension())
			}

			file, err := os.Create(outputPath)
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}
			defer file.Close()

			if err := eng.ExportDebate(ctx, id, format, file); err != nil {
				return fmt.Errorf("failed to export: %w", err)
			}

			fmt.Printf("Exported to: %s\n", outputPath)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output file path (- for stdout)")
}

// ============================================================================
// SCHEMA COMMAND
// ============================================================================

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show database location, schema version and debate counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeFn, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		info, err := eng.SystemInfo(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Database: %s\n", info.DBPath)
		fmt.Printf("Schema version: %d (latest %d)\n\n", info.SchemaVersion, info.LatestSchemaVersion)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STATE\tDEBATES")
		for _, state := range core.States() {
			fmt.Fprintf(w, "%s\t%s\n", state, humanize.Comma(int64(info.Debates[state])))
		}
		w.Flush()
		return nil
	},
}

// ============================================================================
// CONFIG COMMAND
// ============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		fmt.Printf("Config file: %s\n\n", path)

		fmt.Println("Current settings:")
		fmt.Printf("  Database: %s\n", appConfig.DBPath())
		fmt.Printf("  Server port: %d\n", appConfig.Server.Port)
		fmt.Printf("  Page size: %d (max %d)\n", appConfig.Defaults.PageSize, appConfig.Defaults.MaxPageSize)
		fmt.Printf("  Thread limit: %d\n", appConfig.Defaults.ThreadLimit)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create example config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if initPlain {
			if err := config.Default().SaveTo(path); err != nil {
				return err
			}
		} else {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GenerateExample()), 0644); err != nil {
				return err
			}
		}

		fmt.Printf("Created config at: %s\n", path)
		return nil
	},
}

var initPlain bool

func init() {
	configInitCmd.Flags().BoolVar(&initPlain, "plain", false, "Write the defaults without comments")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// ============================================================================
// SERVE COMMAND
// ============================================================================

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("port") && appConfig.Server.Port != 0 {
			servePort = appConfig.Server.Port
		}

		eng, closeFn, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		fmt.Printf("\n🌐 Starting dbate API on http://localhost:%d\n\n", servePort)
		fmt.Println("Available endpoints:")
		fmt.Printf("  GET  http://localhost:%d/api/debates          - List debates\n", servePort)
		fmt.Printf("  POST http://localhost:%d/api/debates          - Open a debate\n", servePort)
		fmt.Printf("  GET  http://localhost:%d/api/debates/{id}     - View a debate\n", servePort)
		fmt.Printf("  GET  http://localhost:%d/api/debates/{id}/stream - Follow a debate\n", servePort)
		fmt.Println("\nPress Ctrl+C to stop the server")

		return startWebServer(eng, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8182, "Server port")
}

func startWebServer(eng *engine.Engine, port int) error {
	h := handlers.New(eng)

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:    addr,
		Handler: h.Router(),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
