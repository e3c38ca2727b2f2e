// Package main provides the CLI entry point for Tycode, an interactive
// coding assistant that drives provider inference, a sandboxed tool
// pipeline, and durable session/memory state from a single terminal
// session or a one-shot CI invocation.
//
// Grounded on the teacher's cmd/nexus/main.go: a cobra root command with
// persistent flags, a JSON slog logger configured once in main, and
// subcommands built by small buildXCmd helpers that return *cobra.Command.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tycode-ai/tycode/internal/agentstack"
	"github.com/tycode-ai/tycode/internal/chatactor"
	"github.com/tycode-ai/tycode/internal/config"
	"github.com/tycode-ai/tycode/internal/events"
	"github.com/tycode-ai/tycode/internal/mcpclient"
	"github.com/tycode-ai/tycode/internal/mcpconf"
	"github.com/tycode-ai/tycode/internal/memory"
	"github.com/tycode-ai/tycode/internal/modules"
	"github.com/tycode-ai/tycode/internal/obs"
	"github.com/tycode-ai/tycode/internal/providers"
	"github.com/tycode-ai/tycode/internal/providers/anthropic"
	"github.com/tycode-ai/tycode/internal/providers/bedrock"
	"github.com/tycode-ai/tycode/internal/providers/openai"
	"github.com/tycode-ai/tycode/internal/scheduler"
	"github.com/tycode-ai/tycode/internal/sessions"
	"github.com/tycode-ai/tycode/internal/tool"
	"github.com/tycode-ai/tycode/internal/tools"
	"github.com/tycode-ai/tycode/internal/vfs"
	"github.com/tycode-ai/tycode/pkg/chatmodel"
)

// Build information, populated by ldflags during release builds.
//
//	go build -ldflags "-X main.version=v0.1.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	workspaceFlag   string
	profileFlag     string
	debugFlag       bool
	metricsAddrFlag string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tycode",
		Short:        "Tycode — an interactive coding assistant",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", ".", "Workspace root directory")
	root.PersistentFlags().StringVar(&profileFlag, "profile", "", "Settings profile name (default profile if empty)")
	root.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&metricsAddrFlag, "metrics-addr", ":9090", "Prometheus /metrics and /healthz listen address; empty disables it")

	root.AddCommand(buildChatCmd())
	root.AddCommand(buildRunCmd())
	root.AddCommand(buildReviewCmd())

	return root
}

func buildChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
	}
}

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [task]",
		Short: "Run a single task to completion and print the result (CI/batch mode)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(cmd.Context(), strings.Join(args, " "))
		},
	}
}

func buildReviewCmd() *cobra.Command {
	var deep bool
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Run the review sub-agent over the current workspace changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd.Context(), deep)
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "Review each diff hunk separately, then consolidate the reports")
	return cmd
}

func configureLogging() *slog.Logger {
	level := slog.LevelInfo
	if debugFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// buildDeps wires every collaborator a Chat Actor needs: config/profile,
// provider selection with retry, metrics, vfs, sessions, memory, MCP
// clients, and every built-in module. Returns the Deps, the constructed
// agent catalog, and a cleanup func the caller must defer.
func buildDeps(ctx context.Context, logger *slog.Logger) (chatactor.Deps, *agentstack.Catalog, func(), error) {
	workspaceRoot, err := filepath.Abs(workspaceFlag)
	if err != nil {
		return chatactor.Deps{}, nil, nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	tycodeDir := filepath.Join(workspaceRoot, ".tycode")

	profiles, err := config.NewProfileManager(tycodeDir)
	if err != nil {
		return chatactor.Deps{}, nil, nil, fmt.Errorf("loading settings profile: %w", err)
	}
	if profileFlag != "" {
		if err := profiles.Switch(profileFlag); err != nil {
			return chatactor.Deps{}, nil, nil, fmt.Errorf("switching to profile %q: %w", profileFlag, err)
		}
	}
	settings := profiles.Active()

	manifest, err := mcpconf.LoadManifest(filepath.Join(tycodeDir, "mcp.yaml"))
	if err != nil {
		logger.Warn("failed to load MCP manifest", "error", err)
	}
	mcpServers := manifest.MergeInto(settings.MCPServers)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	sink := events.NewSink(2000)

	provider, err := buildProvider(ctx, settings, sink)
	if err != nil {
		cleanup()
		return chatactor.Deps{}, nil, nil, err
	}

	metrics := setupMetrics(logger)

	resolver, err := vfs.NewResolver([]string{workspaceRoot})
	if err != nil {
		cleanup()
		return chatactor.Deps{}, nil, nil, fmt.Errorf("building vfs resolver: %w", err)
	}
	ignore, err := vfs.NewIgnoreRules(workspaceRoot)
	if err != nil {
		cleanup()
		return chatactor.Deps{}, nil, nil, fmt.Errorf("loading ignore rules: %w", err)
	}
	cleanups = append(cleanups, func() { _ = ignore.Close() })
	tracked := vfs.NewTrackedFiles(resolver)

	sessionStore := sessions.NewStore(filepath.Join(tycodeDir, "sessions"))
	memLog := memory.NewLog(filepath.Join(tycodeDir, "memory.jsonl"))
	compactionStore := memory.NewCompactionStore(tycodeDir)
	lastCmd := &tools.LastCommandStore{}

	mcpManager := mcpclient.NewManager()
	if len(mcpServers) > 0 {
		for _, err := range mcpManager.Connect(ctx, mcpServers) {
			logger.Warn("MCP server connection failed", "error", err)
		}
	}
	cleanups = append(cleanups, mcpManager.Close)
	mcpTools := map[string]tool.Tool{}
	for _, t := range mcpManager.Tools(ctx) {
		mcpTools[t.Name()] = t
	}

	skills := modules.NewSkillsModule([]string{workspaceRoot}, os.Getenv("HOME"), settings.Skills)
	steering := modules.NewSteeringDocuments([]string{workspaceRoot}, os.Getenv("HOME"), settings.CommunicationTone)
	taskList := modules.NewTaskListModule(sink, "")

	mods := []modules.Module{skills, steering, taskList}

	catalog := agentstack.DefaultCatalog()

	deps := chatactor.Deps{
		Catalog:       catalog,
		Provider:      provider,
		Modules:       mods,
		Sessions:      sessionStore,
		Sink:          sink,
		Profiles:      profiles,
		MemoryLog:     memLog,
		Compaction:    compactionStore,
		Resolver:      resolver,
		Ignore:        ignore,
		Tracked:       tracked,
		LastCmd:       lastCmd,
		WorkspaceRoot: workspaceRoot,
		Logger:        logger,
		Metrics:       metrics,
		MCPTools:      mcpTools,
	}

	return deps, catalog, cleanup, nil
}

func buildProvider(ctx context.Context, settings config.Settings, sink *events.Sink) (providers.Provider, error) {
	name := settings.ActiveProvider
	if name == "" {
		name = "anthropic"
	}
	pcfg := settings.Providers[name]

	var inner providers.Provider
	var err error
	switch name {
	case "anthropic":
		inner, err = anthropic.New(anthropic.Config{APIKey: pcfg.APIKey, BaseURL: pcfg.BaseURL})
	case "openai":
		inner, err = openai.New(openai.Config{APIKey: pcfg.APIKey, BaseURL: pcfg.BaseURL})
	case "bedrock":
		inner, err = bedrock.New(ctx, bedrock.Config{Region: pcfg.Region})
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("constructing %s provider: %w", name, err)
	}

	return providers.NewRetryingProvider(inner, providers.DefaultRetryConfig(), sink), nil
}

// setupMetrics builds the process-wide Metrics against the default
// registry and, unless disabled via --metrics-addr="", starts an HTTP
// server exposing /metrics and /healthz, matching the teacher's
// http_server.go mux layout.
func setupMetrics(logger *slog.Logger) *obs.Metrics {
	metrics := obs.NewMetrics(prometheus.DefaultRegisterer)

	if strings.TrimSpace(metricsAddrFlag) == "" {
		return metrics
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: metricsAddrFlag, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	return metrics
}

// buildDispatcher registers every built-in slash command plus every
// Module's contributed commands against one Dispatcher (spec §4.11).
// onQuit is invoked by /quit; the caller decides what "quit" means (e.g.
// breaking a REPL loop so deferred cleanup still runs, rather than an
// abrupt os.Exit).
func buildDispatcher(deps chatactor.Deps, actor *chatactor.Actor, onQuit func()) *modules.Dispatcher {
	dispatcher := modules.NewDispatcher()

	for _, m := range deps.Modules {
		dispatcher.RegisterModule(m)
	}

	dispatcher.Register(&modules.HelpCommand{Dispatcher: dispatcher})
	dispatcher.Register(&modules.ClearCommand{OnClear: actor.ClearConversation})
	dispatcher.Register(&modules.QuitCommand{OnQuit: onQuit})
	dispatcher.Register(&modules.SessionsCommand{Store: deps.Sessions, Resume: actor.ResumeSession})
	dispatcher.Register(&modules.AgentCommand{OnSwitch: actor.SwitchAgent})
	dispatcher.Register(&modules.ProfileCommand{Ops: deps.Profiles})
	dispatcher.Register(&modules.SettingsCommand{Ops: deps.Profiles})
	dispatcher.Register(&modules.MCPCommand{Ops: deps.Profiles})
	dispatcher.Register(&modules.ReviewCommand{Run: actor.Review})
	dispatcher.Register(&modules.MemorySlashCommand{Log: deps.MemoryLog, Store: deps.Compaction, Summarizer: actor.Summarizer()})

	return dispatcher
}

// runChat drives an interactive terminal session: read a line, dispatch it
// as a slash command or an ordinary turn, print whatever the actor's Sink
// emits, repeat until EOF or /quit.
func runChat(ctx context.Context) error {
	logger := configureLogging()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, _, cleanup, err := buildDeps(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	actor, err := chatactor.New(deps)
	if err != nil {
		return fmt.Errorf("starting chat actor: %w", err)
	}
	defer actor.Close()

	if sched, err := scheduler.NewCompactionScheduler("@every 30m", logger, deps.MemoryLog, deps.Compaction, actor.Summarizer(), deps.Metrics); err != nil {
		logger.Warn("compaction scheduler disabled", "error", err)
	} else {
		sched.Start()
		defer sched.Stop()
	}

	quitting := false
	dispatcher := buildDispatcher(deps, actor, func() { quitting = true })

	go printEvents(ctx, deps.Sink)

	fmt.Printf("tycode %s — workspace %s\n", version, deps.WorkspaceRoot)
	fmt.Println(`Type a message, or "/help" for available commands. Ctrl-D to exit.`)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for !quitting {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		handled, messages, err := dispatcher.Dispatch(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if handled {
			for _, m := range messages {
				fmt.Println(m.TextOnly())
			}
			continue
		}

		actor.SendMessage(ctx, line)
	}

	return scanner.Err()
}

// printEvents renders a live subscription to the Sink as plain text on
// stdout, the minimal terminal UI spec §4.10's event stream needs.
func printEvents(ctx context.Context, sink *events.Sink) {
	ch := sink.Subscribe(64)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Replay {
				continue
			}
			switch ev.Kind {
			case events.KindMessageAdded:
				if m, ok := ev.Payload.(chatmodel.Message); ok && m.Role == chatmodel.RoleAssistant {
					if text := m.TextOnly(); text != "" {
						fmt.Printf("\nassistant: %s\n", text)
					}
				}
			case events.KindToolRequest:
				if p, ok := ev.Payload.(events.ToolRequestPayload); ok {
					fmt.Printf("  [tool] %s\n", p.Summary)
				}
			case events.KindToolExecutionCompleted:
				if p, ok := ev.Payload.(events.ToolExecutionCompletedPayload); ok && !p.Success {
					fmt.Printf("  [tool error] %s\n", p.Error)
				}
			case events.KindError:
				if p, ok := ev.Payload.(events.ErrorPayload); ok {
					fmt.Printf("\nerror: %s\n", p.Message)
				}
			}
		}
	}
}

// runOneShot drives chatactor.RunOnce for CI/batch use: one task in, one
// reply printed to stdout, non-zero exit on failure.
func runOneShot(ctx context.Context, task string) error {
	logger := configureLogging()

	deps, _, cleanup, err := buildDeps(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := chatactor.RunOnce(ctx, deps, task)
	if err != nil {
		return fmt.Errorf("one-shot run failed: %w", err)
	}

	fmt.Println(result)
	return nil
}

// runReview starts a throwaway actor solely to drive its already-built
// review.Runner, matching the `/review` slash command's behavior without
// requiring an interactive session.
func runReview(ctx context.Context, deep bool) error {
	logger := configureLogging()

	deps, _, cleanup, err := buildDeps(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	actor, err := chatactor.New(deps)
	if err != nil {
		return fmt.Errorf("starting actor for review: %w", err)
	}
	defer actor.Close()

	reviewCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	result, err := actor.Review(reviewCtx, deep)
	if err != nil {
		return fmt.Errorf("review failed: %w", err)
	}

	fmt.Println(result)
	return nil
}
