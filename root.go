package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/k3an3/syncprojectsd/internal/config"
	"github.com/k3an3/syncprojectsd/internal/dispatcher"
	"github.com/k3an3/syncprojectsd/internal/external"
	"github.com/k3an3/syncprojectsd/internal/httpapi"
	"github.com/k3an3/syncprojectsd/internal/lockproto"
	"github.com/k3an3/syncprojectsd/internal/metadata"
	"github.com/k3an3/syncprojectsd/internal/objectstore"
	"github.com/k3an3/syncprojectsd/internal/reconcile"
	"github.com/k3an3/syncprojectsd/internal/state"
	"github.com/k3an3/syncprojectsd/internal/tui"
	"github.com/k3an3/syncprojectsd/internal/watcher"
	"github.com/k3an3/syncprojectsd/pkg/taskid"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd(). Exclusive with the
// teacher's subcommand tree, this daemon is a single binary whose mode is
// selected by flags (spec.md §6 "CLI surface").
var (
	flagConfigPath string
	flagSourceDir  string
	flagTUI        bool
	flagDebug      bool
	flagSync       bool
)

// errConfigFatal and errAuthFailure classify runDaemon's return value into
// the exit codes spec.md §6 names: 0 normal, -1 fatal configuration, 1
// authentication failure.
var (
	errConfigFatal = errors.New("fatal configuration error")
	errAuthFailure = errors.New("authentication failure")
)

// dawProcessNames holds the only DAW name the original client ever checked
// for (original_source/syncprojects.py: DAW_PROCESS_REGEX = r'cubase').
var dawProcessNames = []string{"cubase"}

// newRootCmd builds the single daemon command. There is no subcommand tree:
// --tui, --sync, and --debug select a run mode on top of the same wiring
// (spec.md §6).
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "syncprojectsd",
		Short:   "DAW project sync daemon",
		Long:    "syncprojectsd reconciles local DAW project directories against the syncprojects control API and object store.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runDaemon,
	}

	cmd.Flags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.Flags().StringVar(&flagSourceDir, "source", "", "override sync.source_dir")
	cmd.Flags().BoolVar(&flagTUI, "tui", false, "run the interactive console flow instead of the service loop")
	cmd.Flags().BoolVar(&flagDebug, "debug", false, "verbose logging; surface handler errors instead of only reporting them")
	cmd.Flags().BoolVar(&flagSync, "sync", false, "run a single full sync pass and exit")

	cmd.MarkFlagsMutuallyExclusive("tui", "sync")

	return cmd
}

// buildLogger returns an slog.Logger whose level is the config file's
// level, overridden by --debug (spec.md §6: "--debug verbose ...").
func buildLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn

	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}

	if flagDebug {
		lvl = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadResolvedConfig runs the four-layer override chain (defaults -> TOML
// -> env -> CLI flags) spec.md §6 specifies.
func loadResolvedConfig() (*config.Resolved, config.EnvOverrides, *slog.Logger, error) {
	bootstrap := buildLogger("")

	env := config.ReadEnvOverrides()
	cli := config.CLIOverrides{ConfigPath: flagConfigPath, SourceDir: flagSourceDir}

	path := config.ResolveConfigPath(env, cli)

	cfg, err := config.Load(path, bootstrap)
	if err != nil {
		return nil, env, nil, fmt.Errorf("%w: %v", errConfigFatal, err)
	}

	resolved, err := config.Resolve(cfg, env, cli)
	if err != nil {
		return nil, env, nil, fmt.Errorf("%w: %v", errConfigFatal, err)
	}

	return resolved, env, buildLogger(resolved.Logging.Level), nil
}

// checkAlreadyRunning probes the loopback /api/ping route (spec.md §4.7:
// "/ping ... is also used on startup to detect an already-running
// instance (collision -> open the web UI and exit)"). A reachable ping
// means a daemon already owns this port; the caller opens the companion
// web UI and exits 0 instead of racing the running instance for the PID
// file lock.
func checkAlreadyRunning(addr, companionOrigin string) bool {
	client := &http.Client{Timeout: 500 * time.Millisecond}

	resp, err := client.Get("http://" + addr + "/api/ping")
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	if companionOrigin != "" {
		if openErr := (external.OSFileOpener{}).Open(companionOrigin); openErr != nil {
			fmt.Fprintf(os.Stderr, "another instance is already running; open %s manually\n", companionOrigin)
		}
	}

	return true
}

// effectiveWorkerWidth applies THREADS_OFF=1 (spec.md §6) on top of the
// configured pool width.
func effectiveWorkerWidth(resolved *config.Resolved, env config.EnvOverrides) int {
	if env.ThreadsOff {
		return 1
	}

	return resolved.Sync.WorkerPoolWidth
}

// buildObjectStoreClients vends one client for the project bucket (server-
// authoritative credentials/bucket name) and one for the locally-configured
// audio bucket, sharing the same AWS credentials and region (spec.md §6
// "two buckets"; config.NetworkConfig.AudioBucketName). Under TEST=1 both
// are the no-op backend instead (spec.md §6 "TEST=1 substitutes the no-op
// random backend").
func buildObjectStoreClients(ctx context.Context, client *metadata.Client, audioBucket string, env config.EnvOverrides, logger *slog.Logger) (objectstore.Client, objectstore.Client, error) {
	if env.TestMode {
		return objectstore.NoopClient{Logger: logger}, objectstore.NoopClient{Logger: logger}, nil
	}

	creds, err := client.GetObjectStoreCredentials(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fetching object store credentials: %v", errConfigFatal, err)
	}

	awsCfg, err := objectstore.LoadAWSConfig(ctx, creds.Region, objectstore.Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: loading object store config: %v", errConfigFatal, err)
	}

	projectStore := objectstore.NewS3Client(awsCfg, creds.Bucket, logger)

	var audioStore objectstore.Client
	if audioBucket != "" {
		audioStore = objectstore.NewS3Client(awsCfg, audioBucket, logger)
	}

	return projectStore, audioStore, nil
}

// ensureAuthenticated forces one metadata round-trip so a missing/expired
// token triggers the client's built-in credential re-prompt before the
// daemon commits to a run mode (spec.md §7 "Auth ... retry budget 3, then
// exit 1").
func ensureAuthenticated(ctx context.Context, client *metadata.Client, logger *slog.Logger) error {
	const maxAttempts = 3

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if _, err := client.WhoAmI(ctx); err != nil {
			lastErr = err

			logger.Warn("authentication attempt failed", slog.Int("attempt", attempt), slog.Any("error", err))

			continue
		}

		return nil
	}

	return fmt.Errorf("%w: %v", errAuthFailure, lastErr)
}

// runDaemon is the single RunE for every flag combination: it builds every
// collaborator once, then branches into service, --sync, or --tui mode.
func runDaemon(cmd *cobra.Command, _ []string) error {
	resolved, env, logger, err := loadResolvedConfig()
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", resolved.Network.LocalPort)

	if checkAlreadyRunning(addr, resolved.Network.CompanionOrigin) {
		logger.Info("another instance is already running, exiting")

		return nil
	}

	store, err := state.NewStore(config.DefaultStatePath(), logger)
	if err != nil {
		return fmt.Errorf("%w: opening state store: %v", errConfigFatal, err)
	}
	defer store.Close()

	tokens := metadata.NewStateTokenStore(store)
	prompter := tui.New()

	metaClient := metadata.NewClient(resolved.Network.MetadataBaseURL, nil, tokens, prompter, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := ensureAuthenticated(ctx, metaClient, logger); err != nil {
		return err
	}

	projectStore, audioStore, err := buildObjectStoreClients(ctx, metaClient, resolved.Network.AudioBucketName, env, logger)
	if err != nil {
		return err
	}

	engine := &reconcile.Engine{
		Store:         store,
		ObjectStore:   projectStore,
		Metadata:      metaClient,
		Conflict:      prompter,
		Changelog:     prompter,
		ProjectGlob:   resolved.Sync.ProjectRootGlob,
		WorkerWidth:   effectiveWorkerWidth(resolved, env),
		NestedFolders: resolved.Sync.NestedFolders,
		Logger:        logger,
	}

	disp := dispatcher.New(64)
	disp.Metadata = metaClient
	disp.Engine = engine
	disp.Store = store
	disp.Crash = prompter
	disp.Opener = external.OSFileOpener{}
	disp.DAW = external.NewProcessNameDAWChecker(dawProcessNames)
	disp.HostTag = runtime.GOOS + "-" + runtime.GOARCH
	disp.Logger = logger
	disp.AmpWidth = engine.WorkerWidth
	disp.AmpDir = resolved.Sync.AmpPresetDir
	disp.SourceDir = resolved.Sync.SourceDir
	disp.CurrentVersion = version
	disp.LogPath = config.DefaultLogPath()
	disp.Settings = &resolved.Config

	// In debug mode handler errors are already surfaced verbosely via the
	// logger at Warn/Error level below; forwarding them to an external
	// reporter as well would just double-report the same failure a
	// developer is already watching (spec.md §4.6: "in non-debug mode,
	// forward to the error-reporting capability").
	if !flagDebug {
		disp.Reporter = external.SlogErrorReporter{Logger: logger}
	}

	shutdownCtx := shutdownContext(ctx, logger)

	switch {
	case flagSync:
		return runOneShotSync(shutdownCtx, disp, metaClient, logger)
	case flagTUI:
		return runTUI(shutdownCtx, disp, metaClient, prompter, logger)
	default:
		return runService(shutdownCtx, disp, metaClient, audioStore, store, resolved, logger)
	}
}

// runService is the default mode: PID file, dispatcher loop, local HTTP
// API, audio watcher, and a periodic update check, all torn down together
// on shutdownCtx cancellation (spec.md §5 "scheduling model").
func runService(ctx context.Context, disp *dispatcher.Dispatcher, metaClient *metadata.Client, audioStore objectstore.Client, store state.Store, resolved *config.Resolved, logger *slog.Logger) error {
	cleanup, err := writePIDFile(config.DefaultPIDPath())
	if err != nil {
		return fmt.Errorf("%w: %v", errConfigFatal, err)
	}
	defer cleanup()

	publicKey, err := httpapi.LoadPublicKey(resolved.Network.JWTPublicKeyPath)
	if err != nil {
		return fmt.Errorf("%w: loading JWT public key: %v", errConfigFatal, err)
	}

	authCheck := func(ctx context.Context) bool {
		tok, err := metadata.NewStateTokenStore(store).LoadToken(ctx)

		return err == nil && tok != nil && tok.AccessToken != ""
	}

	server := httpapi.NewServer(disp, publicKey, resolved.Network.CompanionOrigin, authCheck, logger)

	go disp.Run(ctx)

	go func() {
		addr := fmt.Sprintf(":%d", resolved.Network.LocalPort)
		if err := httpapi.RunServer(ctx, addr, server); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			logger.Error("local http endpoint stopped", slog.Any("error", err))
		}
	}()

	if audioStore != nil && resolved.Sync.AudioSyncDir != "" {
		w := watcher.New(resolved.Sync.AudioSyncDir, audioStore, metaClient, store, logger)
		go w.Run(ctx)
	} else {
		logger.Info("audio watcher disabled", slog.String("reason", "no audio bucket or directory configured"))
	}

	go runPeriodicUpdateCheck(ctx, disp, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	return nil
}

// updateCheckInterval mirrors spec.md §5's "a periodic update-checker
// thread (every 12 hours)".
const updateCheckInterval = 12 * time.Hour

// runPeriodicUpdateCheck enqueues an "update" task on the dispatcher on a
// fixed interval, reusing the same handler the local HTTP API's
// /api/update route triggers on demand.
func runPeriodicUpdateCheck(ctx context.Context, disp *dispatcher.Dispatcher, logger *slog.Logger) {
	ticker := time.NewTicker(updateCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := disp.Submit(ctx, taskid.Task{ID: taskid.New(), Kind: taskid.KindUpdate}); err != nil {
				logger.Warn("periodic update check: enqueue failed", slog.Any("error", err))
			}
		}
	}
}

// runOneShotSync drives a complete sync across every project visible to
// the authenticated user, reusing the dispatcher's own "sync" handler so
// --sync exercises exactly the same code path as the HTTP endpoint's
// /api/sync route (spec.md §6 "--sync run a single full sync pass and
// exit").
func runOneShotSync(ctx context.Context, disp *dispatcher.Dispatcher, metaClient *metadata.Client, logger *slog.Logger) error {
	projects, err := metaClient.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("dispatcher: list projects for one-shot sync: %w", err)
	}

	ids := make([]any, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, float64(p.ID))
	}

	return submitAndAwait(ctx, disp, taskid.Task{
		ID:   taskid.New(),
		Kind: taskid.KindSync,
		Data: map[string]any{"projects": ids},
	}, logger)
}

// submitAndAwait runs the dispatcher loop just long enough to process one
// task, then stops it — used by --sync and --tui, which have no HTTP
// client polling /api/results for them.
func submitAndAwait(ctx context.Context, disp *dispatcher.Dispatcher, task taskid.Task, logger *slog.Logger) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})

	go func() {
		disp.Run(runCtx)
		close(done)
	}()

	if err := disp.Submit(runCtx, task); err != nil {
		cancel()
		<-done

		return fmt.Errorf("dispatcher: submit task: %w", err)
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			<-done

			return runCtx.Err()
		case <-ticker.C:
			for _, ev := range disp.Drain() {
				if ev.TaskID != task.ID {
					continue
				}

				switch ev.Status {
				case taskid.StatusProgress:
					logger.Info("sync progress", slog.Any("outcome", ev.Completed))
				case taskid.StatusWarn:
					logger.Warn("sync warning", slog.Any("locked", ev.Locked))
				case taskid.StatusError:
					cancel()
					<-done

					return fmt.Errorf("dispatcher: task failed: %s", ev.Message)
				case taskid.StatusComplete:
					cancel()
					<-done

					return nil
				}
			}
		}
	}
}

// runTUI implements the --tui flow (SPEC_FULL.md §4 "TUI checkout-after-
// sync flow"): a DAW-running advisory, a full sync, then an optional
// per-project checkout loop that blocks on "[enter] to check in" before
// re-syncing and releasing.
func runTUI(ctx context.Context, disp *dispatcher.Dispatcher, metaClient *metadata.Client, prompter *tui.Prompter, logger *slog.Logger) error {
	if disp.DAW != nil {
		if running, err := disp.DAW.IsRunning(); err == nil && running {
			logger.Warn("a DAW appears to be running; close any open synced projects before proceeding to avoid corruption")
		}
	}

	if err := runOneShotSync(ctx, disp, metaClient, logger); err != nil {
		return err
	}

	projects, err := metaClient.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("dispatcher: list projects for tui checkout: %w", err)
	}

	for _, project := range projects {
		if !project.SyncEnabled {
			continue
		}

		checkout, err := prompter.Confirm(fmt.Sprintf("Check out %q for up to 8 hours?", project.Name))
		if err != nil {
			return fmt.Errorf("tui: checkout prompt for %q: %w", project.Name, err)
		}

		if !checkout {
			continue
		}

		if err := tuiCheckoutProject(ctx, disp, metaClient, prompter, project, logger); err != nil {
			logger.Error("tui checkout failed", slog.String("project", project.Name), slog.Any("error", err))
		}
	}

	return nil
}

func tuiCheckoutProject(ctx context.Context, disp *dispatcher.Dispatcher, metaClient *metadata.Client, prompter *tui.Prompter, project metadata.Project, logger *slog.Logger) error {
	target := metadata.LockTarget{ProjectID: project.ID}

	if _, err := lockproto.Acquire(ctx, metaClient, target, "tui checkout", disp.Crash); err != nil {
		return fmt.Errorf("tui: acquire checkout lock for %q: %w", project.Name, err)
	}

	if err := prompter.AwaitEnter(fmt.Sprintf("%q is checked out. Press [enter] when you're done to sync and check in.", project.Name)); err != nil {
		logger.Warn("tui: await check-in interrupted", slog.Any("error", err))
	}

	if err := runOneShotSync(ctx, disp, metaClient, logger); err != nil {
		logger.Error("tui: re-sync before check-in failed", slog.String("project", project.Name), slog.Any("error", err))
	}

	if err := lockproto.Release(ctx, metaClient, target); err != nil {
		return fmt.Errorf("tui: release checkout lock for %q: %w", project.Name, err)
	}

	return nil
}
