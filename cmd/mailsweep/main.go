package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mailsweep/internal/core/version"
	"mailsweep/internal/modkit"
	"mailsweep/internal/modkit/module"
	"mailsweep/internal/platform/config"
	"mailsweep/internal/platform/config/file"
	"mailsweep/internal/platform/logger"
	phttp "mailsweep/internal/platform/net/http"
	"mailsweep/internal/platform/store"
	"mailsweep/internal/platform/store/pg"
	dom "mailsweep/internal/services/verifier/domain"

	verifiermod "mailsweep/internal/services/verifier/module"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() { os.Exit(run()) }

// flagOverrides turns explicitly set flags into the top config layer
func flagOverrides(limit, concurrency int, table string) config.Map {
	m := config.Map{}
	if limit > 0 {
		m["CORE_VERIFIER_LIMIT_RECORDS"] = strconv.Itoa(limit)
	}
	if concurrency > 0 {
		m["CORE_VERIFIER_CONCURRENCY"] = strconv.Itoa(concurrency)
	}
	if t := strings.TrimSpace(table); t != "" {
		m["CORE_VERIFIER_TABLE"] = t
	}
	return m
}

// configPath prefers the flag over MAILSWEEP_CONFIG
func configPath(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv("MAILSWEEP_CONFIG")
}

func run() int {
	var (
		fConfig = flag.String("config", "", "YAML config overlay (default $MAILSWEEP_CONFIG)")
		fLimit  = flag.Int("limit", 0, "max candidates to load (0 = CORE_VERIFIER_LIMIT_RECORDS)")
		fConc   = flag.Int("concurrency", 0, "in-flight probe ceiling (0 = CORE_VERIFIER_CONCURRENCY)")
		fTable  = flag.String("table", "", "candidate table (default CORE_VERIFIER_TABLE)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: mailsweep [flags] [HOST]\n\nHOST replaces the host of SERVICE_PGSQL_DBURL\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger.Init(logger.FromEnv())
	boot := logger.Named("main")

	overlay, err := file.Load(configPath(*fConfig))
	if err != nil {
		boot.Error().Err(err).Msg("config overlay")
		return exitConfig
	}
	boot.Debug().Strs("keys", file.Keys(overlay)).Msg("config overlay loaded")
	root := config.New(flagOverrides(*fLimit, *fConc, *fTable), config.Env(), overlay)

	stCfg := store.ConfigFrom(root, "mailsweep")
	if host := flag.Arg(0); host != "" {
		if stCfg.PG.URL, err = pg.ReplaceHost(stCfg.PG.URL, host); err != nil {
			boot.Error().Err(err).Str("host", host).Msg("host override")
			return exitConfig
		}
	}

	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(logger.WithRun(context.Background(), runID, "verify"))
	defer cancel()
	log := *logger.C(ctx)
	log.Info().Str("version", version.Info().String()).Msg("starting")

	st, err := store.Open(ctx, stCfg, store.WithLogger(log))
	if err != nil {
		log.Error().Err(err).Msg("store open failed")
		return exitFailed
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()
	if err := st.Guard(ctx); err != nil {
		log.Error().Err(err).Msg("store not ready")
		return exitFailed
	}

	mod, err := verifiermod.New(modkit.Deps{
		Log:   log,
		Cfg:   root,
		PG:    st.PG,
		CH:    st.CH,
		RunID: runID,
	})
	if err != nil {
		log.Error().Err(err).Msg("invalid verifier options")
		return exitConfig
	}
	module.Register(mod.Name(), mod.Ports())
	log.Info().Strs("modules", module.Names()).Strs("backends", st.Backends()).Msg("modules registered")
	ports := module.MustPortsOf[verifiermod.Ports](mod)
	opts := mod.Options()

	stopSignals := watchSignals(ports.Runner, cancel, opts.HardStopGrace, log)
	defer stopSignals()

	g, gctx := errgroup.WithContext(ctx)
	statusCtx, stopStatus := context.WithCancel(gctx)
	defer stopStatus()
	if opts.StatusAddr != "" {
		srv := phttp.NewServer(opts.StatusAddr, phttp.WithCORS(opts.CORSOrigins))
		mod.MountRoutes(srv.Router())
		g.Go(func() error { return srv.Run(statusCtx) })
	}

	var rep dom.Report
	g.Go(func() error {
		defer stopStatus()
		var err error
		rep, err = ports.Runner.Run(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).
			Str("state", rep.State.String()).
			Int("saved", rep.Watermark).
			Int("enqueued", rep.Enqueued).
			Msg("run failed")
		return exitFailed
	}
	return exitOK
}

// watchSignals drains on the first SIGINT/SIGTERM. A second one keeps the drain going for grace,
// then cancels the run and exits
func watchSignals(r dom.RunnerPort, cancel context.CancelFunc, grace time.Duration, log logger.Logger) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	h := hardStop{runner: r, cancel: cancel, grace: grace, log: log, after: time.AfterFunc, exit: os.Exit}
	go h.watch(sigs, done)
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// hardStop is the signal policy; after and exit are seams for tests
type hardStop struct {
	runner dom.RunnerPort
	cancel context.CancelFunc
	grace  time.Duration
	log    logger.Logger
	after  func(time.Duration, func()) *time.Timer
	exit   func(int)
}

func (h hardStop) watch(sigs <-chan os.Signal, done <-chan struct{}) {
	var s os.Signal
	select {
	case s = <-sigs:
		h.log.Warn().Str("signal", s.String()).Msg("interrupt: draining in-flight work, send again to force")
		h.runner.Interrupt("signal " + s.String())
	case <-done:
		return
	}
	select {
	case s = <-sigs:
	case <-done:
		return
	}
	h.log.Error().Str("signal", s.String()).Dur("grace", h.grace).Msg("forced stop: flushing what is pending before exit")
	h.runner.Interrupt("signal " + s.String())
	t := h.after(h.grace, func() {
		h.cancel()
		h.exit(exitFailed)
	})
	<-done
	t.Stop()
}
