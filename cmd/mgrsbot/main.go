// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"go.gridlink.dev/tools/cmd/mgrsbot/internal/bot"
	"go.gridlink.dev/tools/cmd/mgrsbot/internal/telegram"
	"go.gridlink.dev/tools/internal/cli"
	"go.gridlink.dev/tools/internal/cli/envflag"
	"go.gridlink.dev/tools/internal/dispatch"
	"go.gridlink.dev/tools/internal/httplogger"
	"go.gridlink.dev/tools/internal/logger"
	"go.gridlink.dev/tools/internal/session"
	"go.gridlink.dev/tools/internal/shortlink"
	"go.gridlink.dev/tools/internal/store"
	"go.gridlink.dev/tools/internal/systemd"
	"go.gridlink.dev/tools/internal/web"
)

func main() { cli.Main(new(engine)) }

type engine struct {
	// configuration, read-only after initialization
	addr           *string
	apiURL         *string
	host           *string
	lang           *string
	messagesPath   *string
	pollTimeout    *time.Duration
	resolveRate    *float64
	resolveTimeout *time.Duration
	sessionTTL     *time.Duration
	shorteners     *string
	storeSpec      *string
	verbose        *bool
	webhook        *bool
	workers        *int

	getenv     func(string) string
	dotenvErr  error
	tgToken    string
	tgSecret   string
	debugToken string

	// initialized by init
	bot        *bot.Bot
	dispatcher *dispatch.Dispatcher[telegram.Update]
	level      slog.LevelVar
	logStream  logger.Streamer
	logger     *slog.Logger
	mux        *http.ServeMux
	scrubber   *strings.Replacer
	store      store.Store
	tg         *telegram.Client
	me         atomic.Pointer[telegram.User]
	pollErr    atomic.Pointer[error]

	// for tests
	httpc   *http.Client
	noServe bool
	ready   func(addr string)
}

const (
	defaultPollTimeout = 30 * time.Second
	logLineLimit       = 300
	webhookPath        = "/telegram"
)

var allowedUpdates = []string{"message", "callback_query"}

func (e *engine) EnvFlags(fs *flag.FlagSet, getenv func(string) string) {
	e.getenv = e.dotenv(getenv)
	getenv = e.getenv

	e.storeSpec = envflag.Value("store", "SESSION_STORE", "mem", "Session `store`: mem, file:PATH, sqlite:PATH, postgres://... or redis://...", fs, getenv)
	e.sessionTTL = envflag.Value("session-ttl", "SESSION_TTL", store.DefaultTTL, "Forget sessions idle for this `duration`.", fs, getenv)
	e.lang = envflag.Value("lang", "BOT_LANG", bot.DefaultLang, "Message `language`: "+strings.Join(bot.Langs(), ", ")+".", fs, getenv)
	e.messagesPath = envflag.Value("messages", "BOT_MESSAGES", "", "YAML `file` overriding bot messages.", fs, getenv)
	e.shorteners = envflag.Value("shortener", "SHORTENER_DOMAINS", strings.Join(shortlink.DefaultDomains, ","), "Comma-separated short link `domains` to resolve.", fs, getenv)
	e.resolveTimeout = envflag.Value("resolve-timeout", "RESOLVE_TIMEOUT", shortlink.DefaultTimeout, "Give up resolving a short link after this `duration`.", fs, getenv)
	e.resolveRate = envflag.Value("resolve-rate", "RESOLVE_RATE", 10.0, "Resolve at most this many short links per second.", fs, getenv)
	e.workers = envflag.Value("workers", "WORKERS", dispatch.DefaultLimit, "Handle updates of at most `n` users at once.", fs, getenv)
	e.webhook = envflag.Value("webhook", "WEBHOOK", false, "Receive updates with a webhook instead of long polling.", fs, getenv)
	e.host = envflag.Value("host", "HOST", "", "Public `host` of the webhook.", fs, getenv)
	e.addr = envflag.Value("addr", "ADDR", "", "Listen on `host:port`. Defaults to localhost:3000 with -webhook.", fs, getenv)
	e.pollTimeout = envflag.Value("poll-timeout", "POLL_TIMEOUT", defaultPollTimeout, "Long polling `timeout`.", fs, getenv)
	e.apiURL = envflag.Value("api-url", "TG_API_URL", telegram.DefaultAPIURL, "Telegram Bot API `URL`.", fs, getenv)
	e.verbose = envflag.Value("v", "VERBOSE", false, "Log debug messages.", fs, getenv)
}

// dotenv returns getenv falling back to the variables of the dotenv file.
func (e *engine) dotenv(getenv func(string) string) func(string) string {
	vars, err := godotenv.Read(cmp.Or(getenv("DOTENV"), ".env"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			e.dotenvErr = err
		}
		return getenv
	}
	return func(key string) string {
		return cmp.Or(getenv(key), vars[key])
	}
}

func (e *engine) Run(ctx context.Context) error {
	env := cli.GetEnv(ctx)
	if e.dotenvErr != nil {
		return fmt.Errorf("loading dotenv file: %w", e.dotenvErr)
	}
	getenv := e.getenv
	if getenv == nil {
		getenv = env.Getenv
	}

	// Load configuration from environment variables.
	e.tgToken = cmp.Or(e.tgToken, getenv("TG_TOKEN"), getenv("TOKEN"))
	e.tgSecret = cmp.Or(e.tgSecret, getenv("TG_SECRET"))
	e.debugToken = cmp.Or(e.debugToken, getenv("DEBUG_TOKEN"))

	if e.tgToken == "" {
		return fmt.Errorf("%w: TG_TOKEN is not set", cli.ErrInvalidArgs)
	}
	if *e.webhook && *e.host == "" {
		return fmt.Errorf("%w: -webhook requires -host or HOST", cli.ErrInvalidArgs)
	}
	if *e.webhook && e.tgSecret == "" {
		e.tgSecret = rand.Text()
	}

	if err := e.init(ctx, env); err != nil {
		return err
	}
	defer e.close()

	// Used in tests.
	if e.noServe {
		return nil
	}
	return e.serve(ctx, env)
}

func (e *engine) init(ctx context.Context, env *cli.Env) error {
	var scrubPairs []string
	for _, val := range []string{e.tgToken, e.tgSecret, e.debugToken} {
		if val != "" {
			scrubPairs = append(scrubPairs, val, "[EXPUNGED]")
		}
	}
	e.scrubber = strings.NewReplacer(scrubPairs...)

	if *e.verbose {
		e.level.Set(slog.LevelDebug)
	}
	e.logStream = logger.NewStreamer(logLineLimit)
	e.logger = logger.New(logger.Options{
		Out:      env.Stderr,
		Streamer: e.logStream,
		Level:    &e.level,
		Scrubber: e.scrubber,
	})

	httpc := cmp.Or(e.httpc, &http.Client{})
	httpc = &http.Client{
		Transport: httplogger.New(httpc.Transport, e.logger),
		// Long polling requests wait up to pollTimeout for a response.
		Timeout: *e.pollTimeout + 10*time.Second,
	}

	msgs, err := bot.LoadMessages(*e.lang, *e.messagesPath)
	if err != nil {
		return err
	}

	e.store, err = store.Open(ctx, *e.storeSpec, *e.sessionTTL, store.WithLogger(e.logger))
	if err != nil {
		return fmt.Errorf("opening session store %s: %w", store.Redact(*e.storeSpec), err)
	}

	e.tg = telegram.New(telegram.Config{
		Token:      e.tgToken,
		APIURL:     *e.apiURL,
		HTTPClient: httpc,
		Scrubber:   e.scrubber,
		Logger:     e.logger,
	})
	e.bot = bot.New(bot.Config{
		API:      e.tg,
		Sessions: session.New(e.store),
		Resolver: &shortlink.Resolver{
			Domains:    splitList(*e.shorteners),
			HTTPClient: httpc,
			Timeout:    *e.resolveTimeout,
			Limiter:    rate.NewLimiter(rate.Limit(*e.resolveRate), max(1, int(*e.resolveRate))),
			Logger:     e.logger,
		},
		Messages: msgs,
		Logger:   e.logger,
	})
	// Updates already accepted are handled even after shutdown begins.
	e.dispatcher = dispatch.New(context.WithoutCancel(ctx), *e.workers, e.logger, e.bot.Handle)

	e.initRoutes()
	return nil
}

func (e *engine) close() {
	e.dispatcher.Close()
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing session store", "err", err)
	}
}

func (e *engine) initRoutes() {
	e.mux = http.NewServeMux()
	if *e.webhook {
		e.mux.HandleFunc("POST "+webhookPath, e.handleWebhook)
	}

	health := web.Health(e.mux)
	if !*e.webhook {
		health.RegisterFunc("polling", func() (string, bool) {
			if err := e.pollErr.Load(); err != nil && *err != nil {
				return (*err).Error(), false
			}
			return "ok", true
		})
	}

	dbg := web.Debugger(e.mux)
	dbg.KV("store", store.Redact(*e.storeSpec))
	dbg.KV("lang", *e.lang)
	dbg.KV("webhook", *e.webhook)
	dbg.KVFunc("username", func() any {
		if me := e.me.Load(); me != nil {
			return me.Username
		}
		return ""
	})
	dbg.KVFunc("active_users", func() any { return e.dispatcher.Active() })
	dbg.KVFunc("busy_workers", func() any { return e.dispatcher.Busy() })
	dbg.KVFunc("stats", func() any {
		s := e.bot.Stats()
		return map[string]int64{
			"updates":     s.Updates.Load(),
			"conversions": s.Conversions.Load(),
			"failures":    s.Failures.Load(),
		}
	})
	dbg.Handle("logs", "Logs", e.logStream)
}

func (e *engine) serve(ctx context.Context, env *cli.Env) error {
	if err := e.checkToken(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	addr := *e.addr
	if *e.webhook {
		addr = cmp.Or(addr, "localhost:3000")
	}
	if addr != "" {
		g.Go(func() error {
			return web.ListenAndServe(ctx, &web.ListenAndServeConfig{
				Addr:       addr,
				Mux:        e.mux,
				Logger:     e.logger,
				Debuggable: true,
				DebugAuth:  e.debugAuth,
				Ready:      e.ready,
			})
		})
	}

	if *e.webhook {
		g.Go(func() error {
			if err := e.setWebhook(ctx); err != nil {
				return err
			}
			e.logger.Info("receiving updates with webhook", "host", *e.host)
			e.notify(env, systemd.Ready)
			return nil
		})
	} else {
		g.Go(func() error {
			return e.poll(ctx, func() { e.notify(env, systemd.Ready) })
		})
	}

	g.Go(func() error {
		systemd.WatchdogLoop(ctx, env.Getenv, e.logger)
		return nil
	})

	err := g.Wait()
	e.notify(env, systemd.Stopping)
	return err
}

// checkToken verifies the token with getMe before any updates are requested.
func (e *engine) checkToken(ctx context.Context) error {
	me, err := e.tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("checking bot token: %w", err)
	}
	e.me.Store(&me)
	e.logger.Info("authorized", "username", me.Username, "id", me.ID)
	return nil
}

func (e *engine) notify(env *cli.Env, state systemd.State) {
	if err := systemd.Notify(env.Getenv, state); err != nil {
		e.logger.Warn("notifying systemd", "err", err)
	}
}

// debugAuth allows /debug/ requests carrying DEBUG_TOKEN. Without the token
// set, nobody is allowed.
func (e *engine) debugAuth(r *http.Request) bool {
	if e.debugToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(e.debugToken)) == 1
}

// dispatch queues u behind earlier updates of the same user.
func (e *engine) dispatch(ctx context.Context, u telegram.Update) {
	key, ok := bot.SessionKey(u)
	if !ok {
		e.logger.Debug("ignoring update", "update_id", u.UpdateID)
		return
	}
	if err := e.dispatcher.Dispatch(ctx, key, u); err != nil {
		e.logger.Warn("dropping update", "update_id", u.UpdateID, "err", err)
	}
}

func splitList(s string) []string {
	var list []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
