// Command booking is a terminal front-end for the smart booking backend.
//
// Usage:
//
//	booking [-env FILE] [-metrics] [-v] <command> [flags] [args]
//
// Configuration comes from BOOKING_* environment variables and an optional
// .env file. See pkg/config for the full list.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/smart-booking-client/pkg/cache"
	"github.com/Sternrassler/smart-booking-client/pkg/client"
	"github.com/Sternrassler/smart-booking-client/pkg/config"
	"github.com/Sternrassler/smart-booking-client/pkg/logging"
	"github.com/Sternrassler/smart-booking-client/pkg/metrics"
	"github.com/Sternrassler/smart-booking-client/pkg/resources"
	"github.com/Sternrassler/smart-booking-client/pkg/session"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

// command is one subcommand. run receives the arguments after the command name.
type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"health":       {"check that the backend is reachable", cmdHealth},
	"services":     {"list the service catalog", cmdServices},
	"slots":        {"show available time slots for a date", cmdSlots},
	"appointments": {"list your appointments", cmdAppointments},
	"show":         {"show one appointment", cmdShow},
	"cancel":       {"cancel an appointment", cmdCancel},
	"reschedule":   {"move an appointment to another date or time", cmdReschedule},
	"book":         {"book an appointment interactively", cmdBook},
	"login":        {"log in and store the session token", cmdLogin},
	"register":     {"create an account and log in", cmdRegister},
	"logout":       {"end the session", cmdLogout},
	"profile":      {"show or update your profile", cmdProfile},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("booking", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", ".env", "env file to read before the environment")
	dumpMetrics := fs.Bool("metrics", false, "print booking metrics to stderr on exit")
	verbose := fs.Bool("v", false, "log at debug level")
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitError
	}
	logCfg := logging.Config{Level: logging.LogLevel(cfg.LogLevel), Pretty: cfg.LogPretty, Output: stderr}
	if *verbose {
		logCfg.Level = logging.LevelDebug
	}
	logging.Setup(logCfg)
	logger := logging.NewLogger("cli")

	a, err := newApp(ctx, cfg, stdin, stdout)
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	defer a.Close()

	err = cmd.run(ctx, a, fs.Args()[1:])

	if *dumpMetrics {
		a.res.Cache().Wait()
		if merr := metrics.WriteText(stderr, metrics.Gatherer, "booking_"); merr != nil {
			logger.Warn().Err(merr).Msg("Failed to write metrics")
		}
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return exitUsage
	default:
		logger.Debug().Err(err).Str("command", name).Msg("Command failed")
		fmt.Fprintf(stderr, "error: %s\n", client.UserMessage(err, ""))
		return exitError
	}
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "Usage: booking [flags] <command> [args]")
	fmt.Fprintln(out, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-13s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(out, "\nFlags:")
	fs.PrintDefaults()
}

// app holds the wired dependencies of one invocation.
type app struct {
	cfg    *config.Config
	sess   *session.Session
	api    *client.Client
	res    *resources.Client
	redis  *redis.Client
	in     *bufio.Reader
	out    io.Writer
	logger zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		in:     bufio.NewReader(in),
		out:    out,
		logger: logging.NewLogger("cli"),
	}

	var (
		tokens     session.Store
		cacheStore cache.Store
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse BOOKING_REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.logger.Debug().Str("addr", opts.Addr).Msg("Connected to Redis")
		tokens = session.NewRedisStore(a.redis, session.DefaultRedisKey)
		cacheStore = cache.NewRedisStore(a.redis)
	} else {
		path := cfg.TokenFile
		if path == "" {
			var err error
			if path, err = session.DefaultTokenPath(); err != nil {
				return nil, err
			}
		}
		tokens = session.NewFileStore(path)
	}

	sess, err := session.Open(ctx, tokens, logging.NewLogger("session"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sess = sess

	clientCfg := client.DefaultConfig(cfg.APIURL, sess)
	clientCfg.Timeout = cfg.Timeout
	clientCfg.RateLimit = cfg.RateLimit
	clientCfg.Tracing = cfg.Tracing
	api, err := client.New(clientCfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.api = api

	a.res = resources.New(api, resources.NewCache(cacheStore, logging.NewLogger("cache")), logging.NewLogger("resources"))
	a.res.Bind(sess)
	return a, nil
}

// Close waits for background cache work and releases Redis.
func (a *app) Close() {
	if a.res != nil {
		a.res.Cache().Wait()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// prompt prints label and reads one trimmed line. io.EOF is returned only
// when the input ended before any text.
func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// requireLogin fails early when no token is held. An expired token is still
// sent; the backend's 401 is what ends the session.
func (a *app) requireLogin() error {
	if a.sess.Token() == "" {
		return errors.New("not logged in, run 'booking login' first")
	}
	return nil
}
