package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/joho/godotenv"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/jobportal/app/web"
	"github.com/umputun/jobportal/app/web/persistence"
)

const (
	defaultSecret        = "your_default_secret_key"
	defaultAdminUser     = "admin"
	defaultAdminPassword = "admin@12345" //nolint:gosec // well-known bootstrap password, warned about on start
)

type options struct {
	Listen         string        `short:"l" long:"listen" env:"LISTEN" default:":5000" description:"listen address"`
	DatabaseURL    string        `long:"database-url" env:"DATABASE_URL" description:"postgres connection string"`
	FallbackDB     string        `long:"fallback-db" env:"FALLBACK_DB" default:"jobportle.db" description:"sqlite file used if postgres is unavailable"`
	ConnectTimeout time.Duration `long:"connect-timeout" env:"CONNECT_TIMEOUT" default:"5s" description:"postgres connect timeout"`
	SecretKey      string        `long:"secret-key" env:"SECRET_KEY" default:"your_default_secret_key" description:"session signing key"`
	SessionTTL     time.Duration `long:"session-ttl" env:"SESSION_TTL" default:"24h" description:"session lifetime"`
	AdminPassword  string        `long:"admin-password" env:"ADMIN_PASSWORD" default:"admin@12345" description:"password of bootstrap admin user"`
	LoginRate      float64       `long:"login-rate" env:"LOGIN_RATE" default:"5" description:"login attempts per second per ip"`
	CORSOrigins    string        `long:"cors-origins" env:"CORS_ORIGINS" default:"*" description:"comma-separated origins allowed to call the api"`
	Dbg            bool          `long:"dbg" env:"DEBUG" description:"debug mode"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"file" env:"FILE" default:"jobportal.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log file size in MB"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of rotated files"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max age of rotated files in days"`
		EnabledCompress bool   `long:"compress" env:"COMPRESS" description:"compress rotated files"`
	} `group:"log" namespace:"log" env-namespace:"LOG"`
}

var opts options

var revision = "unknown"

func main() {
	fmt.Printf("jobportal %s\n", revision)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("failed to load .env: %v\n", err)
	}
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogs()

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT, SIGINT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	store, err := persistence.Open(ctx, persistence.Params{
		PrimaryDSN:     opts.DatabaseURL,
		FallbackPath:   opts.FallbackDB,
		ConnectTimeout: opts.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("[WARN] failed to close database: %v", err)
		}
	}()
	log.Printf("[INFO] using %s database", store.Dialect())

	created, err := store.Bootstrap(ctx, defaultAdminUser, opts.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to bootstrap database: %w", err)
	}
	if created {
		log.Printf("[INFO] admin user %q created", defaultAdminUser)
		if opts.AdminPassword == defaultAdminPassword {
			log.Printf("[WARN] admin user created with default password, change it in the admin console")
		}
	}
	if opts.SecretKey == defaultSecret {
		log.Printf("[WARN] default secret key is used for sessions, set --secret-key")
	}

	srv, err := web.New(web.Config{
		Store:         store,
		SessionSecret: opts.SecretKey,
		SessionTTL:    opts.SessionTTL,
		Version:       revision,
		LoginRate:     opts.LoginRate,
		CORSOrigins:   splitOrigins(opts.CORSOrigins),
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx, opts.Listen)
}

// splitOrigins parses comma-separated list of origins, empty elements dropped
func splitOrigins(s string) []string {
	res := []string{}
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			res = append(res, o)
		}
	}
	return res
}

// setupLogs configures lgr and returns the writer used for regular output
func setupLogs() io.Writer {
	var out io.Writer = os.Stdout
	if opts.Log.Enabled {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	logOpts := []log.Option{log.Msec, log.Out(out)}
	if opts.Dbg {
		logOpts = []log.Option{log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.Out(out)}
	}
	log.Setup(logOpts...)
	return out
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			log.Printf("[INFO] %s received, shutting down", sig)
			cancel()
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
}
