package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/postbureau/dispatch/app/auth"
	"github.com/postbureau/dispatch/app/notify"
	"github.com/postbureau/dispatch/app/service"
	"github.com/postbureau/dispatch/app/store"
	"github.com/postbureau/dispatch/app/web"
)

var opts struct {
	Listen   string        `short:"l" long:"listen" env:"DISPATCH_LISTEN" default:":8080" description:"listen address"`
	DBFile   string        `short:"f" long:"db" env:"DISPATCH_DB" default:"dispatch.db" description:"sqlite database file"`
	SeedFile string        `long:"seed" env:"DISPATCH_SEED" description:"seed data file, built-in demo data if empty"`
	NoSeed   bool          `long:"no-seed" env:"DISPATCH_NO_SEED" description:"disable seeding of an empty database"`
	AuthTTL  time.Duration `long:"auth-ttl" env:"DISPATCH_AUTH_TTL" default:"24h" description:"session lifetime"`
	Dbg      bool          `long:"dbg" env:"DISPATCH_DEBUG" description:"debug mode"`

	Notify struct {
		SMTPHost     string        `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host"`
		SMTPPort     int           `long:"smtp-port" env:"SMTP_PORT" default:"25" description:"SMTP port"`
		SMTPUsername string        `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP user name"`
		SMTPPassword string        `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
		SMTPTLS      bool          `long:"smtp-tls" env:"SMTP_TLS" description:"enable SMTP TLS"`
		SMTPTimeOut  time.Duration `long:"smtp-timeout" env:"SMTP_TIMEOUT" default:"10s" description:"SMTP TCP connection timeout"`
		From         string        `long:"from" env:"FROM" description:"SMTP from email"`
		To           []string      `long:"to" env:"TO" description:"SMTP to email(s)" env-delim:","`
		Attempts     int           `long:"attempts" env:"ATTEMPTS" default:"3" description:"how many times to repeat failed send"`
		Duration     time.Duration `long:"duration" env:"DURATION" default:"1s" description:"initial retry delay"`
		Factor       float64       `long:"factor" env:"FACTOR" default:"3" description:"backoff factor"`
	} `group:"notify" namespace:"notify" env-namespace:"DISPATCH_NOTIFY"`

	Reminders struct {
		Enabled       bool   `long:"enabled" env:"ENABLED" description:"enable overdue job reminders"`
		Schedule      string `long:"schedule" env:"SCHEDULE" default:"0 8 * * *" description:"reminder cron schedule"`
		MaxConcurrent int    `long:"concurrent" env:"CONCURRENT" default:"4" description:"parallel notification sends"`
	} `group:"reminders" namespace:"reminders" env-namespace:"DISPATCH_REMINDERS"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"file" env:"FILE" default:"dispatch.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"maximum log size in megabytes"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"maximum log age in days"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"maximum number of old log files"`
		EnabledCompress bool   `long:"enabled-compress" env:"ENABLED_COMPRESS" description:"enable compression of old log files"`
	} `group:"log" namespace:"log" env-namespace:"DISPATCH_LOG"`
}

var revision = "unknown"

func main() {
	fmt.Printf("dispatch %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}

	logOpts := []log.Option{log.Out(setupLogs()), log.Msec}
	if opts.Dbg {
		logOpts = append(logOpts, log.Debug, log.CallerFunc, log.CallerPkg, log.CallerFile)
	}
	log.Setup(logOpts...)

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[ERROR] dispatch failed, %v", err)
		os.Exit(1)
	}
	log.Printf("[INFO] dispatch terminated")
}

func run(ctx context.Context) error {
	dataStore, err := store.New(opts.DBFile)
	if err != nil {
		return fmt.Errorf("failed to open store %s: %w", opts.DBFile, err)
	}
	defer dataStore.Close()

	if !opts.NoSeed {
		if err := seed(dataStore); err != nil {
			return err
		}
	}

	authService := auth.NewService(dataStore, opts.AuthTTL)
	notifier := makeNotifier()

	if opts.Reminders.Enabled {
		reminders := &service.Reminders{
			Jobs:          dataStore,
			Notifier:      notifier,
			Schedule:      opts.Reminders.Schedule,
			MaxConcurrent: opts.Reminders.MaxConcurrent,
		}
		go func() {
			if err := reminders.Do(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[WARN] reminders terminated, %v", err)
			}
		}()
	}

	srv, err := web.New(web.Config{
		Store:    dataStore,
		Auth:     authService,
		Notifier: notifier,
		Version:  revision,
		LoginTTL: opts.AuthTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}
	return srv.Run(ctx, opts.Listen)
}

func seed(dataStore *store.Store) error {
	seedData, err := store.DefaultSeed()
	if opts.SeedFile != "" {
		var data []byte
		if data, err = os.ReadFile(opts.SeedFile); err != nil {
			return fmt.Errorf("failed to read seed file %s: %w", opts.SeedFile, err)
		}
		seedData, err = store.LoadSeed(data)
	}
	if err != nil {
		return fmt.Errorf("failed to load seed data: %w", err)
	}

	applied, err := dataStore.SeedIfEmpty(seedData)
	if err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}
	if applied {
		log.Printf("[INFO] empty database seeded with %d clients, %d users, %d jobs",
			len(seedData.Clients), len(seedData.Users), len(seedData.Jobs))
	}
	return nil
}

func makeNotifier() *notify.Service {
	return notify.New(notify.Params{
		Host:          opts.Notify.SMTPHost,
		Port:          opts.Notify.SMTPPort,
		TLS:           opts.Notify.SMTPTLS,
		Username:      opts.Notify.SMTPUsername,
		Password:      opts.Notify.SMTPPassword,
		TimeOut:       opts.Notify.SMTPTimeOut,
		From:          opts.Notify.From,
		To:            opts.Notify.To,
		RetryAttempts: opts.Notify.Attempts,
		RetryDuration: opts.Notify.Duration,
		RetryFactor:   opts.Notify.Factor,
	})
}

func setupLogs() io.Writer {
	if !opts.Log.Enabled {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   opts.Log.Filename,
		MaxSize:    opts.Log.MaxSize,
		MaxBackups: opts.Log.MaxBackups,
		MaxAge:     opts.Log.MaxAge,
		Compress:   opts.Log.EnabledCompress,
	}
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
			cancel() // terminate on SIGTERM
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM)
}
