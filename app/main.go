package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/umputun/go-flags"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/jobtrack/app/backend"
	"github.com/umputun/jobtrack/app/digest"
	"github.com/umputun/jobtrack/app/notify"
	"github.com/umputun/jobtrack/app/tracker"
	"github.com/umputun/jobtrack/app/web"
	"github.com/umputun/jobtrack/app/web/enums"
)

type options struct {
	Backend struct {
		URL            string        `long:"url" env:"URL" default:"http://localhost:4000" description:"jobs REST service url"`
		Timeout        time.Duration `long:"timeout" env:"TIMEOUT" default:"5s" description:"backend request timeout"`
		CacheTTL       time.Duration `long:"cache-ttl" env:"CACHE_TTL" default:"0s" description:"jobs list cache ttl, 0 disables"`
		ValidationMode string        `long:"validation" env:"VALIDATION" choice:"relaxed" choice:"strict" default:"relaxed" description:"form validation mode"`
		Concurrency    int           `long:"concurrency" env:"CONCURRENCY" default:"4" description:"max parallel requests for bulk delete"`
	} `group:"backend" namespace:"backend" env-namespace:"JOBTRACK_BACKEND"`

	Repeater struct {
		Attempts int           `long:"attempts" env:"ATTEMPTS" default:"1" description:"how many times to try failed backend request"`
		Duration time.Duration `long:"duration" env:"DURATION" default:"200ms" description:"initial retry delay"`
		Factor   float64       `long:"factor" env:"FACTOR" default:"2" description:"backoff factor"`
		Jitter   bool          `long:"jitter" env:"JITTER" description:"jitter"`
	} `group:"repeater" namespace:"repeater" env-namespace:"JOBTRACK_REPEATER"`

	Web struct {
		Address      string        `long:"address" env:"ADDRESS" default:":8080" description:"web server listen address"`
		BaseURL      string        `long:"base-url" env:"BASE_URL" description:"base url path for reverse proxy, i.e. /jobs"`
		DBPath       string        `long:"db" env:"DB" default:"jobtrack.db" description:"activity journal sqlite file"`
		Password     string        `long:"password-hash" env:"PASSWORD_HASH" description:"bcrypt hash of web ui password, empty disables auth"`
		LoginTTL     time.Duration `long:"login-ttl" env:"LOGIN_TTL" default:"24h" description:"login session ttl"`
		HistoryLimit int           `long:"history" env:"HISTORY" default:"50" description:"max journal records per job"`
		Hostname     string        `long:"hostname" env:"HOSTNAME" description:"host name shown in ui and messages"`
		Boards       string        `long:"boards" env:"BOARDS" description:"linked boards list, http(s) or file:// url"`
	} `group:"web" namespace:"web" env-namespace:"JOBTRACK_WEB"`

	Notify struct {
		OnCreated      bool          `long:"on-created" env:"ON_CREATED" description:"notify on new jobs"`
		OnUpdated      bool          `long:"on-updated" env:"ON_UPDATED" description:"notify on updated jobs"`
		OnDeleted      bool          `long:"on-deleted" env:"ON_DELETED" description:"notify on deleted jobs"`
		Digest         string        `long:"digest" env:"DIGEST" description:"digest cron schedule, i.e. '0 9 * * 1-5'"`
		EventTemplate  string        `long:"event-template" env:"EVENT_TEMPLATE" description:"custom event message template"`
		DigestTemplate string        `long:"digest-template" env:"DIGEST_TEMPLATE" description:"custom digest message template"`
		DashboardURL   string        `long:"dashboard-url" env:"DASHBOARD_URL" description:"dashboard link added to messages"`
		Timeout        time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"notification send timeout"`

		SMTPHost     string   `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host"`
		SMTPPort     int      `long:"smtp-port" env:"SMTP_PORT" default:"25" description:"SMTP port"`
		SMTPUsername string   `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP user name"`
		SMTPPassword string   `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
		SMTPTLS      bool     `long:"smtp-tls" env:"SMTP_TLS" description:"enable SMTP TLS"`
		SMTPStartTLS bool     `long:"smtp-starttls" env:"SMTP_STARTTLS" description:"enable SMTP StartTLS"`
		FromEmail    string   `long:"from" env:"FROM" description:"SMTP from email"`
		ToEmails     []string `long:"to" env:"TO" env-delim:"," description:"SMTP to email(s)"`

		SlackToken    string   `long:"slack-token" env:"SLACK_TOKEN" description:"slack token"`
		SlackChannels []string `long:"slack-channel" env:"SLACK_CHANNEL" env-delim:"," description:"slack channel(s)"`

		TelegramToken string   `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"telegram bot token"`
		TelegramChats []string `long:"telegram-chat" env:"TELEGRAM_CHAT" env-delim:"," description:"telegram chat(s)"`

		Webhooks []string `long:"webhook" env:"WEBHOOK" env-delim:"," description:"webhook url(s)"`
	} `group:"notify" namespace:"notify" env-namespace:"JOBTRACK_NOTIFY"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging to file"`
		Filename        string `long:"file" env:"FILE" default:"jobtrack.log" description:"log file name"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max log file size in MB"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max days to keep old logs"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of old logs"`
		EnabledCompress bool   `long:"compress" env:"COMPRESS" description:"compress rotated logs"`
	} `group:"log" namespace:"log" env-namespace:"JOBTRACK_LOG"`

	HashPassword string `long:"hash-password" description:"print bcrypt hash of the password and exit"`
	Dbg          bool   `long:"dbg" env:"DEBUG" description:"debug mode"`
}

var opts options

var revision = "unknown"

func main() {
	fmt.Printf("jobtrack %s\n", revision)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("failed to load .env file: %v\n", err)
	}

	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.HashPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.HashPassword), bcrypt.DefaultCost)
		if err != nil {
			fmt.Printf("failed to hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(hash))
		return
	}

	setupLog(setupLogs(), opts.Dbg, opts.Web.Password, opts.Notify.SMTPPassword, opts.Notify.SlackToken,
		opts.Notify.TelegramToken)

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals(cancel) // handle SIGQUIT, SIGINT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

// run wires all services and blocks until context canceled
func run(ctx context.Context) error {
	mode, err := enums.ParseValidationMode(opts.Backend.ValidationMode)
	if err != nil {
		return fmt.Errorf("invalid validation mode: %w", err)
	}

	rptr := repeater.New(&strategy.Backoff{Repeats: opts.Repeater.Attempts, Duration: opts.Repeater.Duration,
		Factor: opts.Repeater.Factor, Jitter: opts.Repeater.Jitter})

	client := backend.New(backend.Params{BaseURL: opts.Backend.URL, Timeout: opts.Backend.Timeout, Repeater: rptr})
	log.Printf("[INFO] backend %s", client)

	jobs := tracker.New(tracker.Params{
		Backend:        client,
		CacheTTL:       opts.Backend.CacheTTL,
		ValidationMode: mode,
		Concurrency:    opts.Backend.Concurrency,
	})

	notifier := makeNotifier()
	if notifier != nil {
		jobs.AddHandler(notifier)
	}

	srv, err := web.New(web.Config{
		DBPath:       opts.Web.DBPath,
		Jobs:         jobs,
		BaseURL:      validateBaseURL(opts.Web.BaseURL),
		Hostname:     makeHostName(),
		Version:      revision,
		PasswordHash: opts.Web.Password,
		LoginTTL:     opts.Web.LoginTTL,
		HistoryLimit: opts.Web.HistoryLimit,
		BoardsURL:    opts.Web.Boards,
		Settings:     makeSettingsInfo(),
	})
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}
	jobs.AddHandler(srv)

	if opts.Notify.Digest != "" && notifier != nil {
		sched := &digest.Scheduler{Cron: cron.New(), Spec: opts.Notify.Digest, Lister: jobs, Notifier: notifier}
		go func() {
			if err := sched.Do(ctx); err != nil {
				log.Printf("[WARN] digest scheduler failed: %v", err)
			}
		}()
	}

	err = srv.Run(ctx, opts.Web.Address)
	if notifier != nil {
		notifier.Wait() // let in-flight notifications finish
	}
	return err
}

// makeNotifier returns nil if no destinations configured
func makeNotifier() *notify.Service {
	from := opts.Notify.FromEmail
	if from == "" && len(opts.Notify.ToEmails) > 0 {
		from = "jobtrack@" + makeHostName()
	}

	return notify.NewService(
		notify.Params{
			OnCreated:      opts.Notify.OnCreated,
			OnUpdated:      opts.Notify.OnUpdated,
			OnDeleted:      opts.Notify.OnDeleted,
			EventTemplate:  opts.Notify.EventTemplate,
			DigestTemplate: opts.Notify.DigestTemplate,
			SendTimeout:    opts.Notify.Timeout,
			DashboardURL:   opts.Notify.DashboardURL,
		},
		notify.SendersParams{
			SMTPHost:      opts.Notify.SMTPHost,
			SMTPPort:      opts.Notify.SMTPPort,
			SMTPTLS:       opts.Notify.SMTPTLS,
			SMTPStartTLS:  opts.Notify.SMTPStartTLS,
			SMTPUsername:  opts.Notify.SMTPUsername,
			SMTPPassword:  opts.Notify.SMTPPassword,
			FromEmail:     from,
			ToEmails:      opts.Notify.ToEmails,
			SlackToken:    opts.Notify.SlackToken,
			SlackChannels: opts.Notify.SlackChannels,
			TelegramToken: opts.Notify.TelegramToken,
			TelegramChats: opts.Notify.TelegramChats,
			WebhookURLs:   opts.Notify.Webhooks,
			Timeout:       opts.Notify.Timeout,
		},
	)
}

func makeSettingsInfo() web.SettingsInfo {
	res := web.SettingsInfo{
		Version:     revision,
		StartTime:   time.Now(),
		WebAddress:  opts.Web.Address,
		WebHostname: makeHostName(),
		AuthEnabled: opts.Web.Password != "",
		DBPath:      opts.Web.DBPath,

		BackendURL:     opts.Backend.URL,
		BackendTimeout: opts.Backend.Timeout,
		CacheTTL:       opts.Backend.CacheTTL,
		ValidationMode: opts.Backend.ValidationMode,

		RepeaterAttempts: opts.Repeater.Attempts,
		RepeaterDuration: opts.Repeater.Duration,
		RepeaterFactor:   opts.Repeater.Factor,

		EmailNotifications:  len(opts.Notify.ToEmails) > 0,
		SlackChannelCount:   len(opts.Notify.SlackChannels),
		TelegramDestCount:   len(opts.Notify.TelegramChats),
		WebhookCount:        len(opts.Notify.Webhooks),
		DigestSchedule:      opts.Notify.Digest,
		NotificationTimeout: opts.Notify.Timeout,

		DebugMode: opts.Dbg,
	}
	if opts.Log.Enabled {
		res.LogFilePath = opts.Log.Filename
		res.LogMaxSize = opts.Log.MaxSize
		res.LogMaxAge = opts.Log.MaxAge
		res.LogMaxBackups = opts.Log.MaxBackups
	}
	return res
}

func makeHostName() string {
	if opts.Web.Hostname != "" {
		return opts.Web.Hostname
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// validateBaseURL normalizes base url, "/" and empty mean root
func validateBaseURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/")
}

// setupLogs returns log destination, rotated file if enabled or stdout
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

func setupLog(out io.Writer, dbg bool, secrets ...string) {
	logOpts := []log.Option{log.Msec, log.LevelBraces, log.Out(out), log.Err(out)}
	if dbg {
		logOpts = append(logOpts, log.Debug, log.CallerFile, log.CallerFunc)
	}
	nonEmpty := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) > 0 {
		logOpts = append(logOpts, log.Secret(nonEmpty...))
	}
	log.Setup(logOpts...)
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
			log.Printf("[INFO] got %s, shutting down", sig)
			cancel()
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGINT, syscall.SIGTERM)
}
