package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dpddns/config"
	"dpddns/ddns"
	"dpddns/dnspod"
	"dpddns/log"
	"dpddns/session"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	configPath    = flag.StringP("config", "c", "config.toml", "path to config file (.toml, .yaml, .yml or .json)")
	debug         = flag.Bool("debug", false, "enable debug output")
	code          = flag.StringP("code", "o", "", "one-time code for the first login, instead of asking on the terminal")
	promptTimeout = flag.Duration("prompt-timeout", 2*time.Minute, "how long to wait for a one-time code on the terminal")
	help          = flag.BoolP("help", "h", false, "Print help message")
)

var buildDate string

func getInitLogger() context.Context {
	var err error
	var logger *zap.Logger

	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		fmt.Printf("Failed creating logger: %v\n", err)
		os.Exit(1)
	}

	return log.WithLogger(context.Background(), logger)
}

func getLogger(ctx context.Context, conf config.Config) context.Context {
	var logOption zap.Config
	if *debug {
		logOption = zap.NewDevelopmentConfig()
	} else {
		logOption = zap.NewProductionConfig()
	}

	if conf.Log.Level != nil {
		logOption.Level.SetLevel(*conf.Log.Level)
	}

	if conf.Log.Encoding != nil {
		logOption.Encoding = *conf.Log.Encoding
	}

	if conf.Log.InfoPath != nil {
		logOption.OutputPaths = *conf.Log.InfoPath
	}

	if conf.Log.ErrorPath != nil {
		logOption.ErrorOutputPaths = *conf.Log.ErrorPath
	}

	if conf.Service.Name != "" {
		logOption.InitialFields = map[string]any{
			"node": conf.Service.Name,
		}
	}

	logger, err := logOption.Build()
	if err != nil {
		log.S(ctx).Fatalw("cannot build real logger", zap.Error(err))
	}

	return log.WithLogger(ctx, logger)
}

func loadConfig(ctx context.Context) config.Config {
	conf, err := config.Load(*configPath)
	if err != nil {
		log.S(ctx).Fatalw("failed loading config", "path", *configPath, zap.Error(err))
	}

	if err := conf.ApplyEnv(os.LookupEnv); err != nil {
		log.S(ctx).Fatalw("failed loading config from environment", zap.Error(err))
	}

	if err := conf.Validate(); err != nil {
		log.S(ctx).Fatalw("invalid config", zap.Error(err))
	}

	return conf
}

func newUpdater(ctx context.Context, conf config.Config) (*ddns.Updater, error) {
	resolver, err := ddns.NewResolver(ctx, conf.Address)
	if err != nil {
		return nil, fmt.Errorf("cannot init resolver: %w", err)
	}

	tty := terminal{
		fd:           int(os.Stdin.Fd()),
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
		out:          os.Stderr,
	}

	client := dnspod.New(dnspod.Options{
		Account:  conf.Account,
		Provider: conf.Provider,
		Store:    session.NewStore(conf.Session.Path),
		Prompt:   codePrompt(tty, *code, *promptTimeout),
	})

	return ddns.NewUpdater(resolver, dnspod.NewRecords(client), conf.Domain), nil
}

func main() {
	flag.Parse()
	if *help {
		fmt.Println(flag.CommandLine.FlagUsages())
		os.Exit(0)
	}

	ctx := getInitLogger()

	if buildDate != "" {
		log.S(ctx).Infow("dpddns starting", "variant", "release", "build_date", buildDate)
	} else {
		log.S(ctx).Infow("dpddns starting", "variant", "debug")
	}

	conf := loadConfig(ctx)
	ctx = getLogger(ctx, conf)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	updater, err := newUpdater(ctx, conf)
	if err != nil {
		log.S(ctx).Fatalw("cannot init updater", zap.Error(err))
	}

	status := run(ctx, updater, time.Duration(conf.Service.RefreshRate))
	stop()
	_ = log.L(ctx).Sync()
	os.Exit(status)
}

type cycle interface {
	Run(ctx context.Context) (ddns.State, error)
}

// run performs a single cycle when refresh is not positive and returns the
// process exit code. Otherwise it repeats every refresh until ctx is done.
func run(ctx context.Context, updater cycle, refresh time.Duration) int {
	if refresh <= 0 {
		if _, err := updater.Run(ctx); err != nil {
			return 1
		}
		return 0
	}

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	for {
		if state, err := updater.Run(ctx); err != nil {
			log.S(ctx).Errorw("update failed, retry on next tick", "state", state, zap.Error(err))
		}

		select {
		case <-ctx.Done():
			log.S(ctx).Infow("dpddns stopping")
			return 0
		case <-ticker.C:
		}
	}
}
