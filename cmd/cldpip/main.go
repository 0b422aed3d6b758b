package main

import (
	"cldpip/config"
	"cldpip/log"
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

var (
	configPath = flag.StringP("config", "c", "config.toml", "path to config file")
	debug      = flag.Bool("debug", false, "enable debug output")
	verbosity  = flag.StringP("verbosity", "v", "", "log level (debug, info, warn, error)")
	help       = flag.BoolP("help", "h", false, "Print help message")
)

var buildDate string

const (
	exitOK = iota
	exitFailure
	exitUsage
)

func init() {
	flag.CommandLine.SetInterspersed(false)
	flag.Usage = usage
	flag.Parse()
	if *help {
		usage()
		os.Exit(exitOK)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <command> [command flags]\n\nCommands:\n", os.Args[0])
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n%s", flag.CommandLine.FlagUsages())
}

func loadConfig(ctx context.Context) (config.Config, error) {
	if err := config.LoadDotenv(".env"); err != nil {
		log.S(ctx).Errorw("failed loading .env", zap.Error(err))
		return config.Config{}, err
	}

	conf, err := config.Load(*configPath, flag.CommandLine.Changed("config"))
	if err != nil {
		log.S(ctx).Errorw("failed loading config", "path", *configPath, zap.Error(err))
		return config.Config{}, err
	}

	if err := conf.ApplyEnv(os.LookupEnv); err != nil {
		log.S(ctx).Errorw("bad environment", zap.Error(err))
		return config.Config{}, err
	}

	return conf, nil
}

func run() int {
	args := flag.Args()
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		return exitUsage
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	var level *zap.AtomicLevel
	if *verbosity != "" {
		l, err := zap.ParseAtomicLevel(*verbosity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad log level %q: %v\n", *verbosity, err)
			return exitUsage
		}
		level = &l
	}

	ctx, err := log.Bootstrap(*debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}

	if buildDate != "" {
		log.S(ctx).Debugw("cldpip starting", "variant", "release", "build_date", buildDate, "command", args[0])
	} else {
		log.S(ctx).Debugw("cldpip starting", "variant", "debug", "command", args[0])
	}

	conf, err := loadConfig(ctx)
	if err != nil {
		return exitFailure
	}

	if cmd.override != nil {
		cmd.override(&conf)
	}

	ctx, err = log.Build(ctx, conf.Log, *debug, conf.Service.Name, level)
	if err != nil {
		return exitFailure
	}
	defer func() {
		_ = log.L(ctx).Sync()
	}()

	return cmd.run(ctx, conf)
}

func main() {
	os.Exit(run())
}
