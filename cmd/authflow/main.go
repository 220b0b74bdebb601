package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-authflow/internal/config"
	"github.com/goliatone/go-authflow/internal/logger"
	"github.com/goliatone/go-authflow/pkg/nav"
	"github.com/goliatone/go-authflow/pkg/options"
	"github.com/goliatone/go-authflow/pkg/storage"
	"github.com/goliatone/go-authflow/pkg/submit"
	"github.com/goliatone/go-authflow/pkg/tui"
)

const usage = `usage: authflow [flags] <command>

commands:
  login                 sign in and store the member id
  register              create an account and request the OTP
  provinces [-province ID]
                        list provinces, or the cities of one province

flags:
`

// errFailed marks a flow that ended without success; details were already
// shown to the user.
var errFailed = errors.New("flow did not succeed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, nil); err != nil {
		if errors.Is(err, errFailed) || errors.Is(err, tui.ErrAborted) {
			os.Exit(1)
		}
		log.Fatalf("authflow: %v", err)
	}
}

// run executes one command. driver may be nil to use the interactive
// terminal.
func run(ctx context.Context, args []string, stdout io.Writer, driver tui.PromptDriver) error {
	fs := flag.NewFlagSet("authflow", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configFile := fs.String("config", "", "config file (default ./authflow.yaml if present)")
	envFile := fs.String("env", "", "env file (default ./.env if present)")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		return err
	}
	lg, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	if driver == nil {
		driver = tui.NewSurveyDriver(stdout)
	}
	policy := submit.ResetAlways
	if !cfg.Form.ResetOnFailure {
		policy = submit.ResetOnSuccess
	}

	flow, err := authflow.New(ctx,
		authflow.WithBaseURL(cfg.API.BaseURL),
		authflow.WithTimeout(cfg.API.Timeout),
		authflow.WithLocale(cfg.Locale),
		authflow.WithLogger(lg),
		authflow.WithStorage(storage.Config{
			Driver:   cfg.Storage.Driver,
			Path:     cfg.Storage.Path,
			RedisURL: cfg.Storage.RedisURL,
		}),
		authflow.WithNavigator(printNavigator(stdout)),
		authflow.WithPromptDriver(driver),
		authflow.WithResetPolicy(policy),
	)
	if err != nil {
		return err
	}
	defer flow.Close()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	lg.Debug("running command", zap.String("command", cmd), zap.String("locale", flow.Locale()))

	switch cmd {
	case "login":
		out, err := flow.LoginView().Run(ctx)
		return finish(out, err)
	case "register":
		view := flow.RegisterView()
		defer view.Close()
		out, err := view.Run(ctx)
		return finish(out, err)
	case "provinces":
		return listOptions(ctx, flow, rest, stdout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func finish(out submit.Outcome, err error) error {
	if err != nil {
		return err
	}
	if !out.OK() {
		return errFailed
	}
	return nil
}

func listOptions(ctx context.Context, flow *authflow.Flow, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("provinces", flag.ContinueOnError)
	fs.SetOutput(stdout)
	province := fs.String("province", "", "list the cities of this province id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		list options.List
		err  error
	)
	if *province != "" {
		list, err = flow.Cities(ctx, *province)
	} else {
		list, err = flow.Provinces(ctx)
	}
	if err != nil {
		return err
	}
	for _, opt := range list {
		fmt.Fprintf(stdout, "%s\t%s\n", opt.ID, opt.Label)
	}
	return nil
}

func printNavigator(w io.Writer) nav.Navigator {
	return nav.Func(func(_ context.Context, to nav.Target) error {
		_, err := fmt.Fprintf(w, "-> %s\n", to)
		return err
	})
}
