package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"sqljudge/internal/config"
	"sqljudge/internal/util"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errNotSolved = errors.New("not solved")

type rootOptions struct {
	configPath string
	verbose    bool
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errNotSolved) {
			fmt.Fprintf(os.Stderr, "sqljudge: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sqljudge",
		Short:         "Judge SQL queries against isolated fixtures",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (defaults apply when empty)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "print per-fixture detail logs")
	root.AddCommand(newRunCmd(opts), newVerifyCmd(opts), newValidateCmd(opts), newIndexCmd(opts))
	return root
}

// setup loads configuration and wires logging. The returned closer flushes
// the rotating log file, if any.
func setup(opts *rootOptions) (config.Config, io.Closer, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	util.SetVerbose(cfg.Logging.Verbose || opts.verbose)
	logCloser, err := util.SetupLogFile(cfg.Logging.LogFile, cfg.Logging.MaxFileSizeMB, cfg.Logging.MaxBackups)
	if err != nil {
		return config.Config{}, nil, err
	}
	if data, err := yaml.Marshal(&cfg); err == nil {
		util.Detailf("config:\n%s", string(data))
	}
	return cfg, logCloser, nil
}
