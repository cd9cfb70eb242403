// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/curioloop/equilibrium/equilibrium"
	"github.com/curioloop/equilibrium/internal/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	logLevel   string

	opts equilibrium.Options
	log  *logrus.Entry
}

func newRootCommand() *cobra.Command {
	a := new(app)
	root := &cobra.Command{
		Use:   "equilibrate",
		Short: "Chemical equilibrium by Gibbs energy minimization",
		Long: `equilibrate minimizes the Gibbs energy of a multiphase chemical system
subject to element conservation, optionally computing the derivatives of the
equilibrium amounts with respect to temperature, pressure and element amounts.

Solver options are read from --config and EQUILIBRATE_* environment variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "solver options file (YAML)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn or error (overrides config)")
	root.AddCommand(a.solveCommand(), a.pathCommand(), a.sweepCommand())
	return root
}

// setup loads the options and the logger shared by every sub command.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		v.Set("log.level", a.logLevel)
	}
	logger, err := config.NewLogger(v.GetString("log.level"))
	if err != nil {
		return err
	}
	opts, err := config.LoadOptions(v)
	if err != nil {
		return err
	}

	a.log = logger.WithFields(logrus.Fields{
		"run":     uuid.NewString(),
		"command": cmd.Name(),
	})
	opts.Logger = a.log
	a.opts = opts
	a.log.WithFields(logrus.Fields{
		"config":    v.ConfigFileUsed(),
		"tolerance": opts.Tolerance,
		"hessian":   opts.Hessian,
	}).Debug("options loaded")
	return nil
}
