// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/curioloop/equilibrium/equilibrium"
	"github.com/curioloop/equilibrium/internal/config"
	"github.com/curioloop/equilibrium/internal/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

func (a *app) solveCommand() *cobra.Command {
	var (
		approximate bool
		compute     equilibrium.Compute
	)
	cmd := &cobra.Command{
		Use:   "solve <system.yaml>",
		Short: "Solve the equilibrium of a system file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, err := config.LoadSystemFile(args[0])
			if err != nil {
				return err
			}
			opts := a.opts
			opts.Compute.DnDT = opts.Compute.DnDT || compute.DnDT
			opts.Compute.DnDP = opts.Compute.DnDP || compute.DnDP
			opts.Compute.DnDB = opts.Compute.DnDB || compute.DnDB

			solver := equilibrium.NewSolver(setup.Model)
			state := equilibrium.NewState(setup.System)
			if approximate {
				seed, err := solver.ApproximateWith(setup.Problem, state, opts)
				if err != nil {
					return err
				}
				if !seed.Converged {
					a.log.Warn("linear relaxation failed, solving from the default guess")
				}
			}

			res, err := solver.SolveWith(setup.Problem, state, opts)
			if err != nil {
				return err
			}
			log := a.log.WithFields(logrus.Fields{
				"status":     res.Status.String(),
				"iterations": res.NumIter,
			})
			if res.Converged {
				log.Info("equilibrium found")
			} else {
				log.Warn("equilibrium not converged")
			}

			out := cmd.OutOrStdout()
			if err := report.WriteResult(out, setup.System, res); err != nil {
				return err
			}
			if res.DnDB != nil {
				fmt.Fprintf(out, "dn/db (%v):\n%v\n", setup.System.ElementNames(),
					mat.Formatted(res.DnDB, mat.Squeeze()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&approximate, "approximate", false, "seed the solve with the linear relaxation")
	cmd.Flags().BoolVar(&compute.DnDT, "dndt", false, "compute the temperature derivatives")
	cmd.Flags().BoolVar(&compute.DnDP, "dndp", false, "compute the pressure derivatives")
	cmd.Flags().BoolVar(&compute.DnDB, "dndb", false, "compute the element amount derivatives")
	return cmd
}
