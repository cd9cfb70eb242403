// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/curioloop/equilibrium/internal/config"
	"github.com/curioloop/equilibrium/internal/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) sweepCommand() *cobra.Command {
	var (
		s         span
		pressures []float64
		workers   int
	)
	cmd := &cobra.Command{
		Use:   "sweep <system.yaml>",
		Short: "Follow temperature paths at several pressures in parallel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := s.points()
			if err != nil {
				return err
			}
			if len(pressures) == 0 {
				return errors.New("at least one pressure is required")
			}
			if workers < 1 {
				return errors.New("workers must be positive")
			}
			setup, err := config.LoadSystemFile(args[0])
			if err != nil {
				return err
			}

			// every path owns its problem and state, only the system and model are shared
			paths := make([]*report.Path, len(pressures))
			var g errgroup.Group
			g.SetLimit(workers)
			for i, P := range pressures {
				g.Go(func() error {
					problem := setup.Problem.Clone()
					problem.SetPressure(P)
					opts := a.opts
					log := a.log.WithField("P", P)
					opts.Logger = log
					path, err := walk(setup, problem, opts, ts, log)
					if err != nil {
						return fmt.Errorf("P = %g Pa: %w", P, err)
					}
					paths[i] = path
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, path := range paths {
				a.log.WithFields(logrus.Fields{
					"P":          pressures[i],
					"iterations": path.TotalIterations(),
				}).Info("path finished")
				fmt.Fprintf(out, "P = %g Pa\n", pressures[i])
				if err := path.WriteTable(out); err != nil {
					return err
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	s.flags(cmd)
	cmd.Flags().Float64SliceVar(&pressures, "pressures", []float64{1e5}, "pressures in Pa")
	cmd.Flags().IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "number of paths solved at once")
	return cmd
}
