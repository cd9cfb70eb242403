// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/curioloop/equilibrium/equilibrium"
	"github.com/curioloop/equilibrium/internal/config"
	"github.com/curioloop/equilibrium/internal/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// span is a temperature range walked in fixed steps.
type span struct {
	from, to, step float64
}

func (s *span) flags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&s.from, "from", 298.15, "first temperature in K")
	cmd.Flags().Float64Var(&s.to, "to", 373.15, "last temperature in K")
	cmd.Flags().Float64Var(&s.step, "step", 5, "temperature step in K")
}

func (s span) points() ([]float64, error) {
	if !(s.step > 0) || !(s.from > 0) || s.to < s.from {
		return nil, errors.New("temperature range needs 0 < from <= to and step > 0")
	}
	n := int(math.Floor((s.to-s.from)/s.step+1e-9)) + 1
	ts := make([]float64, n)
	for k := range ts {
		ts[k] = s.from + float64(k)*s.step
	}
	return ts, nil
}

// walk solves problem at every temperature, warm starting each point from the previous one.
// The temperature derivatives are always computed so the state carries a tangent.
func walk(setup *config.Setup, problem *equilibrium.Problem, opts equilibrium.Options, ts []float64, log logrus.FieldLogger) (*report.Path, error) {
	opts.Compute.DnDT = true
	solver := equilibrium.NewSolver(setup.Model)
	state := equilibrium.NewState(setup.System)
	path := report.NewPath(setup.System, "T (K)")
	for _, T := range ts {
		problem.SetTemperature(T)
		res, err := solver.SolveWith(problem, state, opts)
		if err != nil {
			return nil, err
		}
		if !res.Converged {
			log.WithFields(logrus.Fields{"T": T, "status": res.Status.String()}).Warn("point not converged")
			// a failed point must not seed the next one
			state.Reset()
		}
		path.Add(T, res)
	}
	return path, nil
}

func (a *app) pathCommand() *cobra.Command {
	var (
		s         span
		png, html string
	)
	cmd := &cobra.Command{
		Use:   "path <system.yaml>",
		Short: "Follow the equilibrium along a temperature path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := s.points()
			if err != nil {
				return err
			}
			setup, err := config.LoadSystemFile(args[0])
			if err != nil {
				return err
			}
			path, err := walk(setup, setup.Problem, a.opts, ts, a.log)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"points":     path.Len(),
				"iterations": path.TotalIterations(),
			}).Info("path finished")

			if err := path.WriteTable(cmd.OutOrStdout()); err != nil {
				return err
			}
			if png != "" {
				if err := writeFile(png, path.WritePNG); err != nil {
					return err
				}
			}
			if html != "" {
				if err := writeFile(html, path.WriteHTML); err != nil {
					return err
				}
			}
			return nil
		},
	}
	s.flags(cmd)
	cmd.Flags().StringVar(&png, "png", "", "write a PNG plot of the amounts to this file")
	cmd.Flags().StringVar(&html, "html", "", "write an HTML chart of the amounts to this file")
	return cmd
}

func writeFile(name string, write func(io.Writer) error) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err = write(f); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
