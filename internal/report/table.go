// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/curioloop/equilibrium/chem"
	"github.com/curioloop/equilibrium/equilibrium"
)

// WriteResult writes the species amounts of res, with the temperature and pressure
// derivatives when present, followed by the solve statistics.
func WriteResult(w io.Writer, sys *chem.System, res equilibrium.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"SPECIES", "PHASE", "AMOUNT"}
	if res.DnDT != nil {
		header = append(header, "DN/DT")
	}
	if res.DnDP != nil {
		header = append(header, "DN/DP")
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i, n := range res.N {
		row := []string{sys.Species(i).Name, sys.Phase(sys.PhaseOf(i)).Name, fmt.Sprintf("%.6e", n)}
		if res.DnDT != nil {
			row = append(row, fmt.Sprintf("%.4e", res.DnDT[i]))
		}
		if res.DnDP != nil {
			row = append(row, fmt.Sprintf("%.4e", res.DnDP[i]))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return WriteStatistics(w, res.Statistics)
}

// WriteStatistics writes one summary line per statistic.
func WriteStatistics(w io.Writer, s equilibrium.Statistics) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "method:\t%v\n", s.Method)
	fmt.Fprintf(tw, "status:\t%v\n", s.Status)
	fmt.Fprintf(tw, "converged:\t%t\n", s.Converged)
	fmt.Fprintf(tw, "iterations:\t%d\n", s.NumIter)
	fmt.Fprintf(tw, "evaluations:\t%d\n", s.NumModelEvals)
	fmt.Fprintf(tw, "residual:\t%.3e\n", s.Residual.Norm())
	fmt.Fprintf(tw, "sensitivity:\t%v\n", s.Sensitivity)
	fmt.Fprintf(tw, "elapsed:\t%v\n", s.Elapsed)
	return tw.Flush()
}
