// PlainRenderer is the non-interactive Renderer that xltop-view always
// uses: a plain column dump to W. The curses screen xltop.c draws
// interactively is out of scope (SPEC_FULL §1).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package viewer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/NVIDIA/xltop/xk"
)

type PlainRenderer struct {
	W io.Writer
}

func (p PlainRenderer) Render(rows []xk.Key) {
	tw := tabwriter.NewWriter(p.W, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "X0\tX1\tWR/s\tRD/s\tREQ/s")
	for i := range rows {
		r := &rows[i]
		fmt.Fprintf(tw, "%s:%s\t%s:%s\t%.1f\t%.1f\t%.1f\n",
			r.Type[0], r.X[0], r.Type[1], r.X[1],
			r.Rate[xk.WRBytes], r.Rate[xk.RDBytes], r.Rate[xk.NRReqs])
	}
	tw.Flush()
}
