package render

import (
	"encoding/json"
	"fmt"
	"io"

	canImpl "go.miragespace.co/can/can"
	"go.miragespace.co/can/spec/can"
	"go.miragespace.co/can/util"

	"github.com/dominikbraun/graph/draw"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

const (
	FormatTable = "table"
	FormatDOT   = "dot"
	FormatJSON  = "json"
)

func Flag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Value:   FormatTable,
		Usage:   "output format: table, dot or json",
	}
}

type snapshot struct {
	Nodes     []can.NodeInfo      `json:"nodes"`
	Zones     []can.ZoneInfo      `json:"zones"`
	Balance   canImpl.Balance     `json:"balance"`
	Misplaced []canImpl.Misplaced `json:"misplaced"`
}

var heading = color.New(color.FgGreen, color.Bold).SprintFunc()

// Overlay writes the state of o in the requested format.
func Overlay(w io.Writer, o *canImpl.Overlay, format string) error {
	switch format {
	case FormatTable:
		fmt.Fprintln(w, heading("OVERLAY:"))
		o.WriteSummary(w, util.TermWidth(160))
		if misplaced := o.Audit(); len(misplaced) > 0 {
			fmt.Fprintln(w, heading("MISPLACED:"))
			for _, m := range misplaced {
				fmt.Fprintf(w, "  node %d holds %q at %s outside %s\n", m.Node, m.ID, m.Point, m.Zone)
			}
		}
		return nil
	case FormatDOT:
		return draw.DOT(o.PeerGraph(), w)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot{
			Nodes:     o.Nodes(),
			Zones:     o.Zones(),
			Balance:   o.Balance(),
			Misplaced: o.Audit(),
		})
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
