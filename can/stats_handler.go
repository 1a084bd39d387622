package can

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.miragespace.co/can/spec/can"
	"go.miragespace.co/can/util"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
)

// Balance summarizes how evenly content and area are spread across zones.
type Balance struct {
	Zones       int     `json:"zones"`
	ItemsMean   float64 `json:"items_mean"`
	ItemsStdDev float64 `json:"items_stddev"`
	ItemsMax    float64 `json:"items_max"`
	AreaMin     float64 `json:"area_min"`
	AreaMax     float64 `json:"area_max"`
}

func (b Balance) String() string {
	return fmt.Sprintf("%d zones, items per zone mean %.2f stddev %.2f max %.0f, area min %.4f max %.4f",
		b.Zones, b.ItemsMean, b.ItemsStdDev, b.ItemsMax, b.AreaMin, b.AreaMax)
}

func (o *Overlay) Balance() Balance {
	o.mu.Lock()
	defer o.mu.Unlock()

	return balance(o.snapshot())
}

func balance(nodes []can.NodeInfo) Balance {
	zones := groupZones(nodes)
	if len(zones) == 0 {
		return Balance{}
	}
	byID := make(map[can.NodeID]can.NodeInfo, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	items := make(stats.Float64Data, 0, len(zones))
	areas := make(stats.Float64Data, 0, len(zones))
	for _, z := range zones {
		held := make(map[can.ContentID]struct{})
		for _, id := range z.Caretakers {
			for cid := range byID[id].Catalogue {
				held[cid] = struct{}{}
			}
		}
		items = append(items, float64(len(held)))
		areas = append(areas, z.Zone.Area())
	}

	return Balance{
		Zones:       len(zones),
		ItemsMean:   util.Must(stats.Mean(items)),
		ItemsStdDev: util.Must(stats.StandardDeviation(items)),
		ItemsMax:    util.Must(stats.Max(items)),
		AreaMin:     util.Must(stats.Min(areas)),
		AreaMax:     util.Must(stats.Max(areas)),
	}
}

func formatIDs(ids []can.NodeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// summary is one consistent view of the overlay for rendering.
type summary struct {
	nodes     []can.NodeInfo
	audit     []Misplaced
	misplaced map[can.NodeID]int
	joins     uint64
	splits    uint64
}

func (o *Overlay) summary() summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	sum := summary{
		nodes:     o.snapshot(),
		audit:     o.audit(),
		misplaced: make(map[can.NodeID]int),
		joins:     o.joins.Load(),
		splits:    o.splits.Load(),
	}
	for _, m := range sum.audit {
		sum.misplaced[m.Node]++
	}
	return sum
}

// WriteSummary renders the node table, the zone table and the balance line.
// An X in the misplaced column counts entries outside the holder's zone.
func (o *Overlay) WriteSummary(w io.Writer, width int) {
	sum := o.summary()
	nodes, misplaced := sum.nodes, sum.misplaced

	nodesTable := table.NewWriter()
	nodesTable.SetOutputMirror(w)
	nodesTable.AppendHeader(table.Row{"ID", "Name", "Zone", "Peers", "Items", "Misplaced"})
	for _, n := range nodes {
		mark := ""
		if c := misplaced[n.ID]; c > 0 {
			mark = fmt.Sprintf("X (%d)", c)
		}
		nodesTable.AppendRow(table.Row{n.ID, n.Name, n.Zone.String(), formatIDs(n.Peers), len(n.Catalogue), mark})
	}
	nodesTable.SetCaption("(With %d nodes; X in misplaced column indicates content outside the zone)", len(nodes))
	nodesTable.SetStyle(table.StyleDefault)
	nodesTable.Style().Options.SeparateRows = true
	if width > 0 {
		nodesTable.SetAllowedRowLength(width)
	}
	nodesTable.Render()

	fmt.Fprintf(w, "---\n")

	zones := groupZones(nodes)
	zonesTable := table.NewWriter()
	zonesTable.SetOutputMirror(w)
	zonesTable.AppendHeader(table.Row{"Zone", "Area", "Caretakers"})
	for _, z := range zones {
		zonesTable.AppendRow(table.Row{z.Zone.String(), fmt.Sprintf("%.4f", z.Zone.Area()), formatIDs(z.Caretakers)})
	}
	zonesTable.SetStyle(table.StyleDefault)
	if width > 0 {
		zonesTable.SetAllowedRowLength(width)
	}
	zonesTable.Render()

	fmt.Fprintf(w, "---\n")
	fmt.Fprintf(w, "Joins: %d, splits: %d\n", sum.joins, sum.splits)
	fmt.Fprintf(w, "Balance: %s\n", balance(nodes))
}

func (o *Overlay) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" {
		sum := o.summary()
		w.Header().Set("content-type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Joins     uint64      `json:"joins"`
			Splits    uint64      `json:"splits"`
			Balance   Balance     `json:"balance"`
			Misplaced []Misplaced `json:"misplaced"`
		}{
			Joins:     sum.joins,
			Splits:    sum.splits,
			Balance:   balance(sum.nodes),
			Misplaced: sum.audit,
		})
		return
	}
	w.Header().Set("content-type", "text/plain; charset=utf-8")
	o.WriteSummary(w, 0)
}
