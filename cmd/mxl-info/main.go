// mxl-info inspects a domain directory: list its flows, print a single
// flow's header state, or garbage-collect abandoned ones.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mlefebvre1/mxl"
	"github.com/mlefebvre1/mxl/internal/flow"
	"github.com/mlefebvre1/mxl/internal/timing"
)

var (
	domain     string
	flowID     string
	listFlows  bool
	gc         bool
	exportMode string
)

func main() {
	root := &cobra.Command{
		Use:           "mxl-info",
		Short:         "Inspect flows in an MXL domain",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.Flags().StringVarP(&domain, "domain", "d", "", "the MXL domain directory")
	root.Flags().StringVarP(&flowID, "flow", "f", "", "the flow id to analyse")
	root.Flags().BoolVarP(&listFlows, "list", "l", false, "list all flows in the MXL domain")
	root.Flags().BoolVarP(&gc, "garbage-collect", "g", false, "garbage collect inactive flows found in the MXL domain")
	root.Flags().StringVar(&exportMode, "export", "", "emit machine-readable output instead of a table: json|msgpack")
	_ = root.MarkFlagRequired("domain")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mxl-info:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	inst, err := mxl.CreateInstance(domain, nil)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	defer inst.Close()

	switch {
	case gc:
		return runGarbageCollect(cmd, inst)
	case listFlows:
		return runList(cmd, inst)
	case flowID != "":
		id, err := uuid.Parse(flowID)
		if err != nil {
			return fmt.Errorf("invalid flow id %q: %w", flowID, err)
		}
		return runPrintFlow(cmd, inst, id)
	default:
		return fmt.Errorf("one of --flow, --list, or --garbage-collect is required")
	}
}

func runGarbageCollect(cmd *cobra.Command, inst *mxl.Instance) error {
	removed, err := inst.GarbageCollectFlows(0)
	if err != nil {
		return fmt.Errorf("garbage collect: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d flow(s)\n", len(removed))
	for _, id := range removed {
		fmt.Fprintln(cmd.OutOrStdout(), "\t", id)
	}
	return nil
}

// flowListing is a flow's entry in --list output. When the descriptor
// can't be read or parsed, Label carries the error and GroupHint is "n/a";
// GroupHint is also "n/a" when the descriptor declares no group hint.
type flowListing struct {
	ID        uuid.UUID `json:"id" msgpack:"id"`
	Label     string    `json:"label" msgpack:"label"`
	GroupHint string    `json:"group_hint" msgpack:"group_hint"`
}

func runList(cmd *cobra.Command, inst *mxl.Instance) error {
	ids, err := inst.ListFlows()
	if err != nil {
		return fmt.Errorf("list flows: %w", err)
	}

	listings := make([]flowListing, 0, len(ids))
	for _, id := range ids {
		listings = append(listings, describeFlow(inst, id))
	}

	if exportMode != "" {
		return writeExport(cmd, listings)
	}

	w := csv.NewWriter(cmd.OutOrStdout())
	for _, l := range listings {
		if err := w.Write([]string{l.ID.String(), l.Label, l.GroupHint}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func describeFlow(inst *mxl.Instance, id uuid.UUID) flowListing {
	l := flowListing{ID: id, Label: "n/a", GroupHint: "n/a"}
	def, err := inst.GetFlowDef(id)
	if err != nil {
		l.Label = fmt.Sprintf("ERROR: %v", err)
		return l
	}
	fl, err := flow.Parse(def)
	if err != nil {
		l.Label = fmt.Sprintf("ERROR: %v", err)
		return l
	}
	common := fl.Common()
	l.Label = common.Label
	if len(common.GroupHints) > 0 {
		l.GroupHint = common.GroupHints[0]
	}
	return l
}

// flowReport is the --flow / --export payload: FlowInfo plus the
// liveness bit and latency the original tool derives from it.
type flowReport struct {
	mxl.FlowInfo
	Active        bool   `json:"active" msgpack:"active"`
	LatencyUnits  uint64 `json:"latency" msgpack:"latency"`
	LatencyKind   string `json:"latency_kind" msgpack:"latency_kind"`
}

func runPrintFlow(cmd *cobra.Command, inst *mxl.Instance, id uuid.UUID) error {
	r, err := inst.CreateFlowReader(id)
	if err != nil {
		return fmt.Errorf("create flow reader: %w", err)
	}
	defer r.Close()

	info := r.GetInfo()
	active, err := inst.IsFlowActive(id)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "failed to check if flow is active:", err)
	}

	report := flowReport{FlowInfo: info, Active: active}
	now := timing.Now()
	switch {
	case info.Format.IsDiscrete():
		current := timing.TimestampToIndex(info.Rate, now)
		report.LatencyUnits = current - info.HeadIndex
		report.LatencyKind = "grains"
	case info.Format.IsContinuous():
		current := timing.TimestampToIndex(info.Rate, now)
		report.LatencyUnits = current - info.HeadIndex
		report.LatencyKind = "samples"
	}

	if exportMode != "" {
		return writeExport(cmd, report)
	}
	printFlowReport(cmd, report)
	return nil
}

func printFlowReport(cmd *cobra.Command, r flowReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "- Flow [%s]\n", r.ID)
	fmt.Fprintf(out, "\t%18s: %s\n", "Format", r.Format)
	fmt.Fprintf(out, "\t%18s: %d\n", "Last write time", r.LastWriteTime)
	fmt.Fprintf(out, "\t%18s: %d\n", "Last read time", r.LastReadTime)
	fmt.Fprintf(out, "\t%18s: %d\n", "Commit batch size", r.CommitBatchHint)
	fmt.Fprintf(out, "\t%18s: %d\n", "Sync batch size", r.SyncBatchHint)
	fmt.Fprintf(out, "\t%18s: %08x\n", "Flags", r.Flags)

	switch {
	case r.Format.IsDiscrete():
		fmt.Fprintf(out, "\t%18s: %d/%d\n", "Grain rate", r.Rate.Num, r.Rate.Den)
		fmt.Fprintf(out, "\t%18s: %d\n", "Grain count", r.GrainCount)
		fmt.Fprintf(out, "\t%18s: %d\n", "Head index", r.HeadIndex)
		fmt.Fprintf(out, "\t%18s: %d\n", "Latency (grains)", r.LatencyUnits)
	case r.Format.IsContinuous():
		fmt.Fprintf(out, "\t%18s: %d/%d\n", "Sample rate", r.Rate.Num, r.Rate.Den)
		fmt.Fprintf(out, "\t%18s: %d\n", "Channel count", r.ChannelCount)
		fmt.Fprintf(out, "\t%18s: %d\n", "Buffer length", r.BufferLength)
		fmt.Fprintf(out, "\t%18s: %d\n", "Head index", r.HeadIndex)
		fmt.Fprintf(out, "\t%18s: %d\n", "Latency (samples)", r.LatencyUnits)
	}
	fmt.Fprintf(out, "\t%18s: %v\n", "Active", r.Active)
}

func writeExport(cmd *cobra.Command, v any) error {
	switch exportMode {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "msgpack":
		b, err := msgpack.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal msgpack: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	default:
		return fmt.Errorf("unknown --export mode %q, want json or msgpack", exportMode)
	}
}
