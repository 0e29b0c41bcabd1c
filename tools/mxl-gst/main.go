// mxl-gst bridges GStreamer test pipelines and an MXL domain: videosrc
// produces a synthetic video flow from videotestsrc, videosink consumes a
// video flow into autovideosink, for pipeline smoke-testing without a real
// capture card.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tinyzimmer/go-gst/gst"
)

func main() {
	gst.Init(nil)

	root := &cobra.Command{
		Use:   "mxl-gst",
		Short: "GStreamer test source/sink for MXL video flows",
	}
	root.AddCommand(newVideoSrcCmd())
	root.AddCommand(newVideoSinkCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mxl-gst:", err)
		os.Exit(1)
	}
}
