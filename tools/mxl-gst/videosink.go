package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/mlefebvre1/mxl"
	"github.com/mlefebvre1/mxl/internal/flow"
	"github.com/mlefebvre1/mxl/internal/timing"
)

func newVideoSinkCmd() *cobra.Command {
	var (
		domain     string
		flowID     string
		offset     int64
		timeoutNs  uint64
	)

	cmd := &cobra.Command{
		Use:   "videosink",
		Short: "Play a video flow through autovideosink",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(flowID)
			if err != nil {
				return fmt.Errorf("invalid flow id %q: %w", flowID, err)
			}
			return runVideoSink(videoSinkConfig{domain: domain, flowID: id, offset: offset, timeoutNs: timeoutNs})
		},
	}

	cmd.Flags().StringVarP(&domain, "domain", "d", "", "the MXL domain directory")
	cmd.Flags().StringVarP(&flowID, "flow", "f", "", "the video flow id to play")
	cmd.Flags().Int64Var(&offset, "offset", 0, "grain offset; positive adds delay")
	cmd.Flags().Uint64VarP(&timeoutNs, "timeout", "t", 0, "read timeout in ns; defaults to one frame interval + 1ms")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("flow")

	return cmd
}

type videoSinkConfig struct {
	domain    string
	flowID    uuid.UUID
	offset    int64
	timeoutNs uint64
}

func runVideoSink(cfg videoSinkConfig) error {
	inst, err := mxl.CreateInstance(cfg.domain, nil)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	defer inst.Close()

	r, err := inst.CreateFlowReader(cfg.flowID)
	if err != nil {
		return fmt.Errorf("create flow reader: %w", err)
	}
	defer r.Close()

	info := r.GetInfo()
	if !info.Format.IsDiscrete() {
		return fmt.Errorf("flow %s is not a discrete (video) flow", cfg.flowID)
	}

	def, err := inst.GetFlowDef(cfg.flowID)
	if err != nil {
		return fmt.Errorf("get flow descriptor: %w", err)
	}
	fl, err := flow.Parse(def)
	if err != nil || fl.Format != flow.FormatVideo {
		return fmt.Errorf("flow %s does not have a parseable video descriptor", cfg.flowID)
	}
	video := *fl.Video

	timeoutNs := cfg.timeoutNs
	if timeoutNs == 0 {
		timeoutNs = timing.IndexToTimestamp(info.Rate, 1) + 1_000_000
	}

	pipelineDesc := fmt.Sprintf(
		"appsrc name=mxlappsrc format=time ! "+
			"video/x-raw,format=v210,width=%d,height=%d,framerate=%d/%d ! "+
			"videoconvert ! "+
			"videoscale ! "+
			"queue ! "+
			"autovideosink",
		video.FrameWidth, video.FrameHeight, info.Rate.Num, info.Rate.Den)

	pipeline, err := gst.NewPipelineFromString(pipelineDesc)
	if err != nil {
		return fmt.Errorf("create gstreamer pipeline: %w", err)
	}
	defer pipeline.Destroy()

	srcElem := pipeline.GetElementByName("mxlappsrc")
	if srcElem == nil {
		return fmt.Errorf("find appsrc: element not found in pipeline")
	}
	src := app.SrcFromElement(srcElem)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer pipeline.SetState(gst.StateNull)

	grainIndex := timing.CurrentIndex(info.Rate)
	for {
		select {
		case <-sigChan:
			slog.Info("videosink: shutdown requested")
			return nil
		default:
		}

		gi, payload, serr := r.GetGrain(uint64(int64(grainIndex)-cfg.offset), timeoutNs)
		if mxl.Is(serr, mxl.OutOfRangeTooEarly) {
			slog.Warn("videosink: too early, retrying same grain", "index", grainIndex)
			continue
		}
		if mxl.Is(serr, mxl.OutOfRangeTooLate) {
			slog.Warn("videosink: too late, resynchronizing", "index", grainIndex)
			grainIndex = timing.CurrentIndex(info.Rate)
			continue
		}
		if serr != nil {
			return fmt.Errorf("get grain %d: %w", grainIndex, serr)
		}

		if gi.ValidSlices != gi.TotalSlices {
			continue
		}

		buf, err := gst.NewBufferWithSize(int64(len(payload)))
		if err != nil {
			slog.Error("videosink: failed to allocate buffer", "error", err)
			continue
		}
		mapInfo := buf.Map(gst.MapWrite)
		copy(mapInfo.Bytes(), payload)
		buf.Unmap()

		if ret := src.PushBuffer(buf); ret != gst.FlowOK {
			slog.Warn("videosink: push-buffer failed", "ret", ret)
		}

		grainIndex++
	}
}
