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
	"github.com/mlefebvre1/mxl/internal/rational"
	"github.com/mlefebvre1/mxl/internal/timing"
)

func newVideoSrcCmd() *cobra.Command {
	var (
		domain  string
		width   uint32
		height  uint32
		rateNum uint64
		rateDen uint64
		pattern string
		overlay string
		label   string
	)

	cmd := &cobra.Command{
		Use:   "videosrc",
		Short: "Publish a videotestsrc pattern as an MXL video flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVideoSrc(videoSrcConfig{
				domain:  domain,
				width:   width,
				height:  height,
				rate:    rational.New(rateNum, rateDen),
				pattern: pattern,
				overlay: overlay,
				label:   label,
			})
		},
	}

	cmd.Flags().StringVarP(&domain, "domain", "d", "", "the MXL domain directory")
	cmd.Flags().Uint32Var(&width, "width", 1920, "frame width")
	cmd.Flags().Uint32Var(&height, "height", 1080, "frame height")
	cmd.Flags().Uint64Var(&rateNum, "rate-num", 30, "frame rate numerator")
	cmd.Flags().Uint64Var(&rateDen, "rate-den", 1, "frame rate denominator")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "smpte", "videotestsrc pattern name")
	cmd.Flags().StringVarP(&overlay, "overlay-text", "t", "MXL", "text overlay burned into the frame")
	cmd.Flags().StringVar(&label, "label", "mxl-gst videosrc", "flow label in its descriptor")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}

type videoSrcConfig struct {
	domain  string
	width   uint32
	height  uint32
	rate    rational.Rate
	pattern string
	overlay string
	label   string
}

func runVideoSrc(cfg videoSrcConfig) error {
	inst, err := mxl.CreateInstance(cfg.domain, nil)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	defer inst.Close()

	id := uuid.New()
	descriptor := videoDescriptorJSON(id, cfg.label, cfg.width, cfg.height, cfg.rate)
	if _, err := inst.CreateFlow(descriptor, nil); err != nil {
		return fmt.Errorf("create flow: %w", err)
	}
	defer inst.DestroyFlow(id)
	slog.Info("created video flow", "id", id)

	w, err := inst.CreateFlowWriter(id)
	if err != nil {
		return fmt.Errorf("create flow writer: %w", err)
	}
	defer w.Close()

	pipelineDesc := fmt.Sprintf(
		"videotestsrc is-live=true pattern=%s ! "+
			"video/x-raw,format=v210,width=%d,height=%d,framerate=%d/%d ! "+
			"textoverlay text=\"%s\" font-desc=\"Sans, 36\" ! "+
			"clockoverlay ! "+
			"videoconvert ! "+
			"videoscale ! "+
			"appsink name=mxlappsink max-buffers=16 drop=true",
		cfg.pattern, cfg.width, cfg.height, cfg.rate.Num, cfg.rate.Den, cfg.overlay)

	pipeline, err := gst.NewPipelineFromString(pipelineDesc)
	if err != nil {
		return fmt.Errorf("create gstreamer pipeline: %w", err)
	}
	defer pipeline.Destroy()

	sinkElem := pipeline.GetElementByName("mxlappsink")
	if sinkElem == nil {
		return fmt.Errorf("find appsink: element not found in pipeline")
	}
	sink := app.SinkFromElement(sinkElem)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	defer pipeline.SetState(gst.StateNull)

	for {
		select {
		case <-sigChan:
			slog.Info("videosrc: shutdown requested")
			return nil
		default:
		}

		sample := sink.PullSample()
		if sample == nil {
			slog.Warn("videosrc: failed to pull sample, skipping frame")
			continue
		}
		index := timing.CurrentIndex(cfg.rate)

		buffer := sample.GetBuffer()
		if buffer == nil {
			slog.Warn("videosrc: sample had no buffer, skipping frame")
			continue
		}
		mapInfo := buffer.Map(gst.MapRead)
		data := mapInfo.Bytes()

		info, payload, err := w.OpenGrain(index)
		if err != nil {
			buffer.Unmap()
			slog.Error("videosrc: failed to open grain", "index", index, "error", err)
			continue
		}
		n := copy(payload, data)
		buffer.Unmap()
		if uint32(n) != info.GrainSize {
			slog.Warn("videosrc: frame size does not match grain size", "frame_bytes", n, "grain_size", info.GrainSize)
		}

		if err := w.CommitGrain(index, info.TotalSlices, 0); err != nil {
			slog.Error("videosrc: failed to commit grain", "index", index, "error", err)
		}

		timing.SleepForNs(timing.NsUntilIndex(index+1, cfg.rate))
	}
}

func videoDescriptorJSON(id uuid.UUID, label string, width, height uint32, rate rational.Rate) []byte {
	return []byte(fmt.Sprintf(`{
		"format": "urn:x-nmos:format:video",
		"id": "%s",
		"label": "%s",
		"description": "mxl-gst videosrc output",
		"media_type": "video/v210",
		"tags": {"urn:x-nmos:tag:grouphint/v1.0": ["%s:video"]},
		"grain_rate": {"numerator": %d, "denominator": %d},
		"frame_width": %d,
		"frame_height": %d,
		"interlace_mode": "progressive",
		"colorspace": "BT709"
	}`, id, label, label, rate.Num, rate.Den, width, height))
}
