// Package clear is the simplest frame content: it fills the acquired
// swapchain image with a colour that walks around the hue circle.
package clear

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/mxplusb/epsilon/src/render"
	"github.com/mxplusb/epsilon/src/render/gpu"
)

// Content clears every frame. The zero value is not usable, see New.
type Content struct {
	// Cycle is the time for one full turn of the hue circle.
	Cycle      time.Duration
	Saturation float64
	Value      float64

	now   func() time.Duration
	start time.Duration
}

var _ render.Content = (*Content)(nil)

func New(cycle time.Duration) *Content {
	c := &Content{
		Cycle:      cycle,
		Saturation: 0.6,
		Value:      0.9,
		now:        hrtime.Now,
	}
	c.start = c.now()
	return c
}

// Color is the clear colour at elapsed time d, in linear RGB for an sRGB
// swapchain.
func (c *Content) Color(d time.Duration) [4]float32 {
	hue := 0.0
	if c.Cycle > 0 {
		turns := float64(d) / float64(c.Cycle)
		hue = 360 * (turns - math.Floor(turns))
	}
	r, g, b := colorful.Hsv(hue, c.Saturation, c.Value).LinearRgb()
	return [4]float32{float32(r), float32(g), float32(b), 1}
}

func (c *Content) Record(ctx render.Context, prep render.FramePreparation) (render.FrameSubmission, error) {
	dev, cb := ctx.Device(), ctx.CommandBuffer()
	img, _ := ctx.SwapchainImage(prep.ImageIndex)

	if err := render.NewError(dev.BeginCommandBuffer(cb)); err != nil {
		return render.FrameSubmission{}, errors.Wrap(err, "begin clear")
	}
	// the previous contents are discarded, so the image starts undefined
	dev.CmdImageBarrier(cb, gpu.ImageBarrier{
		Image:     img,
		SrcStage:  gpu.PipelineStageTopOfPipe,
		DstStage:  gpu.PipelineStageTransfer,
		DstAccess: gpu.AccessTransferWrite,
		OldLayout: gpu.ImageLayoutUndefined,
		NewLayout: gpu.ImageLayoutTransferDst,
	})
	dev.CmdClearColorImage(cb, img, gpu.ImageLayoutTransferDst, c.Color(c.now()-c.start))
	dev.CmdImageBarrier(cb, gpu.ImageBarrier{
		Image:     img,
		SrcStage:  gpu.PipelineStageTransfer,
		DstStage:  gpu.PipelineStageBottomOfPipe,
		SrcAccess: gpu.AccessTransferWrite,
		OldLayout: gpu.ImageLayoutTransferDst,
		NewLayout: gpu.ImageLayoutPresentSrc,
	})
	if err := render.NewError(dev.EndCommandBuffer(cb)); err != nil {
		return render.FrameSubmission{}, errors.Wrap(err, "end clear")
	}
	return render.FrameSubmission{DoSubmit: true, ImageIndex: prep.ImageIndex}, nil
}
