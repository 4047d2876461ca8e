package main

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/mxplusb/epsilon/src/config"
	"github.com/mxplusb/epsilon/src/logging"
	"github.com/mxplusb/epsilon/src/platform/window"
	"github.com/mxplusb/epsilon/src/render"
	"github.com/mxplusb/epsilon/src/render/content/clear"
	"github.com/mxplusb/epsilon/src/render/framestats"
	"github.com/mxplusb/epsilon/src/render/gpu"
	"github.com/mxplusb/epsilon/src/render/vulkan"
)

const statsInterval = 5 * time.Second

func run(cfg config.Config, frames uint64) (err error) {
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	if err := window.Init(); err != nil {
		return err
	}
	defer window.Terminate()

	win, err := window.New(window.Config{
		Title:     cfg.Window.Title,
		Width:     cfg.Window.Width,
		Height:    cfg.Window.Height,
		Resizable: cfg.Window.Resizable,
	})
	if err != nil {
		return err
	}
	defer win.Destroy()

	if err := vulkan.Load(window.VulkanProcAddr()); err != nil {
		return err
	}
	inst, err := vulkan.NewInstance(vulkan.InstanceConfig{
		AppName:    cfg.Window.Title,
		Extensions: win.RequiredInstanceExtensions(),
		Validation: cfg.Render.Validation,
		Logger:     log.With(slog.String("component", "vulkan")),
	})
	if err != nil {
		return err
	}
	defer inst.Destroy()

	surface, err := win.CreateSurface(inst.Handle())
	if err != nil {
		return err
	}
	vc, err := vulkan.Open(inst, surface, log)
	if err != nil {
		return err
	}
	defer vc.Close()

	var modes []gpu.PresentMode
	if cfg.Render.VSync {
		modes = []gpu.PresentMode{}
	}
	sched, err := render.NewScheduler(vc.Render, vc.Surface, win, render.Options{
		BufferingStrategy: cfg.Render.Buffering,
		FenceTimeout:      cfg.Render.FenceTimeout.Std(),
		PresentModes:      modes,
		Logger:            log.With(slog.String("component", "render")),
	})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, sched.Destroy())
	}()
	sched.SetOnInvalidate(func(s *render.SwapchainState) error {
		log.Debug("swapchain rebuilt",
			slog.Uint64("width", uint64(s.Extent.Width)),
			slog.Uint64("height", uint64(s.Extent.Height)))
		return nil
	})

	content := clear.New(time.Duration(cfg.Content.CycleSeconds * float64(time.Second)))
	return loop(win, sched, content, frames, log)
}

func loop(win *window.Window, sched *render.Scheduler, content render.Content, frames uint64, log *slog.Logger) error {
	timer := framestats.New()
	lastReport := time.Now()

	for !win.ShouldClose() {
		window.PollEvents()
		if win.TakeResized() {
			sched.Invalidate()
		}
		if win.Minimised() {
			window.WaitEvents()
			continue
		}

		before := sched.Submitted()
		if err := sched.Frame(content); err != nil {
			if render.IsDeviceLost(err) {
				return errors.Wrap(err, "device lost")
			}
			return err
		}
		timer.Mark(sched.Submitted() > before)

		if time.Since(lastReport) >= statsInterval {
			s := timer.Reset()
			log.Info("frame stats",
				slog.Int("frames", s.Frames),
				slog.Int("skipped", s.Skipped),
				slog.Duration("avg", s.Average()),
				slog.Duration("min", s.Min),
				slog.Duration("max", s.Max),
				slog.Float64("fps", s.FPS()))
			lastReport = time.Now()
		}
		if frames > 0 && sched.Submitted() >= frames {
			log.Info("frame limit reached", slog.Uint64("frames", frames))
			break
		}
	}
	return nil
}
