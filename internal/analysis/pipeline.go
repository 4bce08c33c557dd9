// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"ledviz/internal/config"
	"ledviz/internal/fft"
	"ledviz/internal/log"
	"ledviz/internal/queue"
	"ledviz/internal/sample"
)

// statsEvery is the number of cycles between debug statistics lines.
const statsEvery = 300

// Config holds everything a Pipeline needs. SampleRate is the rate the
// producer actually delivers, which may differ from the requested one.
type Config struct {
	FFTSize         int
	SampleRate      float64
	Window          WindowFunc
	Transform       string
	OverlapFraction float64
	Exponent        float64
	Scale           float64
	DecayTime       float64
	DecayEpsilon    float64
	MaxFrequency    float64
	NumChannels     int
	AGC             bool
	AGCTarget       float64
	AGCWindowLength int
	AGCBase         float64
	AGCEqualizer    float64
	PreAGC          bool
	PreAGCTarget    float64
	BoomCount       int
	ThinkTime       time.Duration

	// Split analyses left and right separately; NumChannels is then the
	// channel count of each side.
	Split bool
}

// NewConfig builds a pipeline Config from the analysis section of the
// application configuration and the producer's sample rate.
func NewConfig(a config.AnalysisConfig, sampleRate float64) (Config, error) {
	if err := a.Validate(sampleRate); err != nil {
		return Config{}, err
	}
	w, err := ParseWindowFunc(a.Window)
	if err != nil {
		return Config{}, err
	}
	return Config{
		FFTSize:         a.FFTSize,
		SampleRate:      sampleRate,
		Window:          w,
		Transform:       a.Transform,
		OverlapFraction: a.OverlapFraction,
		Exponent:        a.Exponent,
		Scale:           a.Scale,
		DecayTime:       a.DecayTime,
		DecayEpsilon:    a.DecayEpsilon,
		MaxFrequency:    a.MaxFrequency,
		NumChannels:     a.SideChannels(),
		AGC:             a.AGCEnabled,
		AGCTarget:       a.AGCTarget,
		AGCWindowLength: a.AGCWindowLength,
		AGCBase:         a.AGCBase,
		AGCEqualizer:    a.AGCEqualizer,
		PreAGC:          a.PreAGC,
		PreAGCTarget:    a.PreAGCTarget,
		BoomCount:       a.BoomCount,
		ThinkTime:       a.ThinkTime,
		Split:           a.Split,
	}, nil
}

// Drain returns the number of samples dropped from the window before each
// refill: the part of the window not retained by the overlap.
func (c Config) Drain() int {
	d := c.FFTSize - int(math.Round(float64(c.FFTSize)*c.OverlapFraction))
	return max(d, 1)
}

// UpdateRate returns how many cycles per second the smoothers run at. Run
// completes one cycle per think time; a think time of zero falls back to
// the rate fresh windows arrive at, SampleRate/Drain.
func (c Config) UpdateRate() float64 {
	if c.ThinkTime > 0 {
		return float64(time.Second) / float64(c.ThinkTime)
	}
	return c.SampleRate / float64(c.Drain())
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Cycles   uint64 // Completed cycles.
	Overruns uint64 // Cycles that took longer than the think time.
	Starved  uint64 // Cycles run on a window that was not full.
	Skipped  uint64 // Queued samples discarded to keep the window current.
}

// chain is the stateful stage sequence for one analysed signal: the mono
// mix, or one side in split mode. Each chain owns its scratch buffers.
type chain struct {
	window *SampleWindow
	preAGC *TimeAGC
	agc    *SpectralAGC
	decay  *Decay
	binmap *BinMap
	impact *Impact

	energies []float64
	gained   []float64
	smoothed []float64
	levels   []float64
	accent   float64
}

func newChain(cfg Config, bins int, rate float64) (*chain, error) {
	c := &chain{
		energies: make([]float64, bins),
		gained:   make([]float64, bins),
		smoothed: make([]float64, bins),
		levels:   make([]float64, cfg.NumChannels),
	}
	var err error
	if c.window, err = NewSampleWindow(cfg.FFTSize); err != nil {
		return nil, err
	}
	if cfg.PreAGC {
		if c.preAGC, err = NewTimeAGC(cfg.PreAGCTarget, cfg.AGCWindowLength); err != nil {
			return nil, err
		}
	}
	if cfg.AGC {
		if c.agc, err = NewSpectralAGC(cfg.AGCTarget, cfg.AGCWindowLength, cfg.AGCBase, cfg.AGCEqualizer); err != nil {
			return nil, err
		}
	}
	if c.decay, err = NewDecay(bins, rate, cfg.DecayTime, cfg.DecayEpsilon, 1); err != nil {
		return nil, err
	}
	if c.binmap, err = NewBinMap(cfg.FFTSize, cfg.SampleRate, cfg.MaxFrequency, cfg.NumChannels); err != nil {
		return nil, err
	}
	if c.impact, err = NewImpact(cfg.BoomCount, rate, cfg.DecayTime, cfg.DecayEpsilon); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *chain) reset() {
	c.window.Reset()
	if c.preAGC != nil {
		c.preAGC.Reset()
	}
	if c.agc != nil {
		c.agc.Reset()
	}
	c.decay.Reset()
	c.impact.Reset()
	clear(c.levels)
	c.accent = 0
}

// Pipeline runs the analysis stages over owned scratch buffers. It is the
// transformer worker: one goroutine calls Step or Run.
type Pipeline struct {
	cfg   Config
	drain int

	taper     *WindowFunction
	transform fft.Transformer
	energy    *Energy
	bins      []complex128

	left  *chain // The mono mix unless split.
	right *chain // Nil unless split.

	seq      uint64
	cycles   atomic.Uint64
	overruns atomic.Uint64
	starved  atomic.Uint64
	skipped  atomic.Uint64
}

// NewPipeline constructs every stage, failing on the first invalid option.
// A nil transformer selects the backend named by cfg.Transform.
func NewPipeline(cfg Config, tr fft.Transformer) (*Pipeline, error) {
	if cfg.FFTSize < 4 {
		return nil, fmt.Errorf("%w: fft size %d", ErrInvalidParameter, cfg.FFTSize)
	}
	if cfg.OverlapFraction < 0 || cfg.OverlapFraction >= 1 {
		return nil, fmt.Errorf("%w: overlap fraction %g", ErrInvalidParameter, cfg.OverlapFraction)
	}
	if !(cfg.SampleRate > 0) {
		return nil, fmt.Errorf("%w: sample rate %g", ErrInvalidParameter, cfg.SampleRate)
	}
	if cfg.ThinkTime <= 0 {
		return nil, fmt.Errorf("%w: think time %s", ErrInvalidParameter, cfg.ThinkTime)
	}
	if cfg.Scale == 0 {
		cfg.Scale = 1
	}

	var err error
	if tr == nil {
		if tr, err = fft.New(cfg.Transform, cfg.FFTSize); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
		}
	}
	if tr.Size() != cfg.FFTSize {
		return nil, fmt.Errorf("%w: transform size %d, fft size %d", ErrInvalidParameter, tr.Size(), cfg.FFTSize)
	}

	p := &Pipeline{
		cfg:       cfg,
		drain:     cfg.Drain(),
		transform: tr,
		bins:      make([]complex128, cfg.FFTSize),
	}
	if p.taper, err = NewWindowFunction(cfg.FFTSize, cfg.Window); err != nil {
		return nil, err
	}
	if p.energy, err = NewEnergy(cfg.FFTSize, cfg.Exponent); err != nil {
		return nil, err
	}
	if cfg.BoomCount > p.energy.Bins() {
		return nil, fmt.Errorf("%w: boom count %d exceeds %d bins", ErrInvalidParameter, cfg.BoomCount, p.energy.Bins())
	}

	rate := cfg.UpdateRate()
	if p.left, err = newChain(cfg, p.energy.Bins(), rate); err != nil {
		return nil, err
	}
	if cfg.Split {
		if p.right, err = newChain(cfg, p.energy.Bins(), rate); err != nil {
			return nil, err
		}
	}

	if !fft.FastSize(cfg.FFTSize) {
		log.Debugf("Analysis: fft size %d is not a power of two, using mixed radix transform (nearest fast size %d)",
			cfg.FFTSize, fft.NextFastSize(cfg.FFTSize))
	}
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// BinMap returns the channel boundary schedule in use.
func (p *Pipeline) BinMap() *BinMap { return p.left.binmap }

// Step runs one cycle: refill the window from pull, then taper, transform,
// extract, gain-control, smooth and map. The returned levels slice is
// owned by the pipeline and overwritten by the next Step. In split mode
// the results are the left side's; Right returns the other one.
func (p *Pipeline) Step(pull func() (sample.Pair, bool)) (levels []float64, impact float64, beat bool) {
	return p.step(pull, p.drain)
}

func (p *Pipeline) step(pull func() (sample.Pair, bool), drain int) ([]float64, float64, bool) {
	var beat bool
	if p.right == nil {
		view := p.left.window.Refill(drain, pull)
		beat = p.analyse(p.left, view)
	} else {
		l, r := RefillStereo(p.left.window, p.right.window, drain, pull)
		beat = p.analyse(p.left, l)
		if p.analyse(p.right, r) {
			beat = true
		}
	}
	if !p.left.window.Full() {
		p.starved.Add(1)
	}
	p.cycles.Add(1)
	return p.left.levels, p.left.accent, beat
}

// analyse runs the stages after the window over view, leaving the results
// in c, and reports a beat.
func (p *Pipeline) analyse(c *chain, view []float64) bool {
	if c.preAGC != nil {
		c.preAGC.Process(view, view, 1)
	}

	p.taper.Apply(p.bins, view)
	p.transform.Transform(p.bins, p.bins)
	p.energy.Extract(c.energies, p.bins)

	var beat bool
	c.accent, beat = c.impact.Process(c.energies)

	spectrum := c.energies
	if c.agc != nil {
		c.agc.Process(c.energies, c.gained, 1)
		spectrum = c.gained
	}
	c.decay.Process(spectrum, c.smoothed, 1)
	c.binmap.Process(c.smoothed, c.levels, p.cfg.Scale)
	return beat
}

// Right returns the right side's levels and impact from the last Step,
// or nil and 0 when the pipeline is not split.
func (p *Pipeline) Right() ([]float64, float64) {
	if p.right == nil {
		return nil, 0
	}
	return p.right.levels, p.right.accent
}

func discard(sample.Pair) {}

// catchUp bounds the backlog a cycle consumes. Anything queued beyond one
// window is older than the window can hold and is discarded, so the cycle
// analyses the newest contiguous audio. It returns the drain for the
// cycle: the configured one, or the whole backlog when more has arrived.
func (p *Pipeline) catchUp(samples *queue.Queue[sample.Pair]) int {
	backlog := samples.Len()
	if excess := backlog - p.cfg.FFTSize; excess > 0 {
		n := samples.Drain(excess, discard)
		p.skipped.Add(uint64(n))
		backlog -= n
	}
	return max(p.drain, backlog)
}

// Run is the transformer worker loop. Each cycle consumes what was queued
// since the previous one, publishes one frame with a non-blocking push and
// sleeps for the rest of the think time. Overruns start the next cycle
// immediately. Run returns nil once ctx is cancelled, checked at every
// cycle boundary and during the pacing sleep.
func (p *Pipeline) Run(ctx context.Context, samples *queue.Queue[sample.Pair], frames *queue.Queue[sample.Frame]) error {
	log.Infof("Analysis: pipeline started (fft=%d, window=%s, transform=%s, channels=%d, split=%t, drain=%d, rate=%.1f Hz, update=%.1f Hz)",
		p.cfg.FFTSize, p.cfg.Window, p.transform.Name(), p.cfg.NumChannels, p.cfg.Split, p.drain, p.cfg.SampleRate, p.cfg.UpdateRate())

	pull := samples.TryPop
	timer := time.NewTimer(p.cfg.ThinkTime)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			break
		}
		begin := time.Now()

		levels, impact, beat := p.step(pull, p.catchUp(samples))
		frame := sample.Frame{
			Seq:    p.seq,
			Time:   begin,
			Levels: slices.Clone(levels),
			Impact: impact,
			Beat:   beat,
		}
		if p.right != nil {
			frame.LevelsR = slices.Clone(p.right.levels)
			frame.ImpactR = p.right.accent
		}
		frames.TryPush(frame)
		p.seq++

		if p.seq%statsEvery == 0 && log.IsDebug() {
			s := p.Stats()
			log.WithFields(log.Fields{
				"cycles":          s.Cycles,
				"overruns":        s.Overruns,
				"starved":         s.Starved,
				"samples_skipped": s.Skipped,
				"samples_queued":  samples.Len(),
				"samples_lost":    samples.Dropped(),
				"frames_lost":     frames.Dropped(),
			}).Debug("Analysis: pipeline stats")
		}

		remaining := p.cfg.ThinkTime - time.Since(begin)
		if remaining <= 0 {
			p.overruns.Add(1)
			continue
		}
		timer.Reset(remaining)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	log.Infof("Analysis: pipeline stopped after %d cycles", p.cycles.Load())
	return nil
}

// Stats returns a snapshot of the pipeline counters. Safe to call from
// any goroutine.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Cycles:   p.cycles.Load(),
		Overruns: p.overruns.Load(),
		Starved:  p.starved.Load(),
		Skipped:  p.skipped.Load(),
	}
}

// Reset clears all stage state, the frame sequence and the counters, as
// if the pipeline were new. It must not race Step or Run.
func (p *Pipeline) Reset() {
	p.left.reset()
	if p.right != nil {
		p.right.reset()
	}
	p.seq = 0
	p.cycles.Store(0)
	p.overruns.Store(0)
	p.starved.Store(0)
	p.skipped.Store(0)
}
