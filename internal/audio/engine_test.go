// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"strconv"
	"testing"
	"time"

	"ledviz/internal/config"
	"ledviz/internal/queue"
	"ledviz/internal/sample"

	"github.com/gordonklaus/portaudio"
)

const (
	testSampleRate = 44100.0
	testFrameSize  = 256
)

const (
	lowThreshold  = int32(math.MaxInt32 / 1000)
	highThreshold = int32(math.MaxInt32 / 2)
)

var (
	quietBuffer = fillBuffer(testFrameSize*2, 1<<16)
	testBuffer  = fillBuffer(testFrameSize*2, 1<<26)
	loudBuffer  = fillBuffer(testFrameSize*2, 1<<30)
)

// fillBuffer returns alternating-sign interleaved PCM peaking at peak.
func fillBuffer(n int, peak int32) []int32 {
	buf := make([]int32, n)
	for i := range buf {
		v := peak / int32(1+i%4)
		if i%2 == 1 {
			v = -v
		}
		buf[i] = v
	}
	return buf
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', 3, 64) }

func absFloat(f float64) float64 { return math.Abs(f) }

func testDevice(inputs int) *portaudio.DeviceInfo {
	return &portaudio.DeviceInfo{
		Index:                   0,
		Name:                    "Test Loopback",
		MaxInputChannels:        inputs,
		DefaultSampleRate:       testSampleRate,
		DefaultLowInputLatency:  5 * time.Millisecond,
		DefaultHighInputLatency: 50 * time.Millisecond,
	}
}

func newTestEngine(t testing.TB, channels int) (*Engine, *queue.Queue[sample.Pair]) {
	t.Helper()
	cfg := config.Default().Audio
	cfg.SampleRate = testSampleRate
	cfg.FramesPerBuffer = testFrameSize
	cfg.InputChannels = channels

	e := newEngine(cfg, testDevice(2))
	q, err := queue.New[sample.Pair](testFrameSize*4, queue.DropNewest)
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}
	e.out.Store(q)
	return e, q
}

func TestNewEngineSettings(t *testing.T) {
	tests := []struct {
		name         string
		requested    int
		deviceInputs int
		lowLatency   bool
		wantChannels int
		wantLatency  time.Duration
	}{
		{"stereo on stereo device", 2, 2, false, 2, 50 * time.Millisecond},
		{"stereo on mono device", 2, 1, false, 1, 50 * time.Millisecond},
		{"mono low latency", 1, 2, true, 1, 5 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default().Audio
			cfg.InputChannels = tt.requested
			cfg.LowLatency = tt.lowLatency

			e := newEngine(cfg, testDevice(tt.deviceInputs))
			if e.Channels() != tt.wantChannels {
				t.Errorf("Channels() = %d, want %d", e.Channels(), tt.wantChannels)
			}
			if e.inputLatency != tt.wantLatency {
				t.Errorf("latency = %v, want %v", e.inputLatency, tt.wantLatency)
			}
			if len(e.inputBuffer) != cfg.FramesPerBuffer*tt.wantChannels {
				t.Errorf("input buffer = %d, want %d", len(e.inputBuffer), cfg.FramesPerBuffer*tt.wantChannels)
			}
			if e.SampleRate() != cfg.SampleRate {
				t.Errorf("SampleRate() = %v, want %v", e.SampleRate(), cfg.SampleRate)
			}
		})
	}
}

func TestNewEngineGateFromConfig(t *testing.T) {
	cfg := config.Default().Audio
	cfg.GateThreshold = 0.25

	e := newEngine(cfg, testDevice(2))
	if !e.GateEnabled() {
		t.Fatal("gate should be enabled when gate_threshold > 0")
	}
	if absFloat(e.GetGateThreshold()-0.25) > 0.001 {
		t.Errorf("threshold = %.3f, want 0.250", e.GetGateThreshold())
	}

	cfg.GateThreshold = 0
	if newEngine(cfg, testDevice(2)).GateEnabled() {
		t.Error("gate should be disabled when gate_threshold is 0")
	}
}

func TestProcessBufferStereo(t *testing.T) {
	e, q := newTestEngine(t, 2)

	in := []int32{1 << 30, -(1 << 30), 0, math.MaxInt32}
	e.processInputStream(in)

	if q.Len() != 2 {
		t.Fatalf("queued %d pairs, want 2", q.Len())
	}
	p, _ := q.TryPop()
	if absFloat(float64(p.L)-0.5) > 1e-6 || absFloat(float64(p.R)+0.5) > 1e-6 {
		t.Errorf("first pair = %+v, want {0.5 -0.5}", p)
	}
	p, _ = q.TryPop()
	if p.L != 0 || absFloat(float64(p.R)-1) > 1e-6 {
		t.Errorf("second pair = %+v, want {0 ~1}", p)
	}
}

func TestProcessBufferMonoDuplicates(t *testing.T) {
	e, q := newTestEngine(t, 1)

	e.processInputStream([]int32{1 << 29, -(1 << 29), 1 << 28})

	if q.Len() != 3 {
		t.Fatalf("queued %d pairs, want 3", q.Len())
	}
	for q.Len() > 0 {
		p, _ := q.TryPop()
		if p.L != p.R {
			t.Errorf("mono pair not duplicated: %+v", p)
		}
	}
}

func TestProcessBufferGateSubstitutesSilence(t *testing.T) {
	e, q := newTestEngine(t, 2)
	e.SetGateThreshold(0.1)
	e.EnableGate()

	e.processInputStream(quietBuffer)

	if want := len(quietBuffer) / 2; q.Len() != want {
		t.Fatalf("queued %d pairs, want %d", q.Len(), want)
	}
	for q.Len() > 0 {
		if p, _ := q.TryPop(); p != (sample.Pair{}) {
			t.Fatalf("gated pair = %+v, want silence", p)
		}
	}
	if e.gated.Load() != 1 {
		t.Errorf("gated = %d, want 1", e.gated.Load())
	}
}

func TestProcessBufferCountsDrops(t *testing.T) {
	e, q := newTestEngine(t, 2)

	for range 5 {
		e.processInputStream(testBuffer)
	}

	if q.Len() != q.Cap() {
		t.Errorf("queue len = %d, want full (%d)", q.Len(), q.Cap())
	}
	total := uint64(5 * len(testBuffer) / 2)
	if e.pushed.Load()+e.Dropped() != total {
		t.Errorf("pushed+dropped = %d, want %d", e.pushed.Load()+e.Dropped(), total)
	}
	if e.Dropped() == 0 {
		t.Error("expected drops once the queue filled")
	}
}

func TestProcessBufferWithoutQueue(t *testing.T) {
	cfg := config.Default().Audio
	e := newEngine(cfg, testDevice(2))

	// Callbacks may fire before Run publishes the queue.
	e.processInputStream(testBuffer)
	if e.pushed.Load() != 0 {
		t.Errorf("pushed = %d before a queue was set", e.pushed.Load())
	}
}

func TestCloseWithoutStream(t *testing.T) {
	e, _ := newTestEngine(t, 2)
	if err := e.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

// TestBranchlessAbsPerformance verifies the branchless absolute value calculation has no allocations
func TestBranchlessAbsPerformance(t *testing.T) {
	samples := make([]int32, 1024)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = int32(i * 1000)
		} else {
			samples[i] = int32(-i * 1000)
		}
	}

	allocs := testing.AllocsPerRun(100, func() {
		_ = peakAmplitude(samples)
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in branchless abs, got %.1f", allocs)
	}
}

func TestProcessBufferHotPathAllocs(t *testing.T) {
	e, q := newTestEngine(t, 2)
	e.EnableGate()
	e.SetGateThreshold(0.001)

	allocs := testing.AllocsPerRun(100, func() {
		e.processBuffer(testBuffer)
		q.Drain(q.Len(), func(sample.Pair) {})
	})

	if allocs > 0 {
		t.Errorf("Expected zero allocations in capture hot path, got %.1f", allocs)
	}
}

func BenchmarkHotPath(b *testing.B) {
	e, q := newTestEngine(b, 2)
	e.EnableGate()
	e.SetGateThreshold(0.001)

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		e.processBuffer(testBuffer)
		q.Drain(q.Len(), func(sample.Pair) {})
	}
}
