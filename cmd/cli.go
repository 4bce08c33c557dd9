// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"io"

	"ledviz/internal/config"
	"ledviz/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// One-off commands that run instead of the pipeline.
const (
	CommandList    = "list"
	CommandDevices = "devices"
)

// ErrHandled is returned when the command line was fully handled by the
// parser itself, as with --help and --version.
var ErrHandled = errors.New("command line handled")

// flagValues mirrors the options that can be set from the command line.
// Only flags the user actually passed are applied over the loaded config.
type flagValues struct {
	configPath string

	source          string
	file            string
	loop            bool
	deviceID        int
	deviceName      string
	inputChannels   int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	gate            float64

	fftSize     int
	numChannels int
	maxFreq     float64
	decayTime   float64
	noAGC       bool
	preAGC      bool
	split       bool

	serial     string
	baud       int
	color      string
	colorMode  string
	accent     int
	meter      bool
	logFrames  bool
	udpAddress string
	wsAddress  string

	record   bool
	output   string
	bitDepth int

	verbose bool
}

// ParseArgs parses args (without the program name), loads the config file
// and applies explicit flags over it. The returned config has Command set
// when a one-off command was requested.
func ParseArgs(args []string, out io.Writer) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		v       flagValues
		command string
		ran     bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			return nil
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandList,
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			command, ran = CommandList, true
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandDevices,
		Short: "Browse audio devices interactively and print the chosen settings",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			command, ran = CommandDevices, true
		},
	})

	f := rootCmd.PersistentFlags()
	f.StringVarP(&v.configPath, "config", "f", "",
		"Path to a YAML config file (default: ./config.yaml or ./ledviz.yaml)")

	// Audio Source Configuration
	f.StringVar(&v.source, "source", config.DefaultSource,
		"Audio source: device, file or synth")
	f.StringVar(&v.file, "file", "",
		"Audio file to play for the file source (wav, mp3, ogg, flac); implies --source file")
	f.BoolVar(&v.loop, "loop", false,
		"Restart the file source when it ends")
	f.IntVarP(&v.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	f.StringVarP(&v.deviceName, "device-name", "n", "",
		"Select the input device by name (case-insensitive substring)")
	f.IntVarP(&v.inputChannels, "channels", "c", config.DefaultInputChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	f.Float64VarP(&v.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	f.IntVarP(&v.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	f.BoolVarP(&v.lowLatency, "low-latency", "l", false,
		"Use low latency mode for real-time processing")
	f.Float64Var(&v.gate, "gate", 0,
		"Noise gate threshold in [0,1); 0 disables the gate")

	// Analysis Configuration
	f.IntVar(&v.fftSize, "fft-size", config.DefaultFFTSize,
		"Analysis window length in samples")
	f.IntVar(&v.numChannels, "leds", config.DefaultNumChannels,
		"Number of output channels (LEDs per half strip)")
	f.Float64Var(&v.maxFreq, "max-freq", config.DefaultMaxFrequency,
		"Highest frequency mapped onto the strip in Hz")
	f.Float64Var(&v.decayTime, "decay", config.DefaultDecayTime,
		"Release time constant in seconds")
	f.BoolVar(&v.noAGC, "no-agc", false,
		"Disable spectral gain control")
	f.BoolVar(&v.preAGC, "pre-agc", false,
		"Enable time-domain gain control before windowing")
	f.BoolVar(&v.split, "split", false,
		"Analyse left and right separately, half the LEDs each")

	// Output Configuration
	f.StringVarP(&v.serial, "serial", "p", "",
		"Adalight serial device path (e.g. /dev/ttyUSB0)")
	f.IntVar(&v.baud, "baud", config.DefaultBaudRate,
		"Serial baud rate of the LED controller")
	f.StringVar(&v.color, "color", config.DefaultColor,
		"Base LED colour as hex RRGGBB")
	f.StringVar(&v.colorMode, "color-mode", config.DefaultColorMode,
		"Colour mode: flat, hdr, superhdr or rainbow")
	f.IntVar(&v.accent, "accent", config.DefaultAccentLength,
		"LEDs per impact accent bar")
	f.BoolVarP(&v.meter, "meter", "m", false,
		"Show a live terminal meter")
	f.BoolVar(&v.logFrames, "log-frames", false,
		"Log every frame at debug level")
	f.StringVar(&v.udpAddress, "udp", "",
		"Send frames over UDP to host:port")
	f.StringVar(&v.wsAddress, "ws", "",
		"Serve frames over WebSocket on the given listen address")

	// Recording Configuration
	f.BoolVarP(&v.record, "record", "r", false,
		"Record audio from the specified input device")
	f.StringVarP(&v.output, "output", "o", "",
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")
	f.IntVar(&v.bitDepth, "bit-depth", 16,
		"Recording bit depth: 16, 24 or 32")

	// Debug Configuration
	f.BoolVarP(&v.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI. A nil slice would make cobra fall back to os.Args.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if !ran {
		return nil, ErrHandled
	}

	if command != "" {
		cfg := config.Default()
		cfg.Command = command
		v.apply(rootCmd.PersistentFlags(), cfg)
		return cfg, nil
	}

	cfg, err := config.LoadConfig(v.configPath)
	if err != nil {
		return nil, err
	}
	v.apply(rootCmd.PersistentFlags(), cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply copies every flag the user set onto cfg.
func (v *flagValues) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string) bool { return fs.Changed(name) }

	if set("source") {
		cfg.Audio.Source = v.source
	}
	if set("file") {
		cfg.Audio.File = v.file
		if !set("source") {
			cfg.Audio.Source = config.SourceFile
		}
	}
	if set("loop") {
		cfg.Audio.Loop = v.loop
	}
	if set("device") {
		cfg.Audio.InputDevice = v.deviceID
	}
	if set("device-name") {
		cfg.Audio.DeviceName = v.deviceName
	}
	if set("channels") {
		cfg.Audio.InputChannels = v.inputChannels
	}
	if set("sample-rate") {
		cfg.Audio.SampleRate = v.sampleRate
	}
	if set("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = v.framesPerBuffer
	}
	if set("low-latency") {
		cfg.Audio.LowLatency = v.lowLatency
	}
	if set("gate") {
		cfg.Audio.GateThreshold = v.gate
	}

	if set("fft-size") {
		cfg.Analysis.FFTSize = v.fftSize
	}
	if set("leds") {
		cfg.Analysis.NumChannels = v.numChannels
	}
	if set("max-freq") {
		cfg.Analysis.MaxFrequency = v.maxFreq
	}
	if set("decay") {
		cfg.Analysis.DecayTime = v.decayTime
	}
	if set("no-agc") {
		cfg.Analysis.AGCEnabled = !v.noAGC
	}
	if set("pre-agc") {
		cfg.Analysis.PreAGC = v.preAGC
	}
	if set("split") {
		cfg.Analysis.Split = v.split
	}

	if set("serial") {
		cfg.Output.SerialDevice = v.serial
	}
	if set("baud") {
		cfg.Output.BaudRate = v.baud
	}
	if set("color") {
		cfg.Output.Color = v.color
	}
	if set("color-mode") {
		cfg.Output.ColorMode = v.colorMode
	}
	if set("accent") {
		cfg.Output.AccentLength = v.accent
	}
	if set("meter") {
		cfg.Output.Meter = v.meter
	}
	if set("log-frames") {
		cfg.Output.LogFrames = v.logFrames
	}
	if set("udp") {
		cfg.Transport.UDPEnabled = v.udpAddress != ""
		cfg.Transport.UDPTargetAddress = v.udpAddress
	}
	if set("ws") {
		cfg.Transport.WebSocketEnabled = v.wsAddress != ""
		cfg.Transport.WebSocketAddress = v.wsAddress
	}

	if set("record") {
		cfg.Recording.Enabled = v.record
	}
	if set("output") {
		cfg.Recording.File = v.output
	}
	if set("bit-depth") {
		cfg.Recording.BitDepth = v.bitDepth
	}

	if set("verbose") && v.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
}

