package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/norasector/phasewave/pkg/dsp/viz"
	"github.com/norasector/phasewave/pkg/synth"
	"github.com/norasector/phasewave/pkg/synth/automation"
	"github.com/norasector/phasewave/pkg/synth/config"
	"github.com/norasector/phasewave/pkg/synth/output"
	"github.com/norasector/phasewave/pkg/util"
)

func buildOutputs(cfg *config.Config, metrics api.WriteAPI) ([]synth.AudioOutput, func(), error) {
	var outputs []synth.AudioOutput
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	if raw := cfg.Outputs.Raw; raw != nil {
		var dest io.Writer = os.Stdout
		if raw.Path != "" && raw.Path != "-" {
			f, err := os.Create(raw.Path)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, f)
			dest = f
		}
		outputs = append(outputs, output.NewSimpleAudioOutput(dest, raw.Channels))
	}
	if wav := cfg.Outputs.Wav; wav != nil {
		outputs = append(outputs, output.NewWavFileOutput(wav.Path, cfg.OutputSampleRate, wav.Channel))
	}
	if stream := cfg.Outputs.Stream; stream != nil {
		outputs = append(outputs, output.NewTaggedOpusFrameUDPOutput(stream.Destinations, cfg.OutputSampleRate, stream.Channels, metrics))
	}
	if pb := cfg.Outputs.Playback; pb != nil {
		outputs = append(outputs, output.NewPlaybackOutput(cfg.OutputSampleRate, pb.Channel, pb.BufferBlocks*cfg.BlockSize))
	}

	return outputs, closeAll, nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "phasewave.yaml", "YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")

	flag.Parse()
	if *debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configFile).Msg("error loading config file")
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if cfg.InfluxDB.Host != "" {
		client := influxdb2.NewClient(cfg.InfluxDB.Host, "")
		defer client.Close()
		writeAPI = client.WriteAPI(cfg.InfluxDB.Organization, cfg.InfluxDB.Bucket)
		defer writeAPI.Flush()
	}

	outputs, closeOutputs, err := buildOutputs(cfg, writeAPI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create outputs")
	}
	defer closeOutputs()

	opts := []synth.Option{
		synth.WithInfluxDB(writeAPI),
		synth.WithLogger(log.Logger),
	}
	if cfg.VizServer.Port != 0 {
		opts = append(opts, synth.WithImageServer(viz.NewServer(cfg.VizServer.Port, cfg.VizServer.UpdateInterval)))
	}
	if cfg.AutomationScript != "" {
		script, err := automation.LoadFile(cfg.AutomationScript)
		if err != nil {
			log.Fatal().Err(err).Str("script", cfg.AutomationScript).Msg("failed to load automation script")
		}
		defer script.Close()
		opts = append(opts, synth.WithAutomation(script))
	}

	engineOpts := synth.OptionsFromConfig(cfg)
	engineOpts.AudioOutputs = outputs

	engine, err := synth.New(engineOpts, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create engine")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {

		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return engine.Stop()
	})

	eg.Go(func() error {
		if err := engine.Start(ctx); err != nil {
			return err
		}
		// Rendering finished on its own; release the signal watcher.
		return context.Canceled
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("exited program")
		os.Exit(1)
	}
}
