// main package for plomtts-client, a command line client for a PlomTTS server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/config"
	"github.com/book-expert/plomtts-service/internal/core"
	"github.com/book-expert/plomtts-service/internal/objectstore"
	"github.com/book-expert/plomtts-service/internal/speech"
	"github.com/book-expert/plomtts-service/internal/tts"
	"github.com/book-expert/plomtts-service/internal/voices"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagServer  = "server"
	flagTimeout = "timeout"
	flagLogDir  = "log-dir"
	flagText    = "text"
	flagVoice   = "voice"
	flagOutput  = "output"
	flagNATSURL = "nats-url"
	flagBucket  = "bucket"
)

// Error and log messages.
const (
	errTextRequired       = "either --text or an argument must be provided"
	msgServiceHealthy     = "PlomTTS server at %s is healthy\n"
	msgGenerated          = "Generated %d bytes of %s audio: %s\n"
	msgFetched            = "Fetched %d bytes of %s: %s\n"
	logClientInitialized  = "PlomTTS client initialized (server: %s)"
	logFileName           = "plomtts-client.log"
	defaultOutputFileName = "output.mp3"
)

var errInvalidParameters = errors.New("invalid synthesis parameters")

type clientOptions struct {
	server  string
	timeout time.Duration
	logDir  string
}

type speakOptions struct {
	text   string
	voice  string
	output string

	maxNewTokens      int
	chunkLength       int
	topP              float64
	repetitionPenalty float64
	temperature       float64
	seed              int
}

func newRootCmd() *cobra.Command {
	opts := &clientOptions{}

	rootCmd := &cobra.Command{
		Use:           "plomtts-client",
		Short:         "Talk to a PlomTTS speech server",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, flagServer, core.DefaultServerURL, "PlomTTS server URL")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, flagTimeout, tts.DefaultTimeout, "Per-call network timeout")
	rootCmd.PersistentFlags().StringVar(&opts.logDir, flagLogDir, os.TempDir(), "Directory for the client log file")

	rootCmd.AddCommand(newHealthCmd(opts), newVoicesCmd(opts), newSpeakCmd(opts), newFetchCmd())

	return rootCmd
}

func newHealthCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := tts.NewHTTPClient(opts.server, opts.timeout)

			err := client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), msgServiceHealthy, client.BaseURL())

			return nil
		},
	}
}

func newVoicesCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the voices of the server, sorted by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := voices.Fetch(cmd.Context(), tts.NewHTTPClient(opts.server, opts.timeout))
			if err != nil {
				return err
			}

			for _, voice := range catalog {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", voice.ID, voice.Name)
			}

			return nil
		},
	}
}

func newSpeakCmd(opts *clientOptions) *cobra.Command {
	speakOpts := &speakOptions{}

	cmd := &cobra.Command{
		Use:   "speak [TEXT]",
		Short: "Synthesize text to an MP3 file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if speakOpts.text == "" && len(args) == 1 {
				speakOpts.text = args[0]
			}

			if strings.TrimSpace(speakOpts.text) == "" {
				return errors.New(errTextRequired)
			}

			return runSpeak(cmd, opts, speakOpts)
		},
	}

	defaults := core.DefaultParameters()
	flags := cmd.Flags()
	flags.StringVar(&speakOpts.text, flagText, "", "Text to convert to speech")
	flags.StringVar(&speakOpts.voice, flagVoice, "", "Voice id (defaults to the first voice by name)")
	flags.StringVarP(&speakOpts.output, flagOutput, "o", defaultOutputFileName, "Output file path (.mp3)")
	flags.IntVar(&speakOpts.maxNewTokens, core.OptionMaxNewTokens, defaults.MaxNewTokens, "Maximum new tokens (0 = no limit)")
	flags.IntVar(&speakOpts.chunkLength, core.OptionChunkLength, defaults.ChunkLength, "Chunk length [1, 1000]")
	flags.Float64Var(&speakOpts.topP, core.OptionTopP, defaults.TopP, "Top-p sampling [0, 1]")
	flags.Float64Var(&speakOpts.repetitionPenalty, core.OptionRepetitionPenalty, defaults.RepetitionPenalty,
		"Repetition penalty [1, 2]")
	flags.Float64Var(&speakOpts.temperature, core.OptionTemperature, defaults.Temperature, "Temperature [0.1, 2]")
	flags.IntVar(&speakOpts.seed, core.OptionSeed, defaults.Seed, "Random seed (0 = random)")

	return cmd
}

type fetchOptions struct {
	natsURL string
	bucket  string
	output  string
}

func newFetchCmd() *cobra.Command {
	fetchOpts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch KEY",
		Short: "Download a clip published by plomtts-service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, fetchOpts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&fetchOpts.natsURL, flagNATSURL, config.DefaultNATSURL, "NATS server URL")
	flags.StringVar(&fetchOpts.bucket, flagBucket, config.DefaultAudioObjectStoreBucket, "Audio object store bucket")
	flags.StringVarP(&fetchOpts.output, flagOutput, "o", "", "Output file path (defaults to KEY)")

	return cmd
}

func runFetch(cmd *cobra.Command, fetchOpts *fetchOptions, key string) error {
	natsConnection, err := nats.Connect(fetchOpts.natsURL, nats.Name("plomtts-client"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", fetchOpts.natsURL, err)
	}

	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, fetchOpts.bucket)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	data, err := store.Download(ctx, key)
	if err != nil {
		return err
	}

	contentType, err := store.ContentType(ctx, key)
	if err != nil {
		return err
	}

	output := fetchOpts.output
	if output == "" {
		output = key
	}

	const outputFileMode = 0o644

	err = os.WriteFile(output, data, outputFileMode)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), msgFetched, len(data), contentType, output)

	return nil
}

// overrides returns the parameters the user actually set on the command line.
func (o *speakOptions) overrides(cmd *cobra.Command) core.ParameterOverrides {
	var overrides core.ParameterOverrides

	flags := cmd.Flags()
	if flags.Changed(core.OptionMaxNewTokens) {
		overrides.MaxNewTokens = &o.maxNewTokens
	}

	if flags.Changed(core.OptionChunkLength) {
		overrides.ChunkLength = &o.chunkLength
	}

	if flags.Changed(core.OptionTopP) {
		overrides.TopP = &o.topP
	}

	if flags.Changed(core.OptionRepetitionPenalty) {
		overrides.RepetitionPenalty = &o.repetitionPenalty
	}

	if flags.Changed(core.OptionTemperature) {
		overrides.Temperature = &o.temperature
	}

	if flags.Changed(core.OptionSeed) {
		overrides.Seed = &o.seed
	}

	return overrides
}

func runSpeak(cmd *cobra.Command, opts *clientOptions, speakOpts *speakOptions) error {
	overrides := speakOpts.overrides(cmd)

	problems := overrides.Validate()
	if len(problems) > 0 {
		messages := make([]string, 0, len(problems))
		for _, err := range problems {
			messages = append(messages, err.Error())
		}

		sort.Strings(messages)

		return fmt.Errorf("%w: %s", errInvalidParameters, strings.Join(messages, "; "))
	}

	log, err := logger.New(opts.logDir, logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() { _ = log.Close() }()

	log.Info(logClientInitialized, opts.server)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	entity, err := speech.NewEntity(ctx, tts.NewHTTPClient(opts.server, opts.timeout), core.Entry{
		ID:      "cli",
		Title:   core.DefaultTitle,
		Data:    core.EntryData{ServerURL: opts.server},
		Options: core.EntryOptions{Voice: speakOpts.voice},
	}, log)
	if err != nil {
		return err
	}

	audio, err := entity.GetAudio(ctx, speakOpts.text, entity.DefaultLanguage(), speech.Options{
		ParameterOverrides: overrides,
	})
	if err != nil {
		return err
	}

	const outputFileMode = 0o644

	err = os.WriteFile(speakOpts.output, audio.Data, outputFileMode)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", speakOpts.output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), msgGenerated, len(audio.Data), audio.Format, speakOpts.output)

	return nil
}

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
