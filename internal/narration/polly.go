package narration

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PollyClient is the part of the Polly API the narrator uses
type PollyClient interface {
	DescribeVoices(ctx context.Context, params *polly.DescribeVoicesInput, optFns ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error)
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollySynthesizer narrates with Amazon Polly
type PollySynthesizer struct {
	client PollyClient
}

// NewPollySynthesizer loads the default AWS configuration for region
func NewPollySynthesizer(ctx context.Context, region string) (*PollySynthesizer, error) {
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewPollySynthesizerWithClient(polly.NewFromConfig(cfg)), nil
}

// NewPollySynthesizerWithClient wraps an existing client
func NewPollySynthesizerWithClient(client PollyClient) *PollySynthesizer {
	return &PollySynthesizer{client: client}
}

// Name returns the provider name
func (s *PollySynthesizer) Name() string {
	return "polly"
}

// ListVoices returns the voices Polly offers
func (s *PollySynthesizer) ListVoices(ctx context.Context) ([]Voice, error) {
	result, err := s.client.DescribeVoices(ctx, &polly.DescribeVoicesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list Polly voices: %w", err)
	}

	voices := make([]Voice, 0, len(result.Voices))
	for _, v := range result.Voices {
		voice := Voice{
			ID:       string(v.Id),
			Name:     aws.ToString(v.Name),
			Language: string(v.LanguageCode),
			Description: fmt.Sprintf("%s voice, %s engine supported",
				cases.Title(language.English).String(string(v.Gender)),
				formatEngines(v.SupportedEngines)),
		}

		switch v.Gender {
		case types.GenderFemale:
			voice.Gender = "female"
		case types.GenderMale:
			voice.Gender = "male"
		}

		voices = append(voices, voice)
	}

	return voices, nil
}

// Synthesize generates audio with Polly
func (s *PollySynthesizer) Synthesize(ctx context.Context, text string, opts Options) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voiceID := opts.Voice
	if voiceID == "" {
		voiceID = "Joanna"
	}

	var format types.OutputFormat
	switch strings.ToLower(opts.Format) {
	case "", "mp3":
		format = types.OutputFormatMp3
	case "ogg":
		format = types.OutputFormatOggVorbis
	case "pcm":
		format = types.OutputFormatPcm
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", opts.Format)
	}

	engine := types.EngineNeural
	switch strings.ToLower(opts.Engine) {
	case "", "neural":
	case "standard":
		engine = types.EngineStandard
	case "long-form":
		engine = types.EngineLongForm
	case "generative":
		engine = types.EngineGenerative
	default:
		log.Warn().Str("engine", opts.Engine).Msg("Unknown engine, using neural")
	}

	input := &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		VoiceId:      types.VoiceId(voiceID),
		OutputFormat: format,
		Engine:       engine,
		TextType:     types.TextTypeText,
	}
	if isSSML(text) {
		input.TextType = types.TextTypeSsml
	}

	switch opts.SampleRate {
	case "":
	case "8000", "16000", "22050", "24000":
		input.SampleRate = aws.String(opts.SampleRate)
	default:
		log.Warn().Str("sample_rate", opts.SampleRate).Msg("Invalid sample rate, using default")
	}

	log.Debug().
		Str("voice_id", voiceID).
		Str("output_format", string(format)).
		Str("engine", string(engine)).
		Msg("Making Polly synthesis request")

	result, err := s.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	return result.AudioStream, nil
}

func formatEngines(engines []types.Engine) string {
	if len(engines) == 0 {
		return "unknown"
	}

	names := make([]string, len(engines))
	for i, engine := range engines {
		names[i] = string(engine)
	}
	return strings.Join(names, ", ")
}

// isSSML reports whether text carries SSML markup
func isSSML(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "<speak") ||
		strings.Contains(trimmed, "<prosody") ||
		strings.Contains(trimmed, "<break")
}
