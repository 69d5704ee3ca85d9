package narration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	DefaultGCPVoice    = "en-US-Neural2-D"
	DefaultGCPLanguage = "en-US"
)

// GCPClient is the part of the Cloud Text-to-Speech API the narrator uses
type GCPClient interface {
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
}

var _ GCPClient = (*texttospeech.Client)(nil)

// GCPSynthesizer narrates with Google Cloud Text-to-Speech
type GCPSynthesizer struct {
	client GCPClient
	voice  string
}

// NewGCPSynthesizer authenticates with Application Default Credentials
func NewGCPSynthesizer(ctx context.Context) (*GCPSynthesizer, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP TTS client: %w", err)
	}
	return NewGCPSynthesizerWithClient(client), nil
}

// NewGCPSynthesizerWithClient wraps an existing client
func NewGCPSynthesizerWithClient(client GCPClient) *GCPSynthesizer {
	return &GCPSynthesizer{client: client, voice: DefaultGCPVoice}
}

// Name returns the provider name
func (s *GCPSynthesizer) Name() string {
	return "gcp"
}

// ListVoices returns one entry per voice and language code
func (s *GCPSynthesizer) ListVoices(ctx context.Context) ([]Voice, error) {
	resp, err := s.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, gcpError("failed to list GCP voices", err)
	}

	var voices []Voice
	for _, v := range resp.Voices {
		gender := "unknown"
		switch v.SsmlGender {
		case texttospeechpb.SsmlVoiceGender_MALE:
			gender = "male"
		case texttospeechpb.SsmlVoiceGender_FEMALE:
			gender = "female"
		case texttospeechpb.SsmlVoiceGender_NEUTRAL:
			gender = "neutral"
		}

		for _, lang := range v.LanguageCodes {
			voices = append(voices, Voice{
				ID:          v.Name,
				Name:        v.Name,
				Language:    lang,
				Gender:      gender,
				Description: engineType(v.Name) + " voice",
			})
		}
	}

	log.Debug().Int("count", len(voices)).Msg("Listed GCP TTS voices")
	return voices, nil
}

// Synthesize generates audio with Cloud TTS
func (s *GCPSynthesizer) Synthesize(ctx context.Context, text string, opts Options) (io.ReadCloser, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voice := s.voice
	if opts.Voice != "" {
		voice = opts.Voice
	}

	// en-US-Neural2-D speaks en-US
	lang := opts.Language
	if lang == "" {
		lang = DefaultGCPLanguage
		if parts := strings.Split(voice, "-"); len(parts) >= 2 {
			lang = parts[0] + "-" + parts[1]
		}
	}

	input := &texttospeechpb.SynthesisInput{
		InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
	}
	if isSSML(text) {
		input.InputSource = &texttospeechpb.SynthesisInput_Ssml{Ssml: text}
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: input,
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   audioEncoding(opts.Format),
			SpeakingRate:    clampSpeed(opts.Speed),
			SampleRateHertz: sampleRate(opts.SampleRate),
		},
	}

	log.Debug().
		Str("voice", voice).
		Str("language", lang).
		Str("format", opts.Format).
		Msg("Making GCP TTS synthesis request")

	resp, err := s.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, gcpError("failed to synthesize speech", err)
	}

	return io.NopCloser(bytes.NewReader(resp.AudioContent)), nil
}

// gcpError points credential failures at Application Default Credentials
func gcpError(msg string, err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%s (check Application Default Credentials): %w", msg, err)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

func engineType(voiceName string) string {
	name := strings.ToLower(voiceName)
	switch {
	case strings.Contains(name, "wavenet"):
		return "WaveNet"
	case strings.Contains(name, "neural2"):
		return "Neural2"
	case strings.Contains(name, "studio"):
		return "Studio"
	case strings.Contains(name, "journey"):
		return "Journey"
	default:
		return "Standard"
	}
}

func audioEncoding(format string) texttospeechpb.AudioEncoding {
	switch strings.ToLower(format) {
	case "wav", "linear16":
		return texttospeechpb.AudioEncoding_LINEAR16
	case "ogg", "opus":
		return texttospeechpb.AudioEncoding_OGG_OPUS
	default:
		return texttospeechpb.AudioEncoding_MP3
	}
}

func sampleRate(rate string) int32 {
	switch rate {
	case "8000":
		return 8000
	case "16000":
		return 16000
	case "22050":
		return 22050
	case "24000":
		return 24000
	case "44100":
		return 44100
	case "48000":
		return 48000
	default:
		return 0
	}
}
