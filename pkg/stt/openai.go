package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"voxchat/pkg/audioconv"
)

// OpenAI transcribes through the hosted transcription endpoint. Used as the
// fallback when no local model is loaded or the local pass fails.
type OpenAI struct {
	client openai.Client
	model  openai.AudioModel
}

// NewOpenAI builds the API transcriber. httpClient may be nil; pass one to
// route through a proxy.
func NewOpenAI(apiKey string, httpClient *http.Client) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("empty api key")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  openai.AudioModelWhisper1,
	}, nil
}

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) TranscribePCM(ctx context.Context, pcm []float32, opt Options) (Result, error) {
	if len(pcm) == 0 {
		return Result{}, errors.New("no audio samples provided")
	}

	body, err := audioconv.EncodeWAV(pcm, audioconv.TargetRate)
	if err != nil {
		return Result{}, fmt.Errorf("encode wav: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(body), "clip.wav", "audio/wav"),
		Model: o.model,
	}
	if opt.Language != "" && opt.Language != "auto" {
		params.Language = openai.String(opt.Language)
	}
	if opt.InitialPrompt != "" {
		params.Prompt = openai.String(opt.InitialPrompt)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("transcription request: %w", err)
	}

	return Result{Text: resp.Text, Language: opt.Language}, nil
}

var _ Transcriber = (*OpenAI)(nil)
