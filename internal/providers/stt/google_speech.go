package stt

import (
	"context"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client

	Encoding       speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz   int32
	PricePerMinute float64
}

func NewGoogleSpeech(ctx context.Context, pricePerMinute float64) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{
		c:              c,
		Encoding:       speechpb.RecognitionConfig_WEBM_OPUS,
		SampleRateHz:   48000,
		PricePerMinute: pricePerMinute,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// language example: "en-US", "ru-RU"; bare codes like "en" are accepted by
// the API as well.
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, language string) (Result, error) {
	if language == "" {
		language = "en-US"
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   g.Encoding,
			SampleRateHertz:            g.SampleRateHz,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return Result{}, err
	}

	var text string
	var bestConf float64
	for _, r := range resp.Results {
		for _, alt := range r.Alternatives {
			if alt.Transcript != "" && float64(alt.Confidence) >= bestConf {
				bestConf = float64(alt.Confidence)
			}
		}
		if len(r.Alternatives) > 0 {
			if text != "" {
				text += " "
			}
			text += r.Alternatives[0].Transcript
		}
	}

	out := Result{
		Text:         text,
		NoSpeechProb: 1 - bestConf,
	}
	if bt := resp.GetTotalBilledTime(); bt != nil {
		out.DurationSec = bt.AsDuration().Seconds()
	}
	out.Cost = out.DurationSec / 60 * g.PricePerMinute
	return out, nil
}
