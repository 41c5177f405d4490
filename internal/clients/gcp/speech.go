package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/services"
	"github.com/yungbote/videonotes-backend/internal/utils"
)

const cueWindowSec = 10.0

// CaptionClient produces caption cues by transcribing the video's audio track
// from GCS with Cloud Speech-to-Text. It satisfies services.CaptionProvider.
type CaptionClient struct {
	log        *logger.Logger
	client     *speech.Client
	bucket     string
	audioExt   string
	language   string
	maxRetries int
}

func NewCaptionClient(log *logger.Logger) (*CaptionClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("client", "gcp.Caption")

	c, err := speech.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &CaptionClient{
		log:        slog,
		client:     c,
		bucket:     utils.GetEnv("GCS_AUDIO_BUCKET", "", slog),
		audioExt:   utils.GetEnv("GCS_AUDIO_EXT", ".flac", slog),
		language:   utils.GetEnv("SPEECH_LANGUAGE_CODE", "en-US", slog),
		maxRetries: 4,
	}, nil
}

func (c *CaptionClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *CaptionClient) FetchCaptions(ctx context.Context, videoID string) (*services.RawCaptionTrack, error) {
	if c.bucket == "" {
		return nil, fmt.Errorf("GCS_AUDIO_BUCKET not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	gcsURI := fmt.Sprintf("gs://%s/%s%s", c.bucket, videoID, c.audioExt)

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               c.language,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
			Encoding:                   inferEncoding(c.audioExt),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI},
		},
	}

	resp, err := c.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := c.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// No audio object means no captions for this video.
			return nil, apperr.ErrNoTranscriptAvailable
		}
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	cues := cuesFromResponse(resp)
	if len(cues) == 0 {
		return nil, apperr.ErrNoTranscriptAvailable
	}

	c.log.Info("Fetched captions", "video_id", videoID, "cues", len(cues))
	return &services.RawCaptionTrack{
		Cues:     cues,
		Language: c.language,
	}, nil
}

type recognizedWord struct {
	word  string
	start float64
	end   float64
	spk   int
	conf  float64
}

// cuesFromResponse groups word offsets into time-windowed cues, splitting on
// speaker change.
func cuesFromResponse(resp *speechpb.LongRunningRecognizeResponse) []services.RawCaptionCue {
	if resp == nil {
		return nil
	}

	words := []recognizedWord{}
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		if len(alt.Words) == 0 {
			// Result without offsets: keep as one zero-anchored cue later.
			words = append(words, recognizedWord{word: strings.TrimSpace(alt.Transcript), conf: float64(alt.Confidence)})
			continue
		}
		for _, w := range alt.Words {
			if w == nil {
				continue
			}
			words = append(words, recognizedWord{
				word:  w.Word,
				start: durToSec(w.StartTime),
				end:   durToSec(w.EndTime),
				spk:   int(w.SpeakerTag),
				conf:  float64(w.Confidence),
			})
		}
	}
	if len(words) == 0 {
		return nil
	}

	cues := []services.RawCaptionCue{}
	curStart := words[0].start
	curEnd := words[0].end
	curSpk := words[0].spk
	var buf strings.Builder
	var confSum float64
	var confN int

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text == "" {
			return
		}
		conf := 0.0
		if confN > 0 {
			conf = confSum / float64(confN)
		}
		speaker := ""
		if curSpk > 0 {
			speaker = fmt.Sprintf("speaker_%d", curSpk)
		}
		cues = append(cues, services.RawCaptionCue{
			Start:      curStart,
			End:        curEnd,
			Text:       text,
			Confidence: conf,
			Speaker:    speaker,
		})
		buf.Reset()
		confSum = 0
		confN = 0
	}

	for _, w := range words {
		splitSpeaker := w.spk != 0 && w.spk != curSpk
		splitWindow := w.start-curStart >= cueWindowSec
		if (splitSpeaker || splitWindow) && buf.Len() > 0 {
			flush()
			curStart = w.start
			curEnd = w.end
			curSpk = w.spk
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(w.word)
		if w.end > curEnd {
			curEnd = w.end
		}
		if w.conf > 0 {
			confSum += w.conf
			confN++
		}
	}
	flush()
	return cues
}

func inferEncoding(ext string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "wav":
		return speechpb.RecognitionConfig_LINEAR16
	case "flac":
		return speechpb.RecognitionConfig_FLAC
	case "mp3":
		return speechpb.RecognitionConfig_MP3
	case "ogg", "opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func durToSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.Seconds) + float64(d.Nanos)/1e9
}

func (c *CaptionClient) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 750 * time.Millisecond
	var last error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == c.maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}
