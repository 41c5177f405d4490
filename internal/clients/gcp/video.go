package gcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/services"
	"github.com/yungbote/videonotes-backend/internal/utils"
)

// Window for folding detected on-screen text into one frame sample.
const frameBucketSec = 15.0

// FrameClient samples visual frames via the Video Intelligence API: detected
// on-screen text and shot changes become frame descriptions. It satisfies
// services.FrameProvider.
type FrameClient struct {
	log        *logger.Logger
	client     *videointelligence.Client
	bucket     string
	videoExt   string
	maxRetries int
}

func NewFrameClient(log *logger.Logger) (*FrameClient, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("client", "gcp.Frame")

	c, err := videointelligence.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}

	return &FrameClient{
		log:        slog,
		client:     c,
		bucket:     utils.GetEnv("GCS_VIDEO_BUCKET", "", slog),
		videoExt:   utils.GetEnv("GCS_VIDEO_EXT", ".mp4", slog),
		maxRetries: 4,
	}, nil
}

func (c *FrameClient) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *FrameClient) SampleFrames(ctx context.Context, videoID string) ([]services.RawFrame, error) {
	if c.bucket == "" {
		return nil, fmt.Errorf("GCS_VIDEO_BUCKET not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	gcsURI := fmt.Sprintf("gs://%s/%s%s", c.bucket, videoID, c.videoExt)

	req := &vipb.AnnotateVideoRequest{
		InputUri: gcsURI,
		Features: []vipb.Feature{
			vipb.Feature_TEXT_DETECTION,
			vipb.Feature_SHOT_CHANGE_DETECTION,
		},
		VideoContext: &vipb.VideoContext{
			TextDetectionConfig: &vipb.TextDetectionConfig{},
		},
	}

	resp, err := c.retryAnnotate(ctx, func() (*vipb.AnnotateVideoResponse, error) {
		op, err := c.client.AnnotateVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// No media object: report zero frames rather than an error.
			c.log.Warn("Video object not found in GCS", "video_id", videoID, "uri", gcsURI)
			return nil, nil
		}
		return nil, fmt.Errorf("videointelligence AnnotateVideo: %w", err)
	}

	if resp == nil || len(resp.AnnotationResults) == 0 || resp.AnnotationResults[0] == nil {
		return nil, nil
	}
	ar := resp.AnnotationResults[0]

	frames := framesFromText(ar.TextAnnotations)
	frames = append(frames, framesFromShots(ar.ShotAnnotations, frames)...)
	sort.Slice(frames, func(i, j int) bool { return frames[i].Timestamp < frames[j].Timestamp })

	c.log.Info("Sampled frames", "video_id", videoID, "frames", len(frames))
	return frames, nil
}

// framesFromText buckets detected on-screen text by time window; each bucket
// becomes one frame whose ExtractedText is the concatenated detections.
func framesFromText(ann []*vipb.TextAnnotation) []services.RawFrame {
	type detection struct {
		text string
		at   float64
		conf float64
	}
	detections := []detection{}
	for _, ta := range ann {
		if ta == nil || strings.TrimSpace(ta.Text) == "" {
			continue
		}
		for _, seg := range ta.Segments {
			if seg == nil || seg.Segment == nil {
				continue
			}
			detections = append(detections, detection{
				text: strings.TrimSpace(ta.Text),
				at:   durToSec(seg.Segment.StartTimeOffset),
				conf: float64(seg.Confidence),
			})
		}
	}
	if len(detections) == 0 {
		return nil
	}
	sort.Slice(detections, func(i, j int) bool { return detections[i].at < detections[j].at })

	frames := []services.RawFrame{}
	bucketStart := detections[0].at
	var texts []string
	var confSum float64

	flush := func() {
		if len(texts) == 0 {
			return
		}
		frames = append(frames, services.RawFrame{
			Timestamp:     bucketStart,
			Description:   "on-screen text",
			Elements:      texts,
			ExtractedText: strings.Join(texts, "\n"),
			Confidence:    confSum / float64(len(texts)),
		})
		texts = nil
		confSum = 0
	}

	for _, d := range detections {
		if d.at-bucketStart >= frameBucketSec && len(texts) > 0 {
			flush()
			bucketStart = d.at
		}
		texts = append(texts, d.text)
		confSum += d.conf
	}
	flush()
	return frames
}

// framesFromShots adds a sparse marker frame at each shot boundary that no
// text bucket already covers.
func framesFromShots(shots []*vipb.VideoSegment, existing []services.RawFrame) []services.RawFrame {
	covered := func(at float64) bool {
		for _, f := range existing {
			if at >= f.Timestamp && at < f.Timestamp+frameBucketSec {
				return true
			}
		}
		return false
	}

	frames := []services.RawFrame{}
	for _, sh := range shots {
		if sh == nil {
			continue
		}
		start := durToSec(sh.StartTimeOffset)
		if covered(start) {
			continue
		}
		frames = append(frames, services.RawFrame{
			Timestamp:   start,
			Description: "scene change",
			Confidence:  1.0,
		})
	}
	return frames
}

func (c *FrameClient) retryAnnotate(ctx context.Context, fn func() (*vipb.AnnotateVideoResponse, error)) (*vipb.AnnotateVideoResponse, error) {
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
