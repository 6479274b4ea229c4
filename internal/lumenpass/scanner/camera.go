package scanner

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/service"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/store"
	"github.com/AdityaRanjanp/LumenPass/internal/lumenpass/types"
)

// ErrNoCode is returned by a FrameDecoder when a frame contains no
// readable QR code.  Such frames are dropped without an audit record —
// only decoded payloads reach the verification engine.
var ErrNoCode = errors.New("no qr code in frame")

// FrameSource yields raw frames from a local imaging device.  It is a
// supplied capability: deployments without camera hardware simply never
// construct a CameraScanner.
type FrameSource interface {
	// NextFrame blocks until a frame is available or ctx is done.
	NextFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// FrameDecoder extracts a payload string from image bytes.  The actual
// image-to-string QR primitive is supplied from outside; the scanner
// only orchestrates it.
type FrameDecoder interface {
	DecodePayload(image []byte) (string, error)
}

// Verifier is the slice of the verification engine the scanner needs.
type Verifier interface {
	Verify(ctx context.Context, sub service.Submission) (types.ScanResponse, error)
}

// Config tunes the capture loop.
type Config struct {
	// DecodeEvery decodes only every Nth captured frame; QR decoding is
	// the expensive step and checkpoint cameras run at full frame rate.
	// Defaults to 3.
	DecodeEvery int

	// Cooldown pauses capture after a successful decode so one badge
	// held up to the camera is submitted once, not once per frame.
	// Defaults to 2s.
	Cooldown time.Duration
}

// CameraScanner is the local-camera ingestion adapter: a continuous
// capture/decode/submit loop feeding the verification engine.  At most
// one runs per deployment — there is one physical camera.
type CameraScanner struct {
	source   FrameSource
	decoder  FrameDecoder
	verifier Verifier
	logger   *log.Logger
	cfg      Config

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCameraScanner(source FrameSource, decoder FrameDecoder, verifier Verifier, cfg Config, logger *log.Logger) *CameraScanner {
	if cfg.DecodeEvery <= 0 {
		cfg.DecodeEvery = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Second
	}
	return &CameraScanner{
		source:   source,
		decoder:  decoder,
		verifier: verifier,
		logger:   logger,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// Start begins the capture loop.  It returns immediately; call Stop to
// end the loop and release the device.
func (c *CameraScanner) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.loop(ctx)
	c.logger.Printf("camera scanner started (decode_every=%d, cooldown=%s)", c.cfg.DecodeEvery, c.cfg.Cooldown)
}

// Stop ends the loop, waits for it to finish and closes the source.
func (c *CameraScanner) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
	if err := c.source.Close(); err != nil {
		c.logger.Printf("camera close: %v", err)
	}
}

func (c *CameraScanner) loop(ctx context.Context) {
	defer close(c.done)

	var frameCount int
	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := c.source.NextFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Printf("camera frame error: %v", err)
			if !sleepCtx(ctx, time.Second) {
				return
			}
			continue
		}

		frameCount++
		if frameCount%c.cfg.DecodeEvery != 0 {
			continue
		}

		payload, err := c.decoder.DecodePayload(frame)
		if err != nil {
			if !errors.Is(err, ErrNoCode) {
				c.logger.Printf("frame decode error: %v", err)
			}
			continue
		}

		resp, err := c.verifier.Verify(ctx, service.Submission{
			Payload: payload,
			Source:  store.SourceLocalCamera,
		})
		if err != nil {
			c.logger.Printf("camera verify error: %v", err)
			continue
		}

		if resp.Outcome == service.OutcomeAdmitted {
			c.logger.Printf("camera scan admitted: %s", resp.Subject)
		} else {
			c.logger.Printf("camera scan denied: %s", resp.Reason)
		}

		if !sleepCtx(ctx, c.cfg.Cooldown) {
			return
		}
	}
}

// sleepCtx sleeps for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
