// Package controller owns the view state of the app: the selected photo,
// the detected faces and the classification label. All state lives on a
// single Loop; detector completions are handed back to it before they
// touch anything, and subscribers receive immutable State snapshots.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/menta2k/vision-overlay/internal/logging"
	"github.com/menta2k/vision-overlay/pkg/detection"
	"github.com/menta2k/vision-overlay/pkg/navigator"
	"github.com/menta2k/vision-overlay/pkg/overlay"
	"github.com/menta2k/vision-overlay/pkg/ranker"
	"github.com/menta2k/vision-overlay/pkg/types"
)

// Informational outcomes for runs that succeeded without results.
var (
	ErrNoFaces  = fmt.Errorf("%w: no faces detected", types.ErrEmptyResults)
	ErrNoLabels = fmt.Errorf("%w: no classification results", types.ErrEmptyResults)

	errNoDetector   = fmt.Errorf("%w: face detector not configured", types.ErrDetectionInvocation)
	errNoClassifier = fmt.Errorf("%w: classifier not configured", types.ErrDetectionInvocation)
)

// State is a snapshot of everything the view renders.
type State struct {
	ErrorMessage string
	InfoMessage  string
	Overlay      *types.Bitmap
	Identifier   string
	Labels       []types.Detection
	FaceIndex    int
	FaceCount    int
	Busy         bool
	Generation   uint64
}

// Options configures a Controller.
type Options struct {
	Faces      detection.FaceDetector
	Classifier detection.Classifier
	Renderer   *overlay.Renderer
	Logger     *zap.Logger
}

// Controller drives detection, classification and face navigation.
type Controller struct {
	loop       *Loop
	faces      detection.FaceDetector
	classifier detection.Classifier
	renderer   *overlay.Renderer
	logger     *zap.Logger

	// Owned by the loop goroutine.
	image       *types.Bitmap
	nav         navigator.Navigator
	state       State
	generation  uint64
	subscribers map[int]func(State)
	nextSub     int

	published atomic.Pointer[State]
}

// New creates a controller bound to loop.
func New(loop *Loop, opts Options) *Controller {
	if opts.Renderer == nil {
		opts.Renderer = overlay.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Controller{
		loop:        loop,
		faces:       opts.Faces,
		classifier:  opts.Classifier,
		renderer:    opts.Renderer,
		logger:      opts.Logger,
		subscribers: make(map[int]func(State)),
	}
	c.published.Store(&State{})
	return c
}

// State returns the most recently published snapshot. Safe from any goroutine.
func (c *Controller) State() State {
	return *c.published.Load()
}

// Subscribe registers fn to receive every published snapshot, starting
// with the current one. fn runs on the loop goroutine and must not block;
// it may call controller actions, which are queued behind it.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	idCh := make(chan int, 1)
	c.loop.Post(func() {
		id := c.nextSub
		c.nextSub++
		c.subscribers[id] = fn
		idCh <- id
		fn(c.State())
	})
	return func() {
		c.loop.Post(func() {
			select {
			case id := <-idCh:
				delete(c.subscribers, id)
			default:
			}
		})
	}
}

// Await blocks until a published snapshot satisfies pred.
func (c *Controller) Await(ctx context.Context, pred func(State) bool) (State, error) {
	matched := make(chan State, 1)
	cancel := c.Subscribe(func(s State) {
		if pred(s) {
			select {
			case matched <- s:
			default:
			}
		}
	})
	defer cancel()

	select {
	case s := <-matched:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	case <-c.loop.Done():
		return State{}, errors.New("controller loop stopped")
	}
}

// SetImage replaces the selected photo and discards every previous result,
// including runs still in flight.
func (c *Controller) SetImage(bm types.Bitmap) {
	c.loop.Post(func() {
		c.generation++
		c.image = &bm
		c.nav.Reset(nil)
		c.state = State{Overlay: &bm, Generation: c.generation}
		c.publish()
	})
}

// RunDetection starts a face detection pass over the selected photo.
func (c *Controller) RunDetection(ctx context.Context) {
	c.loop.Post(func() {
		if c.faces == nil {
			c.fail("detect_faces", "", errNoDetector)
			return
		}
		c.start(ctx, "detect_faces", c.faces.DetectFaces, c.applyFaces)
	})
}

// RunClassification starts a classification pass over the selected photo.
func (c *Controller) RunClassification(ctx context.Context) {
	c.loop.Post(func() {
		if c.classifier == nil {
			c.fail("classify", "", errNoClassifier)
			return
		}
		c.start(ctx, "classify", c.classifier.Classify, c.applyLabels)
	})
}

// NextFace moves the highlight to the next face, wrapping around.
func (c *Controller) NextFace() {
	c.loop.Post(func() {
		c.nav.Next()
		c.renderCurrent()
	})
}

// PreviousFace moves the highlight to the previous face, wrapping around.
func (c *Controller) PreviousFace() {
	c.loop.Post(func() {
		c.nav.Previous()
		c.renderCurrent()
	})
}

type runFunc func(context.Context, types.Bitmap) ([]types.Detection, error)
type applyFunc func(log *zap.Logger, dets []types.Detection)

// start runs on the loop. The adapter executes on its own goroutine and its
// outcome is posted back, tagged with the generation it was started under.
func (c *Controller) start(ctx context.Context, op string, run runFunc, apply applyFunc) {
	if c.image == nil {
		c.fail(op, "", types.ErrNoImage)
		return
	}

	c.generation++
	gen := c.generation
	id := logging.NewInvocationID()
	log := logging.WithOperation(c.logger, op, id)
	bm := *c.image

	// A run replaces the results of any earlier run, of either kind.
	c.nav.Reset(nil)
	c.state = State{
		Overlay:    &bm,
		Busy:       true,
		Generation: gen,
	}
	c.publish()
	log.Debug("invocation started")

	outcome := detection.Async(ctx, func(ctx context.Context) ([]types.Detection, error) {
		return run(ctx, bm)
	})
	go func() {
		out := <-outcome
		c.loop.Post(func() {
			if gen != c.generation {
				log.Debug("discarding stale result", zap.Uint64("current_generation", c.generation))
				return
			}
			c.state.Busy = false
			if out.Err != nil {
				c.fail(op, id, out.Err)
				return
			}
			apply(log, out.Detections)
		})
	}()
}

func (c *Controller) applyFaces(log *zap.Logger, dets []types.Detection) {
	c.nav.Reset(dets)
	log.Info("faces detected", zap.Int("count", len(dets)))
	if len(dets) == 0 {
		c.state.InfoMessage = Message(ErrNoFaces)
	}
	c.renderCurrent()
}

func (c *Controller) applyLabels(log *zap.Logger, dets []types.Detection) {
	ranking := ranker.Rank(dets)
	c.state.Labels = ranking.Items()

	if top, ok := ranking.TopLabel(); ok {
		c.state.Identifier = top
		log.Info("classified", zap.String("label", top), zap.Int("results", ranking.Len()))
	} else {
		c.state.Identifier = ""
		c.state.InfoMessage = Message(ErrNoLabels)
		log.Info("classification returned no results")
	}
	c.publish()
}

// renderCurrent redraws the overlay for the face under the cursor, or shows
// the plain photo when there is none.
func (c *Controller) renderCurrent() {
	c.state.FaceIndex = c.nav.Index()
	c.state.FaceCount = c.nav.Len()
	if c.image == nil {
		c.publish()
		return
	}

	det, _ := c.nav.CurrentDetection()
	out, err := c.renderer.RenderFace(*c.image, det)
	if err != nil {
		c.fail("render", "", err)
		return
	}
	c.state.Overlay = &out
	c.publish()
}

func (c *Controller) fail(op, id string, err error) {
	opErr := &logging.OperationError{Operation: op, InvocationID: id, Err: err}
	c.logger.Warn("operation failed", zap.Object("failure", opErr))
	c.state.Busy = false
	c.state.ErrorMessage = Message(err)
	c.publish()
}

func (c *Controller) publish() {
	snapshot := c.state
	snapshot.Labels = append([]types.Detection(nil), c.state.Labels...)
	c.published.Store(&snapshot)
	for _, fn := range c.subscribers {
		fn(snapshot)
	}
}

// Message converts an error into the text shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch kind := types.KindOf(err); kind {
	case types.ErrNoImage:
		return "No image available"
	case types.ErrDecode:
		return "Failed to read image pixels"
	case types.ErrRender:
		return "Failed to draw detection overlay"
	case types.ErrEmptyResults:
		return capitalize(detail(err, kind, "no results"))
	case context.Canceled, context.DeadlineExceeded:
		return "Detection was interrupted"
	case types.ErrDetectionInvocation:
		if d := detail(err, kind, ""); d != "" {
			return "Failed to perform detection: " + d
		}
		return "Failed to perform detection"
	default:
		return err.Error()
	}
}

// detail strips the kind's own text from err, leaving the wrapped cause.
func detail(err, kind error, fallback string) string {
	msg := err.Error()
	if i := strings.Index(msg, kind.Error()); i >= 0 {
		msg = msg[i+len(kind.Error()):]
	}
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return fallback
	}
	return msg
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
