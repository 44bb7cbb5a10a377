// ABOUTME: Player session: one identifier, its queue, filters and output streams
// ABOUTME: Control calls are non-blocking signals observed by the scheduler on its next tick
package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/resonix-audio/resonix-go/internal/broadcast"
	"github.com/resonix-audio/resonix-go/internal/decoder"
	"github.com/resonix-audio/resonix-go/internal/source"
	"github.com/resonix-audio/resonix-go/pkg/audio"
	"github.com/resonix-audio/resonix-go/pkg/audio/dsp"
)

const (
	DefaultFrameBuffer = 1024
	DefaultEventBuffer = 128

	pauseSignalBuffer = 8
	skipSignalBuffer  = 8
)

// ErrAlreadyStarted is returned by a second Start call
var ErrAlreadyStarted = errors.New("player already started")

// Resolver turns an identifier into something the preparer can open
type Resolver interface {
	ResolveWithRetry(ctx context.Context, identifier string) (string, error)
}

// Preparer fetches resolved sources and transcodes unsupported ones
type Preparer interface {
	Prepare(ctx context.Context, uri string) (source.Prepared, error)
	Transcode(ctx context.Context, path string) (source.Prepared, error)
	// Remove deletes path when it is a node-owned temp file
	Remove(path string)
}

// Decoder yields canonical blocks until io.EOF
type Decoder interface {
	Next() (audio.Block, error)
	Info() decoder.Info
	Close() error
}

// OpenFunc opens a decoder for a local file
type OpenFunc func(path string) (Decoder, error)

// Options configures a player
type Options struct {
	ID       string
	URI      string
	Metadata json.RawMessage

	// Resolver may be nil, identifiers are then prepared as given
	Resolver Resolver
	Preparer Preparer
	Open     OpenFunc

	FrameBuffer  int
	EventBuffer  int
	TickInterval time.Duration
}

func openDecoder(path string) (Decoder, error) {
	d, err := decoder.Open(path)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// State is the scheduler's coarse state
type State int

const (
	StateIdle State = iota
	StateResolving
	StateDecoding
	StateStreaming
	StatePaused
	StateTrackEnding
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateDecoding:
		return "decoding"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	case StateTrackEnding:
		return "track_ending"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Player is one streaming session
type Player struct {
	id   string
	opts Options

	filters *dsp.Filters
	chain   *dsp.Chain
	queue   Queue

	frames *broadcast.Ring[[]int16]
	events *broadcast.Ring[Event]

	mu       sync.RWMutex
	loop     LoopMode
	info     TrackInfo
	current  TrackItem
	metadata json.RawMessage
	state    State
	err      error

	pauseCh chan bool
	skipCh  chan struct{}
	stopCh  chan struct{}
	// owned by the scheduler goroutine
	paused bool

	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// New creates a player. Start must be called to begin streaming.
func New(opts Options) *Player {
	if opts.Preparer == nil {
		opts.Preparer = source.NewPreparer(source.Options{})
	}
	if opts.Open == nil {
		opts.Open = openDecoder
	}
	if opts.FrameBuffer <= 0 {
		opts.FrameBuffer = DefaultFrameBuffer
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = audio.FrameDurationMs * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		id:       opts.ID,
		opts:     opts,
		filters:  dsp.NewFilters(),
		chain:    dsp.NewChain(),
		frames:   broadcast.New[[]int16](opts.FrameBuffer),
		events:   broadcast.New[Event](opts.EventBuffer),
		current:  NewTrackItem(opts.URI, nil),
		metadata: cloneRaw(opts.Metadata),
		pauseCh:  make(chan bool, pauseSignalBuffer),
		skipCh:   make(chan struct{}, skipSignalBuffer),
		stopCh:   make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// ID returns the session id
func (p *Player) ID() string { return p.id }

// Start prepares the first track and launches the scheduler. A failure is
// returned directly and the session never streams.
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	item := p.current
	p.mu.Unlock()

	// stopping the player also aborts a slow first resolve
	prepCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.ctx, cancel)
	dec, err := p.prepare(prepCtx, &item)
	stop()
	cancel()

	if err != nil {
		p.finish(err)
		return err
	}

	p.beginTrack(item, dec)
	go p.run(item, dec)
	return nil
}

// Done is closed when the session has ended
func (p *Player) Done() <-chan struct{} { return p.done }

// Err returns the error that ended the session, if any
func (p *Player) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// State returns the scheduler state
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Player) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Play resumes a paused session
func (p *Player) Play() { p.signalPause(false) }

// Pause holds frame output until Play
func (p *Player) Pause() { p.signalPause(true) }

func (p *Player) signalPause(paused bool) {
	select {
	case p.pauseCh <- paused:
	default:
		log.Printf("Player %s: pause signal dropped (buffer full)", p.id)
	}
}

// Skip ends the current track early
func (p *Player) Skip() {
	select {
	case p.skipCh <- struct{}{}:
	default:
	}
}

// Stop ends the session on the next tick. Await Done for teardown.
func (p *Player) Stop() {
	select {
	case p.stopCh <- struct{}{}:
	default:
	}
	p.cancel()
}

// SetVolume sets the output gain, negative values become 0
func (p *Player) SetVolume(v float32) {
	p.filters.SetVolume(max(0, v))
}

// Volume returns the output gain
func (p *Player) Volume() float32 { return p.filters.Volume() }

// SetEQ applies band gains
func (p *Player) SetEQ(bands []dsp.Band) { p.filters.SetEQ(bands) }

// EQ returns the band gains in dB
func (p *Player) EQ() [dsp.NumBands]float32 { return p.filters.EQ() }

// Enqueue adds uri to the queue and returns the new item's id
func (p *Player) Enqueue(uri string, metadata json.RawMessage) string {
	return p.EnqueuePrepared(uri, "", metadata)
}

// EnqueuePrepared queues uri with a local file that was already fetched
func (p *Player) EnqueuePrepared(uri, preparedPath string, metadata json.RawMessage) string {
	item := NewTrackItem(uri, cloneRaw(metadata))
	item.PreparedPath = preparedPath
	p.queue.Push(item)
	p.events.Send(queueUpdateEvent(p.id, p.queue.Snapshot()))
	return item.ID
}

// Queue returns a snapshot of the queue
func (p *Player) Queue() []TrackItem { return p.queue.Snapshot() }

// LoopMode returns the current loop mode
func (p *Player) LoopMode() LoopMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loop
}

// SetLoopMode changes what plays after the current track
func (p *Player) SetLoopMode(mode LoopMode) {
	p.mu.Lock()
	p.loop = mode
	p.mu.Unlock()
	p.events.Send(loopModeEvent(p.id, mode))
}

// Subscribe returns a receiver of 20 ms interleaved stereo frames
func (p *Player) Subscribe() *broadcast.Receiver[[]int16] { return p.frames.Subscribe() }

// SubscribeEvents returns a receiver of lifecycle events
func (p *Player) SubscribeEvents() *broadcast.Receiver[Event] { return p.events.Subscribe() }

// Listeners returns the number of frame subscribers
func (p *Player) Listeners() int { return p.frames.Receivers() }

// TrackInfo returns a snapshot of the current track
func (p *Player) TrackInfo() TrackInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.info
}

// Current returns the item being played
func (p *Player) Current() TrackItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Metadata returns a copy of the session metadata
func (p *Player) Metadata() json.RawMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneRaw(p.metadata)
}

// SetMetadata replaces the session metadata
func (p *Player) SetMetadata(metadata json.RawMessage) error {
	if len(metadata) > 0 && !json.Valid(metadata) {
		return fmt.Errorf("invalid metadata json")
	}
	p.mu.Lock()
	p.metadata = cloneRaw(metadata)
	p.mu.Unlock()
	return nil
}

// MergeMetadata merges object keys into the session metadata
func (p *Player) MergeMetadata(patch json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	merged, err := mergeMetadata(p.metadata, patch)
	if err != nil {
		return err
	}
	p.metadata = merged
	return nil
}
