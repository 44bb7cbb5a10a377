// ABOUTME: Test doubles for the player's preparer and decoder
// ABOUTME: Files are real but empty, audio comes from generated blocks
package player

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/resonix-audio/resonix-go/internal/broadcast"
	"github.com/resonix-audio/resonix-go/internal/decoder"
	"github.com/resonix-audio/resonix-go/internal/source"
	"github.com/resonix-audio/resonix-go/pkg/audio"
)

type fakePreparer struct {
	dir string

	mu          sync.Mutex
	prepared    []string
	transcoded  []string
	removed     []string
	prepareErr  error
	transcodeFn func(path string) (source.Prepared, error)
}

func newFakePreparer(t *testing.T) *fakePreparer {
	return &fakePreparer{dir: t.TempDir()}
}

func (f *fakePreparer) Prepare(_ context.Context, uri string) (source.Prepared, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepared = append(f.prepared, uri)
	if f.prepareErr != nil {
		return source.Prepared{}, f.prepareErr
	}
	path := filepath.Join(f.dir, filepath.Base(uri))
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return source.Prepared{}, err
	}
	return source.Prepared{Path: path}, nil
}

func (f *fakePreparer) Transcode(_ context.Context, path string) (source.Prepared, error) {
	f.mu.Lock()
	f.transcoded = append(f.transcoded, path)
	fn := f.transcodeFn
	f.mu.Unlock()
	if fn != nil {
		return fn(path)
	}
	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".mp3"
	if err := os.WriteFile(out, nil, 0o644); err != nil {
		return source.Prepared{}, err
	}
	return source.Prepared{Path: out, Temp: true}, nil
}

func (f *fakePreparer) Remove(path string) {
	f.mu.Lock()
	f.removed = append(f.removed, path)
	f.mu.Unlock()
}

func (f *fakePreparer) removedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakePreparer) transcodeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.transcoded...)
}

// fakeDecoder yields blocks of blockLen samples. Block i carries the value
// level(i) on both channels.
type fakeDecoder struct {
	blocks   int
	blockLen int
	level    func(i int) float32
	failAt   int // return failErr at this block when > 0
	failErr  error
	info     decoder.Info

	next   int
	closed bool
}

func (d *fakeDecoder) Next() (audio.Block, error) {
	if d.failAt > 0 && d.next == d.failAt {
		return audio.Block{}, d.failErr
	}
	if d.next >= d.blocks {
		return audio.Block{}, io.EOF
	}
	v := float32(0.5)
	if d.level != nil {
		v = d.level(d.next)
	}
	d.next++

	b := audio.Block{Left: make([]float32, d.blockLen), Right: make([]float32, d.blockLen)}
	for i := range b.Left {
		b.Left[i] = v
		b.Right[i] = v
	}
	return b, nil
}

func (d *fakeDecoder) Info() decoder.Info { return d.info }

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

// opener hands out decoders built by factory, keyed on the file name
type opener struct {
	mu      sync.Mutex
	opens   []string
	factory func(name string) (Decoder, error)
}

func (o *opener) open(path string) (Decoder, error) {
	name := filepath.Base(path)
	o.mu.Lock()
	o.opens = append(o.opens, name)
	o.mu.Unlock()
	return o.factory(name)
}

func (o *opener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opens)
}

// holdingResolver passes identifiers through, except hold which blocks
// until the context ends
type holdingResolver struct {
	hold    string
	entered chan struct{}
}

func (r *holdingResolver) ResolveWithRetry(ctx context.Context, identifier string) (string, error) {
	if identifier != r.hold {
		return identifier, nil
	}
	close(r.entered)
	<-ctx.Done()
	return "", ctx.Err()
}

func shortTracks(frames int) func(string) (Decoder, error) {
	return func(string) (Decoder, error) {
		return &fakeDecoder{blocks: frames, blockLen: audio.FrameSamples}, nil
	}
}

func newTestPlayer(t *testing.T, uri string, factory func(string) (Decoder, error)) (*Player, *fakePreparer, *opener) {
	t.Helper()
	prep := newFakePreparer(t)
	op := &opener{factory: factory}
	p := New(Options{
		ID:           "test",
		URI:          uri,
		Preparer:     prep,
		Open:         op.open,
		TickInterval: time.Millisecond,
	})
	t.Cleanup(func() {
		p.Stop()
		select {
		case <-p.Done():
		case <-time.After(time.Second):
		}
	})
	return p, prep, op
}

// collectEvents reads events until stop returns true, the stream closes or
// the timeout passes
func collectEvents(t *testing.T, rx *broadcast.Receiver[Event], stop func(Event) bool) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var events []Event
	for {
		ev, err := rx.Recv(ctx)
		if err != nil {
			var lagged *broadcast.LaggedError
			if errors.As(err, &lagged) {
				continue
			}
			if errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("timed out waiting for events, got %d so far", len(events))
			}
			return events
		}
		events = append(events, ev)
		if stop != nil && stop(ev) {
			return events
		}
	}
}

func waitDone(t *testing.T, p *Player) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session did not end")
	}
}

func countOp(events []Event, op string) int {
	n := 0
	for _, ev := range events {
		if ev.Op == op {
			n++
		}
	}
	return n
}
