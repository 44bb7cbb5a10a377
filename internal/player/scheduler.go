// ABOUTME: Per-session scheduler driven by a 20 ms ticker
// ABOUTME: Decodes, filters and frames audio, then picks the next track by loop mode
package player

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"github.com/resonix-audio/resonix-go/internal/decoder"
	"github.com/resonix-audio/resonix-go/internal/resolver"
	"github.com/resonix-audio/resonix-go/pkg/audio"
)

const (
	// refill the sample buffer while fewer frames than this are pending
	lowWaterFrames = 4
	// compact once this many frames have been emitted past the buffer start
	compactFrames = 8
	// refresh the reported position every n frames
	positionEvery = 5
)

type endReason int

const (
	endFinished endReason = iota
	endSkipped
	endStopped
	endFailed
)

func (r endReason) String() string {
	switch r {
	case endSkipped:
		return ReasonSkipped
	case endStopped:
		return ReasonStopped
	case endFailed:
		return ReasonFailed
	default:
		return ReasonFinished
	}
}

// prepare resolves, fetches and opens item. A decoder that rejects the
// codec gets one transcoded retry. item.PreparedPath is set on success.
func (p *Player) prepare(ctx context.Context, item *TrackItem) (Decoder, error) {
	p.setState(StateResolving)

	path := item.PreparedPath
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			log.Printf("Player %s: prepared file for %s is gone, fetching again", p.id, item.URI)
			path = ""
		}
	}

	if path == "" {
		target := item.URI
		if p.opts.Resolver != nil {
			resolved, err := p.opts.Resolver.ResolveWithRetry(ctx, item.URI)
			if err != nil {
				return nil, err
			}
			target = resolved
		}

		prepared, err := p.opts.Preparer.Prepare(ctx, target)
		if err != nil {
			// the resolver may have downloaded target itself
			p.opts.Preparer.Remove(target)
			return nil, err
		}
		path = prepared.Path
	}

	p.setState(StateDecoding)
	dec, err := p.opts.Open(path)
	if err != nil {
		if !errors.Is(err, decoder.ErrUnsupportedCodec) && !errors.Is(err, decoder.ErrUnsupportedFeature) {
			p.opts.Preparer.Remove(path)
			return nil, err
		}

		log.Printf("Player %s: %v, transcoding", p.id, err)
		transcoded, terr := p.opts.Preparer.Transcode(ctx, path)
		p.opts.Preparer.Remove(path)
		if terr != nil {
			return nil, terr
		}
		path = transcoded.Path

		dec, err = p.opts.Open(path)
		if err != nil {
			p.opts.Preparer.Remove(path)
			return nil, err
		}
	}

	item.PreparedPath = path
	return dec, nil
}

// beginTrack resets track info for item and announces it
func (p *Player) beginTrack(item TrackItem, dec Decoder) {
	info := dec.Info()
	extras := extrasFrom(item.Metadata)

	p.mu.Lock()
	p.current = item
	p.info = TrackInfo{
		Identifier: item.URI,
		URI:        item.URI,
		Title:      displayTitle(item.URI, info.Title),
		Author:     info.Artist,
		LengthMs:   info.DurationMs,
		IsStream:   info.DurationMs == 0,
		IsSeekable: info.DurationMs > 0,
		ArtworkURL: extras.ArtworkURL,
		ISRC:       extras.ISRC,
		SourceName: resolver.SourceName(item.URI),
	}
	p.state = StateStreaming
	p.mu.Unlock()

	p.chain.Reset()
	log.Printf("Player %s: playing %s", p.id, item.URI)
	p.events.Send(trackStartEvent(p.id, item))
}

func (p *Player) setPosition(ms int64) {
	p.mu.Lock()
	p.info.PositionMs = ms
	p.mu.Unlock()
}

// run plays tracks until the queue runs out, the session is stopped or a
// track fails
func (p *Player) run(item TrackItem, dec Decoder) {
	ticker := time.NewTicker(p.opts.TickInterval)
	defer ticker.Stop()

	for {
		reason, err := p.stream(ticker, dec)
		if cerr := dec.Close(); cerr != nil {
			log.Printf("Player %s: failed to close decoder: %v", p.id, cerr)
		}

		p.setState(StateTrackEnding)
		p.events.Send(trackEndEvent(p.id, item, reason.String()))

		if reason == endStopped || reason == endFailed {
			p.release(item, TrackItem{})
			if err != nil {
				log.Printf("Player %s: stream failed: %v", p.id, err)
			}
			p.finish(err)
			return
		}

		next, requeue, ok := selectNext(p.LoopMode(), reason == endSkipped, item, &p.queue)
		p.release(item, next)
		if !ok {
			log.Printf("Player %s: queue finished", p.id)
			p.finish(nil)
			return
		}

		dec, err = p.prepare(p.ctx, &next)
		if err != nil && p.ctx.Err() != nil {
			log.Printf("Player %s: stopped while preparing %s", p.id, next.URI)
			p.finish(nil)
			return
		}
		if err != nil {
			log.Printf("Player %s: failed to prepare %s: %v", p.id, next.URI, err)
			p.finish(err)
			return
		}
		if requeue {
			p.queue.Push(next)
		}
		if requeue || next.ID != item.ID {
			p.events.Send(queueUpdateEvent(p.id, p.queue.Snapshot()))
		}

		item = next
		p.beginTrack(item, dec)
	}
}

// stream runs the tick loop for one track
func (p *Player) stream(ticker *time.Ticker, dec Decoder) (endReason, error) {
	var (
		pcm  []int16
		head int
		sent int
		eos  bool
	)

	for {
		select {
		case <-ticker.C:
		case <-p.ctx.Done():
			return endStopped, nil
		}

		select {
		case <-p.skipCh:
			return endSkipped, nil
		default:
		}

		select {
		case <-p.stopCh:
			return endStopped, nil
		default:
		}

	signals:
		for {
			select {
			case v := <-p.pauseCh:
				p.paused = v
			default:
				break signals
			}
		}
		if p.paused {
			p.setState(StatePaused)
			continue
		}
		p.setState(StateStreaming)

		for !eos && len(pcm)-head < lowWaterFrames*audio.FrameLen {
			block, err := dec.Next()
			if errors.Is(err, io.EOF) {
				eos = true
				break
			}
			if err != nil {
				return endFailed, err
			}
			if block.Len() == 0 {
				eos = true
				break
			}
			p.chain.Apply(block, p.filters)
			pcm = audio.Interleave(pcm, block)
		}

		if len(pcm)-head >= audio.FrameLen {
			frame := make([]int16, audio.FrameLen)
			copy(frame, pcm[head:head+audio.FrameLen])
			head += audio.FrameLen
			p.frames.Send(frame)

			sent++
			if sent%positionEvery == 0 {
				p.setPosition(int64(sent * audio.FrameDurationMs))
			}

			if head >= compactFrames*audio.FrameLen && head > len(pcm)/2 {
				n := copy(pcm, pcm[head:])
				pcm = pcm[:n]
				head = 0
			}
			continue
		}

		if eos {
			return endFinished, nil
		}
	}
}

// release removes the temp file of a finished item unless next or a queued
// item still uses it
func (p *Player) release(finished, next TrackItem) {
	path := finished.PreparedPath
	if path == "" || path == next.PreparedPath || p.queue.references(path) {
		return
	}
	p.opts.Preparer.Remove(path)
}

// finish marks the session stopped, drops queued temp files and closes
// the streams
func (p *Player) finish(err error) {
	for _, it := range p.queue.Clear() {
		p.opts.Preparer.Remove(it.PreparedPath)
	}

	p.mu.Lock()
	p.state = StateStopped
	p.err = err
	p.mu.Unlock()

	p.cancel()
	p.frames.Close()
	p.events.Close()
	close(p.done)
}
