// Package oto plays rendered songs on the default sound card.
package oto

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/holysaw/holysaw"
	"github.com/holysaw/holysaw/meter"
)

type (
	// Context is a sound card output running at holysaw.SampleRate, mono.
	Context struct {
		ctx *oto.Context
	}

	// Playback is one buffer being played. It reports the level of the
	// audio as it is consumed by the sound card.
	Playback struct {
		player    *oto.Player
		reader    *sampleReader
		done      chan struct{}
		closeOnce sync.Once
	}

	sampleReader struct {
		mu     sync.Mutex
		buf    holysaw.AudioBuffer
		pos    int
		block  int // samples since the last level report
		levels chan meter.Level
		closed bool
	}
)

const (
	levelBlock   = holysaw.SampleRate / 10 // one level report per 100 ms
	pollInterval = 10 * time.Millisecond
)

var _ holysaw.AudioContext = (*Context)(nil)

// NewContext opens the sound card. It blocks until the device is ready.
func NewContext() (*Context, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   holysaw.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx}, nil
}

// Play starts playing buf and returns immediately.
func (c *Context) Play(buf holysaw.AudioBuffer) holysaw.CloserWaiter {
	return c.Start(buf)
}

// Start is Play returning the concrete *Playback, for callers that want the
// level reports.
func (c *Context) Start(buf holysaw.AudioBuffer) *Playback {
	r := &sampleReader{buf: buf, levels: make(chan meter.Level, 16)}
	p := &Playback{player: c.ctx.NewPlayer(r), reader: r, done: make(chan struct{})}
	p.player.Play()
	go p.watch()
	return p
}

// Close suspends the sound card; oto contexts cannot be released.
func (c *Context) Close() error {
	if err := c.ctx.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

// Levels returns the level reports of the playback. The channel is closed
// when the playback ends; reports are dropped if nobody reads them.
func (p *Playback) Levels() <-chan meter.Level {
	return p.reader.levels
}

// Wait blocks until the whole buffer has been played or Close was called.
func (p *Playback) Wait() {
	<-p.done
}

// Close stops the playback.
func (p *Playback) Close() error {
	p.closeOnce.Do(func() {
		p.player.Pause()
		close(p.done)
	})
	return nil
}

func (p *Playback) watch() {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	defer p.reader.close()
	for {
		select {
		case <-p.done:
			return
		case <-t.C:
			if !p.player.IsPlaying() {
				p.Close()
				return
			}
		}
	}
}

// Read implements io.Reader, producing 32-bit little-endian floats.
func (r *sampleReader) Read(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.buf) {
		return 0, io.EOF
	}
	n := min(len(b)/4, len(r.buf)-r.pos)
	for i, v := range r.buf[r.pos : r.pos+n] {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	r.report(r.pos, r.pos+n)
	r.pos += n
	return 4 * n, nil
}

// report sends the level of every completed block in buf[start:end].
func (r *sampleReader) report(start, end int) {
	for pos := start; pos < end; {
		l := min(end-pos, levelBlock-r.block)
		r.block += l
		pos += l
		if r.block == levelBlock || pos == len(r.buf) {
			if !r.closed {
				select {
				case r.levels <- meter.Summary(r.buf[pos-r.block : pos]):
				default:
				}
			}
			r.block = 0
		}
	}
}

func (r *sampleReader) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.levels)
	}
}
