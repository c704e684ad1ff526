package cli

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"evidence-desk/internal/model"
)

type liveStatusLine struct {
	enabled bool
	kind    string

	mu       sync.Mutex
	status   string
	message  string
	progress int
	previews int

	stop     chan struct{}
	stopOnce sync.Once
}

func newLiveStatusLine(enabled bool, kind string) *liveStatusLine {
	return &liveStatusLine{
		enabled: enabled,
		kind:    kind,
		status:  "starting",
		stop:    make(chan struct{}),
	}
}

func (p *liveStatusLine) Start() {
	if !p.enabled {
		return
	}
	go func() {
		t := time.NewTicker(500 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-t.C:
				fmt.Printf("\r\033[2K%s", p.render())
			}
		}
	}()
}

func (p *liveStatusLine) Stop(final string) {
	if !p.enabled {
		return
	}
	p.stopOnce.Do(func() { close(p.stop) })
	fmt.Printf("\r\033[2K%s\n", final)
}

func (p *liveStatusLine) Update(slot model.TaskSlot) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	p.status = slot.Status
	p.progress = slot.Progress
	p.previews = len(slot.PreviewOrder)
	if n := len(slot.Log); n > 0 {
		p.message = slot.Log[n-1].Text
	}
	p.mu.Unlock()
}

func (p *liveStatusLine) render() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	parts := []string{fmt.Sprintf("[%s]", p.kind), p.status}
	if p.status == model.StatusProcessing {
		parts = append(parts, fmt.Sprintf("%d%%", p.progress))
	}
	if p.previews > 0 {
		parts = append(parts, fmt.Sprintf("previews %d", p.previews))
	}
	msg := p.message
	if len(msg) > 72 {
		msg = msg[:72] + "..."
	}
	if msg != "" {
		parts = append(parts, "| "+msg)
	}
	return strings.Join(parts, "  ")
}
