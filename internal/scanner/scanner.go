// Package scanner is the crew-side check-in loop: it debounces decoded QR
// payloads, forwards them one at a time and shows each outcome to the operator.
package scanner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/PintaAI/pjkr-winter/internal/qrcode"
)

// Presenter shows an outcome and returns once the operator has seen it.
type Presenter interface {
	Show(ctx context.Context, o Outcome)
}

// Scanner pauses while a scan is being submitted and its outcome displayed.
// Frames that arrive while paused are dropped.
type Scanner struct {
	debouncer Debouncer
	submitter Submitter
	presenter Presenter

	paused atomic.Bool
	wg     sync.WaitGroup
}

func New(d Debouncer, s Submitter, p Presenter) *Scanner {
	return &Scanner{debouncer: d, submitter: s, presenter: p}
}

// Paused reports whether a result is currently in flight or on display.
func (s *Scanner) Paused() bool { return s.paused.Load() }

// Run consumes decoded frames until ctx is done or frames is closed, then
// waits for the in-flight scan to finish.
func (s *Scanner) Run(ctx context.Context, frames <-chan string) error {
	defer s.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			s.accept(ctx, frame)
		}
	}
}

func (s *Scanner) accept(ctx context.Context, frame string) {
	payload := strings.TrimSpace(frame)
	if payload == "" || s.paused.Load() {
		return
	}
	allowed, err := s.debouncer.Allow(ctx, payload)
	if err != nil {
		// fall through without debounce rather than losing the scan
		log.WithError(err).Warn("debounce unavailable")
		allowed = true
	}
	if !allowed {
		return
	}

	s.paused.Store(true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.paused.Store(false)
		s.presenter.Show(ctx, s.handle(ctx, payload))
	}()
}

func (s *Scanner) handle(ctx context.Context, payload string) Outcome {
	id, err := qrcode.Decode(payload)
	if err != nil {
		return Outcome{Kind: KindRejected, Message: err.Error()}
	}
	out, err := s.submitter.Submit(ctx, id)
	if err != nil {
		log.WithError(err).WithField("peserta_id", id).Warn("check-in request failed")
		return Outcome{Kind: KindError, Message: "Gagal menghubungi server, silakan scan ulang", PesertaID: id}
	}
	log.WithFields(log.Fields{"peserta_id": id, "kind": out.Kind}).Info("scan processed")
	return out
}

// ConsolePresenter prints outcomes and holds the pause for a fixed time.
type ConsolePresenter struct {
	w    io.Writer
	hold time.Duration
}

func NewConsolePresenter(w io.Writer, hold time.Duration) *ConsolePresenter {
	return &ConsolePresenter{w: w, hold: hold}
}

var kindLabel = map[Kind]string{
	KindSuccess:         "OK",
	KindAlreadyRecorded: "SUDAH",
	KindRejected:        "DITOLAK",
	KindError:           "ERROR",
}

func (p *ConsolePresenter) Show(ctx context.Context, o Outcome) {
	line := fmt.Sprintf("[%s] %s", kindLabel[o.Kind], o.Message)
	if o.PesertaID != "" {
		line += " (" + o.PesertaID + ")"
	}
	fmt.Fprintln(p.w, line)

	if p.hold <= 0 {
		return
	}
	t := time.NewTimer(p.hold)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
