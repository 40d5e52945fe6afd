package scanner

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, id string) (Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.err != nil {
		return Outcome{}, f.err
	}
	return Outcome{Kind: KindSuccess, Message: "Absen keberangkatan berhasil dicatat", PesertaID: id}, nil
}

func (f *fakeSubmitter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// blockingPresenter holds each outcome until release receives.
type blockingPresenter struct {
	shown   chan Outcome
	release chan struct{}
}

func newBlockingPresenter() *blockingPresenter {
	return &blockingPresenter{shown: make(chan Outcome, 10), release: make(chan struct{})}
}

func (p *blockingPresenter) Show(ctx context.Context, o Outcome) {
	p.shown <- o
	select {
	case <-p.release:
	case <-ctx.Done():
	}
}

func waitShown(t *testing.T, p *blockingPresenter) Outcome {
	t.Helper()
	select {
	case o := <-p.shown:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("outcome was not shown")
		return Outcome{}
	}
}

func startScanner(t *testing.T, s *Scanner) (chan<- string, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan string)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx, frames)
	}()
	return frames, func() {
		cancel()
		<-done
	}
}

func TestScannerPausesWhileShowing(t *testing.T) {
	sub := &fakeSubmitter{}
	pres := newBlockingPresenter()
	s := New(NewMemoryDebouncer(time.Minute), sub, pres)
	frames, stop := startScanner(t, s)
	defer stop()

	frames <- "peserta-1"
	o := waitShown(t, pres)
	assert.Equal(t, KindSuccess, o.Kind)
	assert.True(t, s.Paused())

	// dropped while the result is on screen
	frames <- "peserta-2"
	frames <- "peserta-3"
	assert.Equal(t, []string{"peserta-1"}, sub.Calls())

	pres.release <- struct{}{}
	require.Eventually(t, func() bool { return !s.Paused() }, time.Second, 5*time.Millisecond)

	frames <- "peserta-2"
	waitShown(t, pres)
	pres.release <- struct{}{}
	assert.Equal(t, []string{"peserta-1", "peserta-2"}, sub.Calls())
}

func TestScannerDebouncesRepeats(t *testing.T) {
	sub := &fakeSubmitter{}
	pres := newBlockingPresenter()
	s := New(NewMemoryDebouncer(time.Minute), sub, pres)
	frames, stop := startScanner(t, s)
	defer stop()

	frames <- "peserta-1"
	waitShown(t, pres)
	pres.release <- struct{}{}
	require.Eventually(t, func() bool { return !s.Paused() }, time.Second, 5*time.Millisecond)

	frames <- "peserta-1"
	frames <- " peserta-1\n"
	assert.Equal(t, []string{"peserta-1"}, sub.Calls())
	assert.False(t, s.Paused())
}

func TestScannerInvalidPayloadSkipsRequest(t *testing.T) {
	sub := &fakeSubmitter{}
	pres := newBlockingPresenter()
	s := New(NewMemoryDebouncer(time.Minute), sub, pres)
	frames, stop := startScanner(t, s)
	defer stop()

	frames <- "https://example.com/not-a-participant"
	o := waitShown(t, pres)
	pres.release <- struct{}{}

	assert.Equal(t, KindRejected, o.Kind)
	assert.Equal(t, "QR code tidak valid", o.Message)
	assert.Empty(t, sub.Calls())
}

func TestScannerShowsTransportErrors(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("connection refused")}
	pres := newBlockingPresenter()
	s := New(NewMemoryDebouncer(time.Minute), sub, pres)
	frames, stop := startScanner(t, s)
	defer stop()

	frames <- "peserta-1"
	o := waitShown(t, pres)
	pres.release <- struct{}{}

	assert.Equal(t, KindError, o.Kind)
	assert.Equal(t, "peserta-1", o.PesertaID)
	// no retry
	assert.Len(t, sub.Calls(), 1)
}

func TestScannerStopsWhenFramesClose(t *testing.T) {
	s := New(NewMemoryDebouncer(0), &fakeSubmitter{}, NewConsolePresenter(&bytes.Buffer{}, 0))
	frames := make(chan string)
	close(frames)
	assert.NoError(t, s.Run(context.Background(), frames))
}

func TestMemoryDebouncerWindow(t *testing.T) {
	now := time.Date(2025, 1, 18, 6, 0, 0, 0, time.UTC)
	d := NewMemoryDebouncer(5 * time.Second)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := d.Allow(ctx, "a")
	assert.True(t, ok)

	now = now.Add(3 * time.Second)
	ok, _ = d.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _ = d.Allow(ctx, "b")
	assert.True(t, ok)

	// the ignored repeat at +3s does not extend the window
	now = now.Add(2 * time.Second)
	ok, _ = d.Allow(ctx, "a")
	assert.True(t, ok)
}

func TestConsolePresenter(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsolePresenter(&buf, 0)
	p.Show(context.Background(), Outcome{Kind: KindAlreadyRecorded, Message: "Peserta sudah absen keberangkatan", PesertaID: "p1"})
	assert.Equal(t, "[SUDAH] Peserta sudah absen keberangkatan (p1)\n", buf.String())
}
