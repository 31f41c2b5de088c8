package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stuntrig/vdyn/pkg/vehicle"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(TopicFrame, func(e Event) error {
		got = e
		return nil
	})

	frame := &vehicle.Telemetry{Tick: 7, Speed: 21.5}
	err := d.Dispatch(Event{Topic: TopicFrame, RunID: "r-1", Frame: frame})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.RunID != "r-1" {
		t.Errorf("expected run ID 'r-1', got %q", got.RunID)
	}
	if got.Frame == nil || got.Frame.Tick != 7 {
		t.Errorf("frame payload did not pass through: %+v", got.Frame)
	}
}

func TestDispatcher_UnknownTopic(t *testing.T) {
	d, _ := newTestDispatcher(t)

	err := d.Dispatch(Event{Topic: "run.bogus"})

	if err == nil {
		t.Error("expected error for unknown topic")
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(TopicFrame, func(e Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(Event{Topic: TopicFrame}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	// Block the handler so the queue fills up
	block := make(chan struct{})
	d.Register(TopicFrame, func(e Event) error {
		<-block
		return nil
	}, Buffered(2))

	d.Dispatch(Event{Topic: TopicFrame}) // being processed
	d.Dispatch(Event{Topic: TopicFrame}) // queued
	d.Dispatch(Event{Topic: TopicFrame}) // queued

	// This one should be dropped
	err := d.Dispatch(Event{Topic: TopicFrame})

	if err == nil {
		t.Error("expected error when queue is full")
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register(TopicRunEnd, func(e Event) error {
		<-block
		return nil
	}, Buffered(1), Blocking())

	// First event starts processing
	d.Dispatch(Event{Topic: TopicRunEnd})
	// Second event fills the queue
	d.Dispatch(Event{Topic: TopicRunEnd})

	// Third event should block (test with timeout)
	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Topic: TopicRunEnd})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
		// Expected - dispatch is blocking
	}

	close(block)
}

func TestDispatcher_Drain(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register(TopicFrame, func(e Event) error {
		time.Sleep(2 * time.Millisecond)
		processed.Add(1)
		return nil
	}, Buffered(100))

	for i := 0; i < 10; i++ {
		d.Dispatch(Event{Topic: TopicFrame})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := d.Drain(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if processed.Load() != 10 {
		t.Errorf("expected 10 processed after drain, got %d", processed.Load())
	}
}

func TestDispatcher_DrainTimeout(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register(TopicFrame, func(e Event) error {
		<-block
		return nil
	}, Buffered(10))

	d.Dispatch(Event{Topic: TopicFrame})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := d.Drain(ctx); err == nil {
		t.Error("expected drain to time out with a stuck handler")
	}

	close(block)
}

func TestDispatcher_DrainNoBuffers(t *testing.T) {
	d, _ := newTestDispatcher(t)

	if err := d.Drain(context.Background()); err != nil {
		t.Errorf("drain of idle dispatcher should return immediately: %v", err)
	}
}

func TestDispatcher_BufferedHandlerErrorLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(TopicImpact, func(e Event) error {
		return fmt.Errorf("sink write failed")
	}, Buffered(10))

	if err := d.Dispatch(Event{Topic: TopicImpact}); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}

	// The error is logged before the in-flight count drops, so a drain
	// guarantees the log call has happened.
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}
	if !hasError {
		t.Error("expected buffered handler failure to be logged")
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(TopicRunStart, func(e Event) error {
		return nil
	}, Logged())

	d.Dispatch(Event{Topic: TopicRunStart, RunID: "r-9"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(TopicImpact, func(e Event) error {
		return fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Topic: TopicImpact})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	hasError := false
	for _, msg := range logger.messages {
		if len(msg) >= 5 && msg[:5] == "ERROR" {
			hasError = true
			break
		}
	}

	if !hasError {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(TopicRunStart, func(e Event) error { return nil })

	if !d.HasHandler(TopicRunStart) {
		t.Error("expected handler to exist")
	}

	if d.HasHandler("run.bogus") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register(TopicFrame, func(e Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100), Logged())

	if err := d.Dispatch(Event{Topic: TopicFrame}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}
