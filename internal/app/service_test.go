package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeService struct {
	name     string
	startErr error
	block    bool
	mu       *sync.Mutex
	stopped  *[]string
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.startErr
}

func (s *fakeService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.stopped = append(*s.stopped, s.name)
	return nil
}

func TestRunnerStopsInReverseOrderOnServiceFailure(t *testing.T) {
	var mu sync.Mutex
	var stopped []string
	boom := errors.New("listen failed")
	runner := NewRunner(
		&fakeService{name: "worker", block: true, mu: &mu, stopped: &stopped},
		nil,
		&fakeService{name: "http", startErr: boom, mu: &mu, stopped: &stopped},
	)

	err := runner.Run(context.Background(), time.Second, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("want start error got %v", err)
	}
	if len(stopped) != 2 || stopped[0] != "http" || stopped[1] != "worker" {
		t.Fatalf("unexpected stop order: %v", stopped)
	}
}

func TestRunnerCancelledContextIsCleanExit(t *testing.T) {
	var mu sync.Mutex
	var stopped []string
	runner := NewRunner(&fakeService{name: "worker", block: true, mu: &mu, stopped: &stopped})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := runner.Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancelled run should return nil got %v", err)
	}
	if len(stopped) != 1 {
		t.Fatalf("worker should be stopped once: %v", stopped)
	}
}

func TestRunModeValidation(t *testing.T) {
	if err := validateMode("batch"); err == nil {
		t.Fatalf("unknown mode should be rejected")
	}
	for _, mode := range []string{ModeAll, ModeAPI, ModeWorker} {
		if err := validateMode(mode); err != nil {
			t.Fatalf("mode %s should be valid: %v", mode, err)
		}
	}
	if !servesAPI(ModeAll) || servesAPI(ModeWorker) || !runsWorker(ModeWorker) || runsWorker(ModeAPI) {
		t.Fatalf("mode helpers mismatch")
	}
}
