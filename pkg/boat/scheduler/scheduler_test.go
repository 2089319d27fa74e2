package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

type captureInjector struct {
	mu   sync.Mutex
	msgs []*channels.IncomingMessage
	err  error
}

func (c *captureInjector) Inject(_ context.Context, msg *channels.IncomingMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *captureInjector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestJob_Validate(t *testing.T) {
	t.Parallel()

	good := Job{ID: "warmup", Schedule: "@every 10m", Command: "!ready ready", Channel: "discord", ChatID: "123"}
	tests := []struct {
		name    string
		mutate  func(*Job)
		wantErr bool
	}{
		{"valid", func(*Job) {}, false},
		{"five fields", func(j *Job) { j.Schedule = "*/5 * * * *" }, false},
		{"hourly", func(j *Job) { j.Schedule = "@hourly" }, false},
		{"direct without chat", func(j *Job) { j.Direct = true; j.ChatID = "" }, false},
		{"missing id", func(j *Job) { j.ID = " " }, true},
		{"missing command", func(j *Job) { j.Command = "" }, true},
		{"missing channel", func(j *Job) { j.Channel = "" }, true},
		{"group without chat", func(j *Job) { j.ChatID = "" }, true},
		{"bad schedule", func(j *Job) { j.Schedule = "every tuesday" }, true},
		{"seconds field", func(j *Job) { j.Schedule = "0 */5 * * * *" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			j := good
			tt.mutate(&j)
			if err := j.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJob_Message(t *testing.T) {
	t.Parallel()

	now := time.Now()
	group := Job{ID: "g", Command: "!playlist Duos", Channel: "discord", ChatID: "42", As: "alice"}.Message(now)
	if group.Kind != channels.KindGroup || group.ChatID != "42" || group.Author.Name != "alice" {
		t.Errorf("group message = %+v", group)
	}
	if group.Content != "!playlist Duos" || group.Metadata["job_id"] != "g" || group.ID == "" {
		t.Errorf("group message = %+v", group)
	}

	direct := Job{ID: "d", Command: "!ping", Channel: "console", Direct: true}.Message(now)
	if direct.Kind != channels.KindDirect || direct.Author.ID != "scheduler" || direct.ChatID != "scheduler" {
		t.Errorf("direct message = %+v", direct)
	}
}

func TestNew_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	j := Job{ID: "a", Schedule: "@hourly", Command: "!ping", Channel: "console", Direct: true}
	if _, err := New([]Job{j, j}, &captureInjector{}, quiet()); err == nil {
		t.Error("New() accepted duplicate job ids")
	}
}

func TestScheduler_FireRecordsStatus(t *testing.T) {
	t.Parallel()

	inj := &captureInjector{}
	s, err := New([]Job{
		{ID: "ping", Schedule: "@hourly", Command: "!ping", Channel: "console", Direct: true},
		{ID: "off", Schedule: "@daily", Command: "!ping", Channel: "console", Direct: true, Disabled: true},
	}, inj, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.Fire(context.Background(), "ping"); err != nil {
		t.Fatal(err)
	}
	if inj.count() != 1 {
		t.Errorf("injected %d messages, want 1", inj.count())
	}
	if err := s.Fire(context.Background(), "missing"); err == nil {
		t.Error("Fire(missing) returned nil")
	}

	list := s.List()
	if len(list) != 2 || list[0].Job.ID != "off" || list[1].Job.ID != "ping" {
		t.Fatalf("List() = %+v", list)
	}
	if list[1].RunCount != 1 || list[1].Next.IsZero() {
		t.Errorf("ping status = %+v", list[1])
	}
	if !list[0].Next.IsZero() {
		t.Error("disabled job has a next run")
	}

	inj.err = errors.New("stream closed")
	if err := s.Fire(context.Background(), "ping"); err == nil {
		t.Error("Fire() hid the injector error")
	}
	if got := s.List()[1].LastError; got != "stream closed" {
		t.Errorf("LastError = %q", got)
	}
}

func TestScheduler_CronFires(t *testing.T) {
	t.Parallel()

	inj := &captureInjector{}
	s, err := New([]Job{
		{ID: "tick", Schedule: "@every 1s", Command: "!ping", Channel: "console", Direct: true},
	}, inj, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for inj.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if inj.count() == 0 {
		t.Error("job did not fire within 3s")
	}
}

func TestJob_Next(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	next, err := Job{ID: "h", Schedule: "@hourly"}.Next(base)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("Next() = %v, want %v", next, want)
	}
	if _, err := (Job{ID: "bad", Schedule: "whenever"}).Next(base); err == nil {
		t.Error("Next() accepted an invalid schedule")
	}
}
