// Package scheduler runs commands on a cron schedule. A firing job injects
// a synthetic message into the channel stream, so scheduled commands pass
// the same prefix, lookup and owner checks as typed ones.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

// Job is one scheduled command.
type Job struct {
	// ID names the job in logs.
	ID string `yaml:"id" toml:"id"`

	// Schedule is a 5-field cron expression or a descriptor such as
	// "@hourly" or "@every 10m".
	Schedule string `yaml:"schedule" toml:"schedule"`

	// Command is the full message text, prefix included (e.g. "!ready ready").
	Command string `yaml:"command" toml:"command"`

	// Channel and ChatID say where replies go.
	Channel string `yaml:"channel" toml:"channel"`
	ChatID  string `yaml:"chat_id" toml:"chat_id"`

	// Direct sends the message as a direct message from As instead of a
	// group message in ChatID.
	Direct bool `yaml:"direct" toml:"direct"`

	// As is the identity the message claims, checked by the owner policy.
	As string `yaml:"as" toml:"as"`

	// Disabled jobs are validated but never fire.
	Disabled bool `yaml:"disabled" toml:"disabled"`
}

// Injector accepts synthetic messages. channels.Manager implements it.
type Injector interface {
	Inject(ctx context.Context, msg *channels.IncomingMessage) error
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks a job without scheduling it.
func (j Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(j.Command) == "" {
		return fmt.Errorf("job %q: command is required", j.ID)
	}
	if j.Channel == "" {
		return fmt.Errorf("job %q: channel is required", j.ID)
	}
	if !j.Direct && j.ChatID == "" {
		return fmt.Errorf("job %q: chat_id is required for group jobs", j.ID)
	}
	if _, err := parser.Parse(j.Schedule); err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", j.ID, j.Schedule, err)
	}
	return nil
}

// Next returns the first activation of the job after t.
func (j Job) Next(t time.Time) (time.Time, error) {
	sched, err := parser.Parse(j.Schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("job %q: %w", j.ID, err)
	}
	return sched.Next(t), nil
}

// Message builds the synthetic message a firing job injects.
func (j Job) Message(now time.Time) *channels.IncomingMessage {
	as := j.As
	if as == "" {
		as = "scheduler"
	}
	msg := &channels.IncomingMessage{
		ID:        uuid.NewString(),
		Channel:   j.Channel,
		Author:    channels.Identity{ID: as, Name: as},
		ChatID:    j.ChatID,
		Kind:      channels.KindGroup,
		Content:   j.Command,
		Timestamp: now,
		Metadata:  map[string]any{"job_id": j.ID},
	}
	if j.Direct {
		msg.Kind = channels.KindDirect
		if msg.ChatID == "" {
			msg.ChatID = as
		}
	}
	return msg
}

// Status is the runtime state of a job.
type Status struct {
	Job       Job
	Next      time.Time
	LastRunAt time.Time
	LastError string
	RunCount  int
}

// Scheduler fires jobs through an Injector.
type Scheduler struct {
	jobs   map[string]*Status
	inject Injector
	logger *slog.Logger

	cron   *cron.Cron
	ids    map[string]cron.EntryID
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates jobs and returns a scheduler. Duplicate ids are an error.
func New(jobs []Job, inject Injector, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		jobs:   make(map[string]*Status, len(jobs)),
		inject: inject,
		logger: logger.With("component", "scheduler"),
		ids:    make(map[string]cron.EntryID),
	}
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return nil, err
		}
		if _, exists := s.jobs[j.ID]; exists {
			return nil, fmt.Errorf("job %q defined twice", j.ID)
		}
		s.jobs[j.ID] = &Status{Job: j}
	}
	return s, nil
}

// Start schedules every enabled job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = cron.New(cron.WithParser(parser))

	for id, st := range s.jobs {
		if st.Job.Disabled {
			continue
		}
		jobID := id
		entryID, err := s.cron.AddFunc(st.Job.Schedule, func() { s.fire(jobID) })
		if err != nil {
			return fmt.Errorf("schedule job %q: %w", id, err)
		}
		s.ids[id] = entryID
	}
	s.cron.Start()

	s.logger.Info("scheduler started", "jobs", len(s.jobs), "cron_entries", len(s.cron.Entries()))
	return nil
}

// Stop halts the cron loop and waits briefly for running jobs.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	c, cancel := s.cron, s.cancel
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-time.After(10 * time.Second):
			s.logger.Warn("scheduler stop timed out")
		}
	}
	s.logger.Info("scheduler stopped")
}

// Fire injects a job's message now, outside its schedule.
func (s *Scheduler) Fire(ctx context.Context, id string) error {
	s.mu.RLock()
	st, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %q not found", id)
	}

	err := s.inject.Inject(ctx, st.Job.Message(time.Now()))

	s.mu.Lock()
	st.LastRunAt = time.Now()
	st.RunCount++
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
	s.mu.Unlock()
	return err
}

func (s *Scheduler) fire(id string) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Fire(ctx, id); err != nil {
		s.logger.Warn("scheduled command not delivered", "id", id, "error", err)
		return
	}
	s.logger.Debug("scheduled command fired", "id", id)
}

// List returns job states sorted by id.
func (s *Scheduler) List() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Status, 0, len(s.jobs))
	for id, st := range s.jobs {
		cp := *st
		if entryID, ok := s.ids[id]; ok && s.cron != nil {
			cp.Next = s.cron.Entry(entryID).Next
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job.ID < out[j].Job.ID })
	return out
}
