// Package job runs the periodic maintenance tasks: energy decay for inactive
// users and expiry of unanswered social invitations.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// taskTimeout bounds one run of a task.
const taskTimeout = 2 * time.Minute

// Decayer applies inactivity decay and returns how many profiles changed.
type Decayer interface {
	ApplyInactivityDecay(ctx context.Context) (int, error)
}

// InviteExpirer expires stale invitations and returns how many changed.
type InviteExpirer interface {
	ExpireInvites(ctx context.Context) (int64, error)
}

// Intervals configures how often each task runs.
type Intervals struct {
	Decay        time.Duration
	InviteExpiry time.Duration
}

// Scheduler owns the gocron scheduler and its jobs.
type Scheduler struct {
	sched gocron.Scheduler
}

// NewScheduler registers the maintenance jobs. Each job runs in singleton
// mode so a slow run is never overlapped by the next one.
func NewScheduler(decay Decayer, invites InviteExpirer, iv Intervals) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	if iv.Decay <= 0 {
		iv.Decay = time.Hour
	}
	if iv.InviteExpiry <= 0 {
		iv.InviteExpiry = 15 * time.Minute
	}

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"energy-decay", iv.Decay, func(ctx context.Context) { runDecay(ctx, decay) }},
		{"invite-expiry", iv.InviteExpiry, func(ctx context.Context) { runInviteExpiry(ctx, invites) }},
	}

	for _, j := range jobs {
		_, err := sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(withTimeout(j.run)),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to register job %s: %w", j.name, err)
		}
	}

	return &Scheduler{sched: sched}, nil
}

// Start begins running the jobs in the background.
func (s *Scheduler) Start() {
	s.sched.Start()
	log.Info().Int("jobs", len(s.sched.Jobs())).Msg("Scheduler started")
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func withTimeout(run func(context.Context)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()
		run(ctx)
	}
}

func runDecay(ctx context.Context, d Decayer) {
	n, err := d.ApplyInactivityDecay(ctx)
	if err != nil {
		log.Error().Err(err).Int("changed", n).Msg("Energy decay sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("changed", n).Msg("Energy decay applied")
	}
}

func runInviteExpiry(ctx context.Context, e InviteExpirer) {
	n, err := e.ExpireInvites(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Invite expiry failed")
		return
	}
	if n > 0 {
		log.Info().Int64("expired", n).Msg("Social invitations expired")
	}
}
