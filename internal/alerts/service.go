package alerts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pcdogyu/trader-clock/internal/metrics"
)

// Repo persists alert rules.
type Repo interface {
	InsertAlert(ctx context.Context, r Rule) error
	ListAlerts(ctx context.Context) ([]Rule, error)
	DeleteAlert(ctx context.Context, id string) error
	MarkAlertFired(ctx context.Context, id string, at time.Time, triggered bool) error
}

type Service struct {
	repo      Repo
	offset    OffsetFunc
	knownZone func(string) bool
	log       *zap.Logger
	rec       metrics.Recorder
}

func NewService(repo Repo, offset OffsetFunc, knownZone func(string) bool, log *zap.Logger, rec metrics.Recorder) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{repo: repo, offset: offset, knownZone: knownZone, log: log, rec: rec}
}

func (s *Service) Create(ctx context.Context, in Input, now time.Time) (Rule, error) {
	r, err := NewRule(in, now, s.knownZone)
	if err != nil {
		return Rule{}, err
	}
	if err := s.repo.InsertAlert(ctx, r); err != nil {
		return Rule{}, fmt.Errorf("store alert: %w", err)
	}
	s.log.Info("alert created", zap.String("id", r.ID), zap.String("time", r.Time), zap.String("tz", r.Timezone))
	return r, nil
}

func (s *Service) List(ctx context.Context, f Filter) ([]Rule, error) {
	rules, err := s.repo.ListAlerts(ctx)
	if err != nil {
		return nil, err
	}
	s.rec.SetAlertRules(len(rules))
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteAlert(ctx, id)
}

// Tick fires every rule that is due at now. Rules that fired without repeat are removed.
// A failure on one rule is logged and does not stop the others.
func (s *Service) Tick(ctx context.Context, now time.Time) ([]Fired, error) {
	rules, err := s.repo.ListAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	pending := rules[:0]
	for _, r := range rules {
		if r.Triggered {
			// Left over from a failed delete.
			s.remove(ctx, r.ID)
			continue
		}
		pending = append(pending, r)
	}

	updated, due := Check(now, pending, s.offset)
	var fired []Fired
	for i, r := range updated {
		if err := s.repo.MarkAlertFired(ctx, r.ID, *r.LastFiredAt, r.Triggered); err != nil {
			s.log.Error("mark alert fired", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		fired = append(fired, due[i])
		if r.Triggered {
			s.remove(ctx, r.ID)
		}
	}
	return fired, nil
}

func (s *Service) remove(ctx context.Context, id string) {
	if err := s.repo.DeleteAlert(ctx, id); err != nil {
		s.log.Warn("delete triggered alert", zap.String("id", id), zap.Error(err))
	}
}
