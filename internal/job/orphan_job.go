package job

import (
	"context"
	"errors"
	"time"

	"github.com/fadilmartias/questy/internal/model"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/robfig/cron/v3"
)

type OrphanStore interface {
	ListPending(ctx context.Context, limit int) ([]model.OrphanedIdentity, error)
	Update(ctx context.Context, o *model.OrphanedIdentity) error
}

// OrphanFixer is implemented by the auth use case.
type OrphanFixer interface {
	RestoreProfile(ctx context.Context, o *model.OrphanedIdentity) error
	DeleteIdentity(ctx context.Context, role, id string) error
}

// OrphanJob periodically resolves identities left without a profile row:
// first by writing the stored profile again, then by deleting the identity.
type OrphanJob struct {
	store     OrphanStore
	fixer     OrphanFixer
	batchSize int
	timeout   time.Duration
	logger    log.Logger
	cron      *cron.Cron
}

func NewOrphanJob(store OrphanStore, fixer OrphanFixer, batchSize int, logger log.Logger) *OrphanJob {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OrphanJob{
		store:     store,
		fixer:     fixer,
		batchSize: batchSize,
		timeout:   time.Minute,
		logger:    logger,
	}
}

// Start schedules RunOnce on spec (standard cron syntax or "@every 5m").
func (j *OrphanJob) Start(spec string) error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.Error().Err(err).Msg("orphan cleanup failed")
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info().Str("spec", spec).Msg("orphan cleanup scheduled")
	return nil
}

// Stop waits for a running cleanup to finish.
func (j *OrphanJob) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// RunOnce processes one batch of pending orphans and returns how many were
// resolved.
func (j *OrphanJob) RunOnce(ctx context.Context) (int, error) {
	orphans, err := j.store.ListPending(ctx, j.batchSize)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for i := range orphans {
		o := &orphans[i]
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		logger := j.logger.With().Str("identity_id", o.IdentityID).Str("realm", o.Realm).Logger()

		restoreErr := j.fixer.RestoreProfile(ctx, o)
		switch {
		case restoreErr == nil:
			o.Status = model.OrphanStatusProfileRestored
			o.LastError = ""
			logger.Info().Msg("profile restored")
		default:
			if delErr := j.fixer.DeleteIdentity(ctx, o.Realm, o.IdentityID); delErr == nil {
				o.Status = model.OrphanStatusIdentityDeleted
				o.LastError = ""
				logger.Info().Msg("identity deleted")
			} else {
				o.Attempts++
				o.LastError = errors.Join(restoreErr, delErr).Error()
				logger.Warn().Int("attempts", o.Attempts).Str("error", o.LastError).Msg("orphan still unresolved")
			}
		}
		if err := j.store.Update(ctx, o); err != nil {
			return resolved, err
		}
		if o.Status != model.OrphanStatusPending {
			resolved++
		}
	}
	return resolved, nil
}
