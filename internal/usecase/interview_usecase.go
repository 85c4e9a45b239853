package usecase

import (
	"context"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/interview"
	"github.com/fadilmartias/questy/internal/model"
	"github.com/fadilmartias/questy/internal/service"
	"github.com/fadilmartias/questy/internal/util"
	"github.com/fadilmartias/questy/pkg/log"
)

type SummaryChecker interface {
	ExistsForStudent(ctx context.Context, studentID string) (bool, error)
}

type CVRecorder interface {
	Create(ctx context.Context, cv *model.StudentCV) error
}

type CVUploader interface {
	Upload(ctx context.Context, accessToken, objectPath, contentType string, data []byte) error
}

type InterviewUsecase struct {
	registry  *interview.Registry
	summaries SummaryChecker
	cvs       CVRecorder
	storage   CVUploader
	maxCVSize int64
	logger    log.Logger
	now       func() time.Time
}

func NewInterviewUsecase(registry *interview.Registry, summaries SummaryChecker, cvs CVRecorder, storage CVUploader, maxCVSize int64, logger log.Logger) *InterviewUsecase {
	return &InterviewUsecase{
		registry:  registry,
		summaries: summaries,
		cvs:       cvs,
		storage:   storage,
		maxCVSize: maxCVSize,
		logger:    logger,
		now:       time.Now,
	}
}

func (u *InterviewUsecase) session(ctx context.Context, studentID string) (*interview.Session, error) {
	if s := u.registry.Session(studentID, nil); s != nil {
		return s, nil
	}
	passed, err := u.summaries.ExistsForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return u.registry.Session(studentID, func(s *interview.Session) {
		if passed {
			s.MarkAlreadyPassed()
		}
	}), nil
}

// State returns the student's interview, creating it in the start stage (or
// already-passed when a summary exists).
func (u *InterviewUsecase) State(ctx context.Context, studentID string) (interview.State, error) {
	s, err := u.session(ctx, studentID)
	if err != nil {
		return interview.State{}, err
	}
	return s.Snapshot(), nil
}

func (u *InterviewUsecase) Start(ctx context.Context, studentID, accessToken, name, phone string, cv *interview.CV) (interview.State, error) {
	s, err := u.session(ctx, studentID)
	if err != nil {
		return interview.State{}, err
	}
	err = s.Start(ctx, name, phone, cv, func(ctx context.Context, studentID string, cv *interview.CV) error {
		return u.storeCV(ctx, studentID, accessToken, name, cv)
	})
	if err != nil {
		return s.Snapshot(), err
	}
	u.registry.StartPolling(studentID)
	return s.Snapshot(), nil
}

func (u *InterviewUsecase) storeCV(ctx context.Context, studentID, accessToken, name string, cv *interview.CV) error {
	info, err := util.InspectCV(cv.Filename, cv.Data, u.maxCVSize)
	if err != nil {
		return err
	}
	objectName := service.CVObjectName(studentID, name, cv.Filename, u.now())
	if err := u.storage.Upload(ctx, accessToken, objectName, info.ContentType, cv.Data); err != nil {
		return err
	}
	record := &model.StudentCV{
		StudentID:  studentID,
		FilePath:   objectName,
		Name:       name,
		UploadedAt: u.now(),
	}
	if err := u.cvs.Create(ctx, record); err != nil {
		return apperr.Wrap(apperr.KindService, "Failed to save CV info", err)
	}
	u.logger.Info().Str("student_id", studentID).Str("path", objectName).Msg("CV stored")
	return nil
}

func (u *InterviewUsecase) Answer(ctx context.Context, studentID, answer string) (interview.State, error) {
	s := u.registry.Session(studentID, nil)
	if s == nil {
		return interview.State{}, apperr.NotFound("No interview in progress")
	}
	if err := s.SubmitAnswer(ctx, answer); err != nil {
		return s.Snapshot(), err
	}
	u.registry.StartPolling(studentID)
	return s.Snapshot(), nil
}

// Teardown stops polling and forgets the student's interview.
func (u *InterviewUsecase) Teardown(studentID string) {
	u.registry.Teardown(studentID)
}
