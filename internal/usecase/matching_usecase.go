package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/dto"
	"github.com/fadilmartias/questy/internal/model"
	"github.com/fadilmartias/questy/internal/response"
	"github.com/fadilmartias/questy/internal/service"
	"github.com/fadilmartias/questy/pkg/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	ViewSearch  = "search"
	ViewResults = "results"
)

type HRNeedStore interface {
	Create(ctx context.Context, need *model.HRNeed) error
	ListByCompany(ctx context.Context, companyID string, page, pageSize int) ([]model.HRNeed, int64, error)
	FindByID(ctx context.Context, companyID, id string) (*model.HRNeed, error)
}

type LatestCVFinder interface {
	LatestByStudent(ctx context.Context, studentID string) (*model.StudentCV, error)
}

type LatestSummaryFinder interface {
	LatestByStudent(ctx context.Context, studentID string) (*model.StudentSummary, error)
}

type CVLinker interface {
	NormalizeObjectPath(p string) string
	PublicURL(objectPath string) string
	Reachable(ctx context.Context, url string) bool
}

type WorkspaceView struct {
	View      string               `json:"view"`
	Draft     string               `json:"draft,omitempty"`
	Current   *dto.HRSearchRecord  `json:"current,omitempty"`
	History   []dto.HRSearchRecord `json:"history"`
	LastError string               `json:"last_error,omitempty"`
}

type workspace struct {
	mu        sync.Mutex
	history   []dto.HRSearchRecord
	currentID string
	view      string
	draft     string
	lastError string
}

func (w *workspace) find(id string) int {
	for i := range w.history {
		if w.history[i].ID == id {
			return i
		}
	}
	return -1
}

func (w *workspace) snapshot() WorkspaceView {
	v := WorkspaceView{
		View:      w.view,
		Draft:     w.draft,
		LastError: w.lastError,
		History:   make([]dto.HRSearchRecord, len(w.history)),
	}
	for i, r := range w.history {
		r.MatchingResults = append([]model.MatchResult(nil), r.MatchingResults...)
		v.History[i] = r
	}
	if i := w.find(w.currentID); i >= 0 {
		cur := v.History[i]
		v.Current = &cur
	}
	return v
}

type MatchingOptions struct {
	UnlockTopN    int
	LookupTimeout time.Duration
}

// MatchingUsecase keeps one search workspace per recruiter.
type MatchingUsecase struct {
	mu         sync.Mutex
	workspaces map[string]*workspace

	search    service.MatchingServiceInterface
	needs     HRNeedStore
	cvs       LatestCVFinder
	summaries LatestSummaryFinder
	links     CVLinker
	opts      MatchingOptions
	logger    log.Logger
}

func NewMatchingUsecase(search service.MatchingServiceInterface, needs HRNeedStore, cvs LatestCVFinder, summaries LatestSummaryFinder, links CVLinker, opts MatchingOptions, logger log.Logger) *MatchingUsecase {
	if opts.UnlockTopN <= 0 {
		opts.UnlockTopN = 3
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 10 * time.Second
	}
	return &MatchingUsecase{
		workspaces: make(map[string]*workspace),
		search:     search,
		needs:      needs,
		cvs:        cvs,
		summaries:  summaries,
		links:      links,
		opts:       opts,
		logger:     logger,
	}
}

func (u *MatchingUsecase) workspace(recruiterID string) *workspace {
	u.mu.Lock()
	defer u.mu.Unlock()
	w, ok := u.workspaces[recruiterID]
	if !ok {
		w = &workspace{view: ViewSearch}
		u.workspaces[recruiterID] = w
	}
	return w
}

func (u *MatchingUsecase) Workspace(recruiterID string) WorkspaceView {
	w := u.workspace(recruiterID)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot()
}

// Search posts the requirements to the matching webhook. On failure the draft
// is kept and the workspace stays on the search view.
func (u *MatchingUsecase) Search(ctx context.Context, recruiterID, requirements string) (WorkspaceView, error) {
	w := u.workspace(recruiterID)
	trimmed := strings.TrimSpace(requirements)
	if trimmed == "" {
		return u.Workspace(recruiterID), apperr.Validation("Please enter your requirements",
			map[string]string{"requirements_text": "Requirements are required"})
	}

	w.mu.Lock()
	w.draft = requirements
	w.lastError = ""
	w.mu.Unlock()

	rec, err := u.search.Search(ctx, recruiterID, trimmed)
	if err == nil && rec.ID == "" {
		err = u.persist(ctx, rec)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.lastError = err.Error()
		w.view = ViewSearch
		return w.snapshot(), err
	}
	w.history = append([]dto.HRSearchRecord{*rec}, w.history...)
	w.currentID = rec.ID
	w.view = ViewResults
	w.draft = ""
	return w.snapshot(), nil
}

func (u *MatchingUsecase) persist(ctx context.Context, rec *dto.HRSearchRecord) error {
	need, err := rec.ToHRNeed()
	if err != nil {
		return err
	}
	if err := u.needs.Create(ctx, need); err != nil {
		return apperr.Wrap(apperr.KindService, "Failed to save search", err)
	}
	rec.ID = need.ID.String()
	rec.CreatedAt = need.CreatedAt
	return nil
}

// History loads a page of stored searches. Unlocked contact data already held
// in memory survives the reload.
func (u *MatchingUsecase) History(ctx context.Context, recruiterID string, page, pageSize int) ([]dto.HRSearchRecord, *response.Pagination, error) {
	page, pageSize = response.NormalizePage(page, pageSize)
	needs, total, err := u.needs.ListByCompany(ctx, recruiterID, page, pageSize)
	if err != nil {
		return nil, nil, err
	}
	records := make([]dto.HRSearchRecord, 0, len(needs))
	for i := range needs {
		rec, err := dto.FromHRNeed(&needs[i])
		if err != nil {
			u.logger.Warn().Err(err).Str("id", needs[i].ID.String()).Msg("skipping unreadable search record")
			continue
		}
		records = append(records, rec)
	}

	w := u.workspace(recruiterID)
	w.mu.Lock()
	for i := range records {
		if j := w.find(records[i].ID); j >= 0 {
			records[i] = w.history[j]
		} else {
			w.history = append(w.history, records[i])
		}
	}
	w.mu.Unlock()

	return records, response.NewPagination(page, pageSize, len(records), total), nil
}

func (u *MatchingUsecase) Select(ctx context.Context, recruiterID, id string) (WorkspaceView, error) {
	w := u.workspace(recruiterID)
	w.mu.Lock()
	found := w.find(id) >= 0
	w.mu.Unlock()

	if !found {
		need, err := u.needs.FindByID(ctx, recruiterID, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return u.Workspace(recruiterID), apperr.NotFound("Search not found")
		}
		if err != nil {
			return u.Workspace(recruiterID), err
		}
		rec, err := dto.FromHRNeed(need)
		if err != nil {
			return u.Workspace(recruiterID), err
		}
		w.mu.Lock()
		if w.find(id) < 0 {
			w.history = append(w.history, rec)
		}
		w.mu.Unlock()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentID = id
	w.view = ViewResults
	return w.snapshot(), nil
}

func (u *MatchingUsecase) NewSearch(recruiterID string) WorkspaceView {
	w := u.workspace(recruiterID)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentID = ""
	w.view = ViewSearch
	w.lastError = ""
	return w.snapshot()
}

// UnlockTop fetches CV link and phone for the first n candidates of the
// current search. Lookups run in parallel; a failed lookup leaves its field
// nil and is reported as a PartialFailure next to the full result list.
// Results are kept in memory only.
func (u *MatchingUsecase) UnlockTop(ctx context.Context, recruiterID string, n int) ([]model.MatchResult, error) {
	if n <= 0 {
		n = u.opts.UnlockTopN
	}
	w := u.workspace(recruiterID)
	w.mu.Lock()
	idx := w.find(w.currentID)
	if idx < 0 {
		w.mu.Unlock()
		return nil, apperr.Validation("There is no search to unlock candidates from", nil)
	}
	recordID := w.currentID
	if n > len(w.history[idx].MatchingResults) {
		n = len(w.history[idx].MatchingResults)
	}
	top := append([]model.MatchResult{}, w.history[idx].MatchingResults[:n]...)
	w.mu.Unlock()

	var (
		g        errgroup.Group
		failMu   sync.Mutex
		failures []error
	)
	fail := func(err error) {
		failMu.Lock()
		failures = append(failures, err)
		failMu.Unlock()
	}
	for i := range top {
		g.Go(func() error {
			url, err := u.lookupCV(ctx, top[i].StudentID)
			if err != nil {
				fail(fmt.Errorf("cv %s: %w", top[i].StudentID, err))
			}
			top[i].CVURL = url
			return nil
		})
		g.Go(func() error {
			phone, err := u.lookupPhone(ctx, top[i].StudentID)
			if err != nil {
				fail(fmt.Errorf("phone %s: %w", top[i].StudentID, err))
			}
			top[i].Phone = phone
			return nil
		})
	}
	_ = g.Wait()

	w.mu.Lock()
	if j := w.find(recordID); j >= 0 {
		results := w.history[j].MatchingResults
		for i := 0; i < n && i < len(results); i++ {
			results[i].CVURL = top[i].CVURL
			results[i].Phone = top[i].Phone
		}
	}
	w.mu.Unlock()

	if len(failures) > 0 {
		partial := apperr.PartialFailure("Some candidate details could not be loaded", errors.Join(failures...))
		u.logger.Warn().Err(partial).Str("hr_company_id", recruiterID).Int("failed_lookups", len(failures)).Msg("candidates partially unlocked")
		return top, partial
	}
	u.logger.Info().Str("hr_company_id", recruiterID).Int("unlocked", n).Msg("candidates unlocked")
	return top, nil
}

// lookupCV returns the public link of the student's latest CV when it is
// reachable. A missing row or an unreachable link is not an error.
func (u *MatchingUsecase) lookupCV(ctx context.Context, studentID string) (*string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.opts.LookupTimeout)
	defer cancel()

	cv, err := u.cvs.LatestByStudent(ctx, studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cv.FilePath == "" {
		return nil, nil
	}
	url := u.links.PublicURL(u.links.NormalizeObjectPath(cv.FilePath))
	if !u.links.Reachable(ctx, url) {
		return nil, nil
	}
	return &url, nil
}

func (u *MatchingUsecase) lookupPhone(ctx context.Context, studentID string) (*string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.opts.LookupTimeout)
	defer cancel()

	summary, err := u.summaries.LatestByStudent(ctx, studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if summary.Phone == "" {
		return nil, nil
	}
	phone := summary.Phone
	return &phone, nil
}
