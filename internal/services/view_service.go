package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"eurodoor_admin/internal/apperr"
	"eurodoor_admin/internal/report"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ActionNext = "next"
	ActionPrev = "prev"
)

var errFetchCanceled = errors.New("fetch canceled")

// CollectionFetcher loads a report's records from the backend.
type CollectionFetcher interface {
	FetchCollection(ctx context.Context, path string) ([]map[string]any, error)
}

// ViewUpdate carries the user input of one PATCH. Nil fields are left alone.
type ViewUpdate struct {
	Search  *string           `json:"search"`
	Filters map[string]string `json:"filters"`
	Page    *int              `json:"page"`
	Action  string            `json:"action"`
}

type ViewService interface {
	Reports() []*report.Definition
	Mount(ctx context.Context, sessionID, reportKey string) (*report.View, error)
	Get(ctx context.Context, sessionID, viewID string) (*report.View, error)
	Update(ctx context.Context, sessionID, viewID string, upd ViewUpdate) (*report.View, error)
	Unmount(ctx context.Context, sessionID, viewID string) error
	// Currency is the ISO code money cells are shown in.
	Currency() string
	Shutdown()
}

type ViewOptions struct {
	PageSize int
}

type viewService struct {
	registry  *Registry
	fetcher   CollectionFetcher
	formatter *report.Formatter
	opts      ViewOptions
	log       *zap.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewViewService(
	registry *Registry,
	fetcher CollectionFetcher,
	formatter *report.Formatter,
	opts ViewOptions,
	log *zap.Logger,
) ViewService {
	if opts.PageSize <= 0 {
		opts.PageSize = report.DefaultPageSize
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &viewService{
		registry:  registry,
		fetcher:   fetcher,
		formatter: formatter,
		opts:      opts,
		log:       log,
		baseCtx:   baseCtx,
		stop:      stop,
	}
}

func (s *viewService) Reports() []*report.Definition {
	return s.registry.Catalog().All()
}

func (s *viewService) Currency() string {
	return s.formatter.Currency()
}

// Mount opens a view in the loading phase and starts fetching in the background.
func (s *viewService) Mount(ctx context.Context, sessionID, reportKey string) (*report.View, error) {
	def, ok := s.registry.Catalog().Get(reportKey)
	if !ok {
		return nil, apperr.NotFoundErr(fmt.Sprintf("Unknown report %q", reportKey))
	}

	state := report.NewViewState(uuid.NewString(), sessionID, def)
	if err := s.registry.Create(ctx, state); err != nil {
		return nil, err
	}

	fetchCtx, done := s.registry.Tracker().Track(s.baseCtx, state.ID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer done()
		s.load(fetchCtx, def, state.ID)
	}()

	s.log.Info("View mounted",
		zap.String("view_id", state.ID),
		zap.String("report", def.Key))

	return report.Derive(def, state, s.opts.PageSize, s.formatter), nil
}

func (s *viewService) load(ctx context.Context, def *report.Definition, viewID string) {
	start := time.Now()
	rows, fetchErr := s.fetcher.FetchCollection(ctx, def.Endpoint)
	if ctx.Err() != nil {
		s.log.Debug("Fetch canceled", zap.String("view_id", viewID))
		return
	}

	_, _, err := s.registry.Modify(context.Background(), "", viewID, func(state *report.ViewState, _ *report.Definition) error {
		// checked under the registry lock so an unmount cannot be undone
		if ctx.Err() != nil {
			return errFetchCanceled
		}
		if fetchErr != nil {
			state.Failed(fetchErr.Error())
			return nil
		}
		records := make([]report.Record, len(rows))
		for i, row := range rows {
			records[i] = report.Record(row)
		}
		state.Loaded(records)
		return nil
	})

	switch {
	// an unmount racing the store deletes the view, so a miss is a cancel too
	case errors.Is(err, errFetchCanceled), err != nil && ctx.Err() != nil:
		s.log.Debug("Fetch canceled", zap.String("view_id", viewID))
	case err != nil:
		s.log.Warn("Could not store fetched view", zap.String("view_id", viewID), zap.Error(err))
	case fetchErr != nil:
		s.log.Error("Failed to fetch report",
			zap.String("view_id", viewID),
			zap.String("report", def.Key),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(fetchErr))
	default:
		s.log.Info("Report fetched",
			zap.String("view_id", viewID),
			zap.String("report", def.Key),
			zap.Int("records", len(rows)),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *viewService) Get(ctx context.Context, sessionID, viewID string) (*report.View, error) {
	state, def, err := s.registry.Read(ctx, sessionID, viewID)
	if err != nil {
		return nil, err
	}
	return report.Derive(def, state, s.opts.PageSize, s.formatter), nil
}

func (s *viewService) Update(ctx context.Context, sessionID, viewID string, upd ViewUpdate) (*report.View, error) {
	if upd.Action != "" && upd.Action != ActionNext && upd.Action != ActionPrev {
		return nil, apperr.ValidationErr(fmt.Sprintf("Unknown action %q", upd.Action))
	}

	state, def, err := s.registry.Modify(ctx, sessionID, viewID, func(state *report.ViewState, def *report.Definition) error {
		if state.Loading || state.Error != "" {
			return apperr.ValidationErr("Report is not loaded")
		}
		return s.apply(state, def, upd)
	})
	if err != nil {
		return nil, err
	}
	return report.Derive(def, state, s.opts.PageSize, s.formatter), nil
}

// apply changes search first, then filters, then the page, so an explicit
// page survives the reset a criteria change causes.
func (s *viewService) apply(state *report.ViewState, def *report.Definition, upd ViewUpdate) error {
	if upd.Search != nil {
		state.SetSearch(*upd.Search)
	}

	keys := make([]string, 0, len(upd.Filters))
	for k := range upd.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := state.SetFilter(def, k, upd.Filters[k]); err != nil {
			if errors.Is(err, report.ErrUnknownDimension) {
				return apperr.ValidationErr(fmt.Sprintf("Unknown filter %q", k))
			}
			return apperr.ValidationErr(fmt.Sprintf("Invalid value %q for filter %q", upd.Filters[k], k))
		}
	}

	if upd.Page != nil {
		state.GoToPage(def, s.opts.PageSize, *upd.Page)
	}
	switch upd.Action {
	case ActionNext:
		state.NextPage(def, s.opts.PageSize)
	case ActionPrev:
		state.PrevPage(def, s.opts.PageSize)
	}
	return nil
}

// Unmount cancels any in-flight fetch or export and forgets the view.
func (s *viewService) Unmount(ctx context.Context, sessionID, viewID string) error {
	canceled, err := s.registry.Remove(ctx, sessionID, viewID)
	if err != nil {
		return err
	}
	s.log.Info("View unmounted", zap.String("view_id", viewID), zap.Int("canceled", canceled))
	return nil
}

// Shutdown cancels background fetches and waits for them to return.
func (s *viewService) Shutdown() {
	s.stop()
	s.wg.Wait()
}
