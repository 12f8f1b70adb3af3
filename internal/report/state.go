package report

import (
	"errors"
	"time"
)

var (
	ErrUnknownDimension = errors.New("unknown status dimension")
	ErrInvalidOption    = errors.New("invalid status option")
)

// ViewState is everything one open report view remembers. Records is the
// collection as last fetched; the other fields change only on user input.
type ViewState struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	ReportKey   string    `json:"report_key"`
	Records     []Record  `json:"records"`
	Criteria    Criteria  `json:"criteria"`
	Page        int       `json:"page"`
	Loading     bool      `json:"loading"`
	Error       string    `json:"error,omitempty"`
	ExportError string    `json:"export_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewViewState(id, sessionID string, def *Definition) *ViewState {
	filters := make(map[string]string, len(def.StatusDimensions))
	for _, dim := range def.StatusDimensions {
		filters[dim.Key] = AllValue
	}
	now := time.Now()
	return &ViewState{
		ID:        id,
		SessionID: sessionID,
		ReportKey: def.Key,
		Records:   []Record{},
		Criteria:  Criteria{Filters: filters},
		Page:      1,
		Loading:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Loaded stores a successful fetch.
func (s *ViewState) Loaded(records []Record) {
	if records == nil {
		records = []Record{}
	}
	s.Records = records
	s.Loading = false
	s.Error = ""
	s.touch()
}

// Failed stores a failed fetch. The view then shows only the message.
func (s *ViewState) Failed(msg string) {
	s.Loading = false
	s.Error = msg
	s.touch()
}

func (s *ViewState) SetSearch(term string) {
	s.Criteria.Search = term
	s.Page = 1
	s.touch()
}

func (s *ViewState) SetFilter(def *Definition, key, value string) error {
	dim, ok := def.Dimension(key)
	if !ok {
		return ErrUnknownDimension
	}
	if value == "" {
		value = AllValue
	}
	if !dim.Allows(value) {
		return ErrInvalidOption
	}
	if s.Criteria.Filters == nil {
		s.Criteria.Filters = make(map[string]string)
	}
	s.Criteria.Filters[key] = value
	s.Page = 1
	s.touch()
	return nil
}

func (s *ViewState) NextPage(def *Definition, size int) {
	s.GoToPage(def, size, s.Page+1)
}

func (s *ViewState) PrevPage(def *Definition, size int) {
	s.GoToPage(def, size, s.Page-1)
}

// GoToPage moves to page, clamped against the current filtered count.
func (s *ViewState) GoToPage(def *Definition, size, page int) {
	filtered := Filter(s.Records, def, s.Criteria)
	s.Page = ClampPage(page, TotalPages(len(filtered), size))
	s.touch()
}

func (s *ViewState) SetExportError(msg string) {
	s.ExportError = msg
	s.touch()
}

func (s *ViewState) touch() {
	s.UpdatedAt = time.Now()
}
