package report

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseError   Phase = "error"
	PhaseReady   Phase = "ready"
)

// View is the derived, display-ready form of a ViewState. It is recomputed
// on every read and never stored.
type View struct {
	ID            string       `json:"id"`
	Report        string       `json:"report"`
	Title         string       `json:"title"`
	Status        Phase        `json:"status"`
	Message       string       `json:"message,omitempty"`
	Error         string       `json:"error,omitempty"`
	ExportError   string       `json:"export_error,omitempty"`
	Criteria      *Criteria    `json:"criteria,omitempty"`
	Columns       []Column     `json:"columns,omitempty"`
	Summary       *Summary     `json:"summary,omitempty"`
	Rows          []Row        `json:"rows,omitempty"`
	Empty         bool         `json:"empty,omitempty"`
	EmptyMessage  string       `json:"empty_message,omitempty"`
	FilteredCount int          `json:"filtered_count"`
	Page          int          `json:"page"`
	TotalPages    int          `json:"total_pages"`
	PageSize      int          `json:"page_size"`
	Pagination    *PageControl `json:"pagination,omitempty"`
}

type Summary struct {
	Count     int              `json:"count"`
	Amount    decimal.Decimal  `json:"amount"`
	Secondary *decimal.Decimal `json:"secondary,omitempty"`
	Cards     []SummaryCard    `json:"cards"`
}

type SummaryCard struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PageControl is present only when the filtered set spans more than one page.
type PageControl struct {
	Page       int  `json:"page"`
	TotalPages int  `json:"total_pages"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

type Row struct {
	Cells []Cell `json:"cells"`
}

type Cell struct {
	Key  string `json:"key"`
	Text string `json:"text"`
	Raw  string `json:"raw,omitempty"`
}

// Derive filters, paginates and aggregates state according to def.
func Derive(def *Definition, state *ViewState, pageSize int, f *Formatter) *View {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	v := &View{
		ID:         state.ID,
		Report:     def.Key,
		Title:      def.Title,
		PageSize:   pageSize,
		Page:       1,
		TotalPages: 1,
	}

	switch {
	case state.Loading:
		v.Status = PhaseLoading
		v.Message = def.LoadingMessage
		return v
	case state.Error != "":
		v.Status = PhaseError
		v.Error = state.Error
		v.Message = "Error: " + state.Error
		return v
	}

	v.Status = PhaseReady
	v.ExportError = state.ExportError
	criteria := state.Criteria
	v.Criteria = &criteria
	v.Columns = def.Columns

	filtered := Filter(state.Records, def, state.Criteria)
	slice, page, total := Paginate(filtered, state.Page, pageSize)
	v.FilteredCount = len(filtered)
	v.Page = page
	v.TotalPages = total

	v.Summary = summarize(def, Aggregate(filtered, def), f)

	if len(slice) == 0 {
		v.Empty = true
		v.EmptyMessage = def.EmptyMessage
		v.Rows = []Row{}
	} else {
		v.Rows = make([]Row, 0, len(slice))
		for _, rec := range slice {
			v.Rows = append(v.Rows, renderRow(def, rec, f))
		}
	}

	if len(filtered) > pageSize {
		v.Pagination = &PageControl{
			Page:       page,
			TotalPages: total,
			HasPrev:    page > 1,
			HasNext:    page < total,
		}
	}
	return v
}

func summarize(def *Definition, t Totals, f *Formatter) *Summary {
	s := &Summary{
		Count:     t.Count,
		Amount:    t.Amount,
		Secondary: t.Secondary,
		Cards: []SummaryCard{
			{Label: def.Labels.Count, Value: strconv.Itoa(t.Count)},
			{Label: def.Labels.Amount, Value: f.Money(t.Amount)},
		},
	}
	if def.Secondary != nil && t.Secondary != nil {
		s.Cards = append(s.Cards, SummaryCard{Label: def.Secondary.Label, Value: f.Money(*t.Secondary)})
	}
	return s
}

func renderRow(def *Definition, rec Record, f *Formatter) Row {
	cells := make([]Cell, 0, len(def.Columns))
	for _, col := range def.Columns {
		cells = append(cells, renderCell(col, rec, f))
	}
	return Row{Cells: cells}
}

func renderCell(col Column, rec Record, f *Formatter) Cell {
	cell := Cell{Key: col.Key}

	var raw string
	var found bool
	for _, field := range col.Fields {
		if s, ok := rec.Text(field); ok && s != "" {
			raw, found = s, true
			break
		}
	}

	switch col.Format {
	case FormatMoney:
		cell.Text = f.Money(rec.Amount(col.Fields[0]))
		return cell
	case FormatDate:
		cell.Text = f.Date(raw)
	case FormatStatus:
		cell.Raw = raw
		cell.Text = StatusLabel(raw)
	case FormatID:
		cell.Raw = raw
		cell.Text = truncateID(raw)
	default:
		cell.Text = raw
	}
	if !found && col.Default != "" {
		cell.Text = col.Default
	}
	return cell
}

func truncateID(id string) string {
	const keep = 8
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	r := []rune(id)
	if len(r) > keep {
		r = r[:keep]
	}
	return string(r) + "..."
}
