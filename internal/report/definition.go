package report

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AllValue is the filter sentinel that disables a status dimension.
const AllValue = "all"

//go:embed reports.yaml
var defaultDefinitions []byte

// Column formats.
const (
	FormatText   = "text"
	FormatMoney  = "money"
	FormatDate   = "date"
	FormatStatus = "status"
	FormatID     = "id"
)

type Definition struct {
	Key              string            `yaml:"key" json:"key"`
	Title            string            `yaml:"title" json:"title"`
	Endpoint         string            `yaml:"endpoint" json:"-"`
	DownloadEndpoint string            `yaml:"download_endpoint" json:"-"`
	DownloadFilename string            `yaml:"download_filename" json:"download_filename"`
	SearchFields     []string          `yaml:"search_fields" json:"search_fields"`
	SearchHint       string            `yaml:"search_hint" json:"search_hint"`
	StatusDimensions []StatusDimension `yaml:"status_dimensions" json:"status_dimensions"`
	AmountField      string            `yaml:"amount_field" json:"amount_field"`
	Secondary        *SecondarySum     `yaml:"secondary_sum" json:"secondary_sum,omitempty"`
	Labels           SummaryLabels     `yaml:"labels" json:"labels"`
	Columns          []Column          `yaml:"columns" json:"columns"`
	LoadingMessage   string            `yaml:"loading_message" json:"loading_message"`
	EmptyMessage     string            `yaml:"empty_message" json:"empty_message"`
	ExportError      string            `yaml:"export_error" json:"-"`
}

type StatusDimension struct {
	Key     string   `yaml:"key" json:"key"`
	Field   string   `yaml:"field" json:"field"`
	Label   string   `yaml:"label" json:"label"`
	Options []Option `yaml:"options" json:"options"`
}

type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// SecondarySum sums AmountField over the records whose Field equals Value.
type SecondarySum struct {
	Label string `yaml:"label" json:"label"`
	Field string `yaml:"field" json:"field"`
	Value string `yaml:"value" json:"value"`
}

type SummaryLabels struct {
	Count  string `yaml:"count" json:"count"`
	Amount string `yaml:"amount" json:"amount"`
}

type Column struct {
	Key     string   `yaml:"key" json:"key"`
	Label   string   `yaml:"label" json:"label"`
	Fields  []string `yaml:"fields" json:"-"`
	Format  string   `yaml:"format" json:"format"`
	Default string   `yaml:"default" json:"-"`
}

// Dimension returns the status dimension with the given key.
func (d *Definition) Dimension(key string) (StatusDimension, bool) {
	for _, dim := range d.StatusDimensions {
		if dim.Key == key {
			return dim, true
		}
	}
	return StatusDimension{}, false
}

// Allows reports whether value is a selectable option, "all" included.
func (s StatusDimension) Allows(value string) bool {
	if value == AllValue {
		return true
	}
	for _, o := range s.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

func (d *Definition) Validate() error {
	var errs []error
	if d.Key == "" {
		errs = append(errs, errors.New("key is required"))
	}
	if !strings.HasPrefix(d.Endpoint, "/") {
		errs = append(errs, fmt.Errorf("%s: endpoint must be an absolute path", d.Key))
	}
	if !strings.HasPrefix(d.DownloadEndpoint, "/") {
		errs = append(errs, fmt.Errorf("%s: download_endpoint must be an absolute path", d.Key))
	}
	if d.DownloadFilename == "" {
		errs = append(errs, fmt.Errorf("%s: download_filename is required", d.Key))
	}
	if d.AmountField == "" {
		errs = append(errs, fmt.Errorf("%s: amount_field is required", d.Key))
	}
	if len(d.SearchFields) == 0 {
		errs = append(errs, fmt.Errorf("%s: at least one search field is required", d.Key))
	}
	if len(d.Columns) == 0 {
		errs = append(errs, fmt.Errorf("%s: at least one column is required", d.Key))
	}

	seen := make(map[string]bool)
	for _, dim := range d.StatusDimensions {
		if dim.Key == "" || dim.Field == "" {
			errs = append(errs, fmt.Errorf("%s: status dimension needs key and field", d.Key))
			continue
		}
		if seen[dim.Key] {
			errs = append(errs, fmt.Errorf("%s: duplicate status dimension %q", d.Key, dim.Key))
		}
		seen[dim.Key] = true
		if len(dim.Options) == 0 {
			errs = append(errs, fmt.Errorf("%s: status dimension %q has no options", d.Key, dim.Key))
		}
		for _, o := range dim.Options {
			if o.Value == AllValue {
				errs = append(errs, fmt.Errorf("%s: %q is reserved in dimension %q", d.Key, AllValue, dim.Key))
			}
		}
	}

	for _, col := range d.Columns {
		switch col.Format {
		case "", FormatText, FormatMoney, FormatDate, FormatStatus, FormatID:
		default:
			errs = append(errs, fmt.Errorf("%s: column %q has unknown format %q", d.Key, col.Key, col.Format))
		}
		if len(col.Fields) == 0 {
			errs = append(errs, fmt.Errorf("%s: column %q has no fields", d.Key, col.Key))
		}
	}

	return errors.Join(errs...)
}

// Catalog is the ordered set of report definitions keyed by Definition.Key.
type Catalog struct {
	defs  []*Definition
	byKey map[string]*Definition
}

type catalogFile struct {
	Reports []*Definition `yaml:"reports"`
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse report definitions: %w", err)
	}
	if len(file.Reports) == 0 {
		return nil, errors.New("no report definitions found")
	}

	c := &Catalog{byKey: make(map[string]*Definition, len(file.Reports))}
	for _, def := range file.Reports {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("invalid report definition: %w", err)
		}
		if _, dup := c.byKey[def.Key]; dup {
			return nil, fmt.Errorf("duplicate report key %q", def.Key)
		}
		c.byKey[def.Key] = def
		c.defs = append(c.defs, def)
	}
	return c, nil
}

// LoadCatalog reads definitions from path, or the built-in set when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultDefinitions)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report definitions: %w", err)
	}
	return ParseCatalog(data)
}

func (c *Catalog) Get(key string) (*Definition, bool) {
	def, ok := c.byKey[key]
	return def, ok
}

func (c *Catalog) All() []*Definition {
	return c.defs
}
