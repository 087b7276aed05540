package market

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sawpanic/brlpulse/internal/market/numeral"
)

var (
	// ErrBlockNotFound is returned when the response has no DATA_START...DATA_END block
	ErrBlockNotFound = errors.New("data block not found")
	// ErrFieldMissing matches a FieldError with at least one absent label
	ErrFieldMissing = errors.New("field missing")
	// ErrFieldGarbled matches a FieldError whose labels are present but unreadable
	ErrFieldGarbled = errors.New("field garbled")
)

var (
	blockPattern   = regexp.MustCompile(`(?s)` + BlockStart + `(.*?)` + BlockEnd)
	numeralPattern = regexp.MustCompile(`^(?:US\$|R\$|\$)?\s*([\d.,]+)`)
	labelPatterns  = buildLabelPatterns(Labels)
)

func buildLabelPatterns(labels []string) map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(labels))
	for _, label := range labels {
		// tolerate stray markdown emphasis around the label even though the prompt forbids it
		patterns[label] = regexp.MustCompile(`\b` + regexp.QuoteMeta(label) + `\**[ \t]*:\**\s*([^\n]*)`)
	}
	return patterns
}

// FieldError reports every label that could not be turned into a number
type FieldError struct {
	Problems []FieldReport
}

func (e *FieldError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Status == FieldGarbled {
			parts = append(parts, fmt.Sprintf("%s garbled (%q)", p.Label, p.Raw))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s", p.Label, p.Status))
	}
	return "unusable market fields: " + strings.Join(parts, "; ")
}

// Kind is field_missing when any label is absent, field_garbled otherwise
func (e *FieldError) Kind() ErrorKind {
	for _, p := range e.Problems {
		if p.Status == FieldMissing {
			return KindFieldMissing
		}
	}
	return KindFieldGarbled
}

func (e *FieldError) Is(target error) bool {
	switch target {
	case ErrFieldMissing:
		return e.Kind() == KindFieldMissing
	case ErrFieldGarbled:
		return e.Kind() == KindFieldGarbled
	}
	return false
}

// Parser turns free model text into a Snapshot
type Parser struct {
	rules numeral.Rules
}

// NewParser creates a parser that resolves separators with rules
func NewParser(rules numeral.Rules) *Parser {
	return &Parser{rules: rules}
}

// ExtractBlock returns the text between the first DATA_START and the next DATA_END
func ExtractBlock(text string) (string, error) {
	m := blockPattern.FindStringSubmatch(text)
	if m == nil {
		return "", ErrBlockNotFound
	}
	return m[1], nil
}

// ParseFields extracts every label from block, in Labels order, whatever order they appear in
func (p *Parser) ParseFields(block string) []FieldReport {
	reports := make([]FieldReport, 0, len(Labels))
	for _, label := range Labels {
		reports = append(reports, p.parseField(block, label))
	}
	return reports
}

func (p *Parser) parseField(block, label string) FieldReport {
	report := FieldReport{Label: label}

	m := labelPatterns[label].FindStringSubmatch(block)
	if m == nil {
		report.Status = FieldMissing
		return report
	}

	rest := strings.TrimSpace(m[1])
	nm := numeralPattern.FindStringSubmatch(rest)
	if nm == nil {
		report.Raw = rest
		report.Status = FieldGarbled
		return report
	}

	report.Raw = nm[1]
	v, err := numeral.Parse(nm[1], p.rules)
	if err != nil {
		report.Status = FieldGarbled
		return report
	}
	report.Value = v
	report.Status = FieldOK
	return report
}

// BuildSnapshot assembles a Snapshot only when every field parsed
func BuildSnapshot(fields []FieldReport, now time.Time) (Snapshot, error) {
	values := make(map[string]float64, len(fields))
	var problems []FieldReport
	for _, f := range fields {
		if f.Status != FieldOK {
			problems = append(problems, f)
			continue
		}
		values[f.Label] = f.Value
	}
	for _, label := range Labels {
		if _, ok := values[label]; !ok && !hasLabel(problems, label) {
			problems = append(problems, FieldReport{Label: label, Status: FieldMissing})
		}
	}
	if len(problems) > 0 {
		return Snapshot{}, &FieldError{Problems: problems}
	}

	return Snapshot{
		BTC:        values[LabelBTC],
		Gold:       values[LabelGold],
		USDToBRL:   values[LabelUSDBRL],
		CapturedAt: now,
	}, nil
}

func hasLabel(reports []FieldReport, label string) bool {
	for _, r := range reports {
		if r.Label == label {
			return true
		}
	}
	return false
}

// Parse runs block extraction, field extraction and snapshot assembly.
// Field reports are returned whenever the block was found, even on error.
func (p *Parser) Parse(text string, now time.Time) (Snapshot, []FieldReport, error) {
	block, err := ExtractBlock(text)
	if err != nil {
		return Snapshot{}, nil, err
	}
	fields := p.ParseFields(block)
	snap, err := BuildSnapshot(fields, now)
	if err != nil {
		return Snapshot{}, fields, err
	}
	return snap, fields, nil
}
