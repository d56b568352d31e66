package forecast

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period identifies a calendar quarter.
type Period struct {
	Year    int
	Quarter int
}

// ParsePeriod parses a YYYYQn label.
func ParsePeriod(label string) (Period, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(label))
	if len(trimmed) != 6 || trimmed[4] != 'Q' {
		return Period{}, &MalformedPeriodError{Label: label}
	}

	year, err := strconv.Atoi(trimmed[:4])
	if err != nil {
		return Period{}, &MalformedPeriodError{Label: label}
	}
	quarter := int(trimmed[5] - '0')
	if quarter < 1 || quarter > 4 {
		return Period{}, &MalformedPeriodError{Label: label}
	}

	return Period{Year: year, Quarter: quarter}, nil
}

// PeriodOf returns the quarter containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Quarter: (int(t.Month())-1)/3 + 1}
}

// String renders the period as YYYYQn.
func (p Period) String() string {
	return fmt.Sprintf("%04dQ%d", p.Year, p.Quarter)
}

// Next returns the following quarter.
func (p Period) Next() Period {
	if p.Quarter >= 4 {
		return Period{Year: p.Year + 1, Quarter: 1}
	}
	return Period{Year: p.Year, Quarter: p.Quarter + 1}
}

// Add moves the period by n quarters, n may be negative.
func (p Period) Add(n int) Period {
	idx := p.ordinal() + n
	return Period{Year: floorDiv(idx, 4), Quarter: idx - floorDiv(idx, 4)*4 + 1}
}

// Compare orders periods by year then quarter.
func (p Period) Compare(other Period) int {
	switch {
	case p.ordinal() < other.ordinal():
		return -1
	case p.ordinal() > other.ordinal():
		return 1
	default:
		return 0
	}
}

// Before reports whether p precedes other.
func (p Period) Before(other Period) bool {
	return p.Compare(other) < 0
}

// Start returns the first day of the quarter in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month((p.Quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
}

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Period) ordinal() int {
	return p.Year*4 + p.Quarter - 1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
