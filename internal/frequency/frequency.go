package frequency

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Placeholder tokens recognised inside a template field.
const (
	TokenMinute  = 'm'
	TokenHour    = 'h'
	TokenDay     = 'd'
	TokenWeekday = 'w' // days_of_week, marks a day-specific cadence
	TokenEndHour = 'x' // end_time hour, marks a multi-occurrence-per-day cadence
)

// Frequency is one entry of the cadence vocabulary.
type Frequency struct {
	Template    string `json:"template"`
	Label       string `json:"label"`
	MultiPerDay bool   `json:"multi_per_day"`
	DaySpecific bool   `json:"day_specific"`
}

var vocabulary = []Frequency{
	{Template: "m h * * *", Label: "every day"},
	{Template: "m h * * 1-5", Label: "every weekday"},
	{Template: "m h * * w", Label: "on selected days of the week", DaySpecific: true},
	{Template: "m h * * 1", Label: "every Monday"},
	{Template: "m h * * 2", Label: "every Tuesday"},
	{Template: "m h * * 3", Label: "every Wednesday"},
	{Template: "m h * * 4", Label: "every Thursday"},
	{Template: "m h * * 5", Label: "every Friday"},
	{Template: "m h * * 6", Label: "every Saturday"},
	{Template: "m h * * 0", Label: "every Sunday"},
	{Template: "m h d * *", Label: "every month"},
	{Template: "m h d * 1-5", Label: "every weekday of the month"},
	{Template: "m h-x * * *", Label: "every hour until the end time", MultiPerDay: true},
	{Template: "*/5 h-x * * *", Label: "every 5 minutes until the end time", MultiPerDay: true},
	{Template: "* h-x * * *", Label: "every minute until the end time", MultiPerDay: true},
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// All returns a copy of the vocabulary in display order.
func All() []Frequency {
	out := make([]Frequency, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// Lookup finds a vocabulary entry by its template.
func Lookup(template string) (Frequency, bool) {
	template = normalize(template)
	for _, f := range vocabulary {
		if f.Template == template {
			return f, true
		}
	}
	return Frequency{}, false
}

// IsMultiPerDay reports whether the template fires several times a day.
func IsMultiPerDay(template string) bool {
	return hasToken(template, TokenEndHour)
}

// IsDaySpecific reports whether the template needs explicit weekdays.
func IsDaySpecific(template string) bool {
	return hasToken(template, TokenWeekday)
}

func hasToken(template string, tok byte) bool {
	for _, field := range strings.Fields(template) {
		if strings.IndexByte(field, tok) >= 0 {
			return true
		}
	}
	return false
}

func normalize(template string) string {
	return strings.Join(strings.Fields(template), " ")
}

// Slots holds the concrete values substituted into a template.
type Slots struct {
	Minute   int
	Hour     int
	Day      int
	EndHour  int
	Weekdays []int
}

// SlotsFor extracts slot values from a habit's wall-clock times, read in loc.
func SlotsFor(start time.Time, end *time.Time, weekdays []int, loc *time.Location) Slots {
	if loc == nil {
		loc = time.UTC
	}
	start = start.In(loc)
	s := Slots{
		Minute: start.Minute(),
		Hour:   start.Hour(),
		Day:    start.Day(),
	}
	if end != nil {
		s.EndHour = end.In(loc).Hour()
	}
	if len(weekdays) > 0 {
		s.Weekdays = append([]int(nil), weekdays...)
		sort.Ints(s.Weekdays)
	}
	return s
}

// Compile substitutes every placeholder of template and returns a concrete
// five-field cron expression. The template itself is never modified, so
// compiling the same inputs twice gives the same result.
func Compile(template string, s Slots) (string, error) {
	fields := strings.Fields(template)
	if len(fields) != 5 {
		return "", fmt.Errorf("compile %q: expected 5 fields, got %d", template, len(fields))
	}

	out := make([]string, len(fields))
	for i, field := range fields {
		f, err := substitute(field, s)
		if err != nil {
			return "", fmt.Errorf("compile %q: %w", template, err)
		}
		out[i] = f
	}

	expr := strings.Join(out, " ")
	if _, err := parser.Parse(expr); err != nil {
		return "", fmt.Errorf("compile %q: invalid result %q: %w", template, expr, err)
	}
	return expr, nil
}

// Validate checks that expr is a concrete five-field cron expression.
func Validate(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

func substitute(field string, s Slots) (string, error) {
	var b strings.Builder
	for i := 0; i < len(field); i++ {
		c := field[i]
		switch c {
		case TokenMinute:
			b.WriteString(strconv.Itoa(s.Minute))
		case TokenHour:
			b.WriteString(strconv.Itoa(s.Hour))
		case TokenDay:
			b.WriteString(strconv.Itoa(s.Day))
		case TokenEndHour:
			b.WriteString(strconv.Itoa(s.EndHour))
		case TokenWeekday:
			if len(s.Weekdays) == 0 {
				return "", fmt.Errorf("no weekdays for %q", field)
			}
			days := make([]string, len(s.Weekdays))
			for j, d := range s.Weekdays {
				days[j] = strconv.Itoa(d)
			}
			b.WriteString(strings.Join(days, ","))
		default:
			if c >= 'a' && c <= 'z' {
				return "", fmt.Errorf("unknown token %q in %q", c, field)
			}
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
