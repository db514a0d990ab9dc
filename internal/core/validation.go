package core

// validation.go holds the four field validators applied to every data row.
//
// Each validator trims its input, returns the normalized value on success and
// a *FieldError otherwise. The Message of that error is the row detail shown
// to the user, so the texts stay in the language of the uploaded files.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	// DefaultDateLayout is DD.MM.YYYY with zero padding.
	DefaultDateLayout = "02.01.2006"

	// DefaultGroupPattern matches three digits and one Cyrillic letter.
	DefaultGroupPattern = `(?i)^\d{3}[А-ЯЁ]$`

	MinYear  = 1900
	MaxYear  = 2100
	MinGrade = 1
	MaxGrade = 5
)

var digitsPattern = regexp.MustCompile(`^[0-9]+$`)

var layoutHint = strings.NewReplacer("2006", "YYYY", "01", "MM", "02", "DD")

// Validator validates raw CSV fields. It is immutable after construction
// and safe for concurrent use.
type Validator struct {
	dateLayout string
	dateHint   string
	group      *regexp.Regexp
	now        func() time.Time
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithClock replaces time.Now as the source of "today" for the future-date check.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewValidator compiles groupPattern and returns a Validator parsing dates
// with dateLayout. Empty arguments fall back to the defaults.
func NewValidator(dateLayout, groupPattern string, opts ...ValidatorOption) (*Validator, error) {
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	if groupPattern == "" {
		groupPattern = DefaultGroupPattern
	}
	re, err := regexp.Compile(groupPattern)
	if err != nil {
		return nil, fmt.Errorf("compile group pattern %q: %w", groupPattern, err)
	}

	v := &Validator{
		dateLayout: dateLayout,
		dateHint:   layoutHint.Replace(dateLayout),
		group:      re,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// DefaultValidator returns a Validator with the default layout and pattern.
func DefaultValidator(opts ...ValidatorOption) *Validator {
	v, err := NewValidator(DefaultDateLayout, DefaultGroupPattern, opts...)
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateDate parses a date, rejecting future dates and years outside [MinYear, MaxYear].
func (v *Validator) ValidateDate(raw string) (time.Time, error) {
	s := trimSpace(raw)
	if s == "" {
		return time.Time{}, fieldError("date", KindEmptyField, raw, "Пустая дата")
	}

	d, err := time.Parse(v.dateLayout, s)
	if err != nil {
		return time.Time{}, fieldError("date", KindInvalidFormat, raw,
			"Неверный формат даты, ожидалось %s: '%s'", v.dateHint, s)
	}
	if d.After(v.today()) {
		return time.Time{}, fieldError("date", KindFutureDate, raw, "Дата в будущем: %s", s)
	}
	if y := d.Year(); y < MinYear || y > MaxYear {
		return time.Time{}, fieldError("date", KindYearOutOfRange, raw, "Неверный год в дате: %d", y)
	}
	return d, nil
}

// today is the current local calendar date expressed at UTC midnight,
// comparable with the output of time.Parse.
func (v *Validator) today() time.Time {
	n := v.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidateGroup uppercases a group code and matches it against the group pattern.
func (v *Validator) ValidateGroup(raw string) (string, error) {
	s := strings.ToUpper(trimSpace(raw))
	if s == "" {
		return "", fieldError("group", KindEmptyField, raw, "Пустой номер группы")
	}
	if !v.group.MatchString(s) {
		return "", fieldError("group", KindPatternMismatch, raw,
			"Номер группы не соответствует шаблону 'DDDХ' (например 101Б): '%s'", s)
	}
	return s, nil
}

// ValidateFullName collapses whitespace and requires at least surname and given name.
func (v *Validator) ValidateFullName(raw string) (string, error) {
	parts := fields(raw)
	if len(parts) == 0 {
		return "", fieldError("full_name", KindEmptyField, raw, "Пустое ФИО")
	}
	if len(parts) < 2 {
		return "", fieldError("full_name", KindTooFewParts, raw, "ФИО должно содержать минимум фамилию и имя")
	}
	return strings.Join(parts, " "), nil
}

// ValidateGrade accepts an unsigned integer in [MinGrade, MaxGrade].
func (v *Validator) ValidateGrade(raw string) (int, error) {
	s := trimSpace(raw)
	if s == "" {
		return 0, fieldError("grade", KindEmptyField, raw, "Пустая оценка")
	}
	if !digitsPattern.MatchString(s) {
		return 0, fieldError("grade", KindNotInteger, raw, "Оценка должна быть целым числом")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < MinGrade || n > MaxGrade {
		// Atoi only fails here on overflow, which is out of range too.
		return 0, fieldError("grade", KindOutOfRange, raw, "Оценка должна быть в диапазоне %d..%d", MinGrade, MaxGrade)
	}
	return n, nil
}

// isSpace extends unicode.IsSpace with the information separators
// U+001C..U+001F, which spreadsheet exports leave inside cells.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= '\x1c' && r <= '\x1f')
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

func fields(s string) []string {
	return strings.FieldsFunc(s, isSpace)
}
