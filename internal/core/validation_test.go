package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, time.June, 15, 13, 30, 0, 0, time.Local)

func testValidator(t *testing.T) *Validator {
	t.Helper()
	return DefaultValidator(WithClock(func() time.Time { return fixedNow }))
}

func kindOf(err error) ErrorKind {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func TestValidateDate(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name     string
		input    string
		want     time.Time
		wantKind ErrorKind
	}{
		{"valid", "01.09.2023", time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC), ""},
		{"surrounding whitespace", "  01.09.2023\t", time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC), ""},
		{"today is allowed", "15.06.2024", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), ""},
		{"lowest year", "01.01.1900", time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), ""},
		{"empty", "", time.Time{}, KindEmptyField},
		{"blank", "   ", time.Time{}, KindEmptyField},
		{"iso layout", "2023-09-01", time.Time{}, KindInvalidFormat},
		{"not zero padded", "1.9.2023", time.Time{}, KindInvalidFormat},
		{"impossible day", "31.02.2023", time.Time{}, KindInvalidFormat},
		{"two digit year", "01.09.23", time.Time{}, KindInvalidFormat},
		{"tomorrow", "16.06.2024", time.Time{}, KindFutureDate},
		{"far future is future first", "01.01.2500", time.Time{}, KindFutureDate},
		{"too old", "31.12.1899", time.Time{}, KindYearOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateDate(tt.input)
			if tt.wantKind != "" {
				if err == nil {
					t.Fatalf("ValidateDate(%q) = %v, want %s error", tt.input, got, tt.wantKind)
				}
				if k := kindOf(err); k != tt.wantKind {
					t.Errorf("ValidateDate(%q) kind = %s, want %s", tt.input, k, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateDate(%q) error = %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ValidateDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateDate_Messages(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		input string
		want  string
	}{
		{"", "Пустая дата"},
		{"2023/09/01", "Неверный формат даты, ожидалось DD.MM.YYYY: '2023/09/01'"},
		{"01.01.2030", "Дата в будущем: 01.01.2030"},
		{"01.01.1800", "Неверный год в дате: 1800"},
	}

	for _, tt := range tests {
		_, err := v.ValidateDate(tt.input)
		if err == nil || err.Error() != tt.want {
			t.Errorf("ValidateDate(%q) error = %v, want %q", tt.input, err, tt.want)
		}
	}
}

func TestValidateDate_CustomLayout(t *testing.T) {
	v, err := NewValidator("2006-01-02", "", WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	if _, err := v.ValidateDate("2023-09-01"); err != nil {
		t.Errorf("ValidateDate(iso) error = %v", err)
	}
	_, err = v.ValidateDate("01.09.2023")
	if err == nil || !strings.Contains(err.Error(), "YYYY-MM-DD") {
		t.Errorf("ValidateDate(dotted) error = %v, want hint YYYY-MM-DD", err)
	}
}

func TestValidateGroup(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		input    string
		want     string
		wantKind ErrorKind
	}{
		{"101Б", "101Б", ""},
		{"101б", "101Б", ""},
		{" 305ё ", "305Ё", ""},
		{"999Я", "999Я", ""},
		{"", "", KindEmptyField},
		{"  ", "", KindEmptyField},
		{"AB1", "", KindPatternMismatch},
		{"10Б", "", KindPatternMismatch},
		{"1010Б", "", KindPatternMismatch},
		{"101B", "", KindPatternMismatch},
		{"101ББ", "", KindPatternMismatch},
		{"101 Б", "", KindPatternMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := v.ValidateGroup(tt.input)
			if tt.wantKind != "" {
				if k := kindOf(err); k != tt.wantKind {
					t.Errorf("ValidateGroup(%q) = (%q, %v), want kind %s", tt.input, got, err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateGroup(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ValidateGroup(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateGroup_CustomPattern(t *testing.T) {
	v, err := NewValidator("", `^[A-Z]{2}-\d{2}$`)
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	if got, err := v.ValidateGroup("ab-12"); err != nil || got != "AB-12" {
		t.Errorf("ValidateGroup(ab-12) = (%q, %v), want AB-12", got, err)
	}
	if _, err := v.ValidateGroup("101Б"); err == nil {
		t.Error("ValidateGroup(101Б) expected mismatch with custom pattern")
	}
}

func TestNewValidator_BadPattern(t *testing.T) {
	if _, err := NewValidator("", "([unclosed"); err == nil {
		t.Fatal("NewValidator() expected error for invalid pattern")
	}
}

func TestValidateFullName(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		name     string
		input    string
		want     string
		wantKind ErrorKind
	}{
		{"two parts", "Иванов Иван", "Иванов Иван", ""},
		{"three parts", "Иванов Иван Иванович", "Иванов Иван Иванович", ""},
		{"collapses whitespace", "  Петров \t  Пётр  ", "Петров Пётр", ""},
		{"initial counts as part", "Сидоров С.", "Сидоров С.", ""},
		{"unit separator", "Иванов\x1fИван", "Иванов Иван", ""},
		{"nbsp", "Иванов\u00a0Иван", "Иванов Иван", ""},
		{"empty", "", "", KindEmptyField},
		{"blank", " \t ", "", KindEmptyField},
		{"surname only", "Иванов", "", KindTooFewParts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateFullName(tt.input)
			if tt.wantKind != "" {
				if k := kindOf(err); k != tt.wantKind {
					t.Errorf("ValidateFullName(%q) = (%q, %v), want kind %s", tt.input, got, err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateFullName(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ValidateFullName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateGrade(t *testing.T) {
	v := testValidator(t)

	tests := []struct {
		input    string
		want     int
		wantKind ErrorKind
	}{
		{"1", 1, ""},
		{"5", 5, ""},
		{" 3 ", 3, ""},
		{"\x1f4\x1e", 4, ""},
		{"05", 5, ""},
		{"", 0, KindEmptyField},
		{"0", 0, KindOutOfRange},
		{"6", 0, KindOutOfRange},
		{"99999999999999999999999", 0, KindOutOfRange},
		{"-1", 0, KindNotInteger},
		{"+3", 0, KindNotInteger},
		{"4.0", 0, KindNotInteger},
		{"3a", 0, KindNotInteger},
		{"пять", 0, KindNotInteger},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := v.ValidateGrade(tt.input)
			if tt.wantKind != "" {
				if k := kindOf(err); k != tt.wantKind {
					t.Errorf("ValidateGrade(%q) = (%d, %v), want kind %s", tt.input, got, err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateGrade(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ValidateGrade(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateGrade_OutOfRangeMessage(t *testing.T) {
	_, err := testValidator(t).ValidateGrade("6")
	if err == nil || err.Error() != "Оценка должна быть в диапазоне 1..5" {
		t.Errorf("ValidateGrade(6) error = %v", err)
	}
}
