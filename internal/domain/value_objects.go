package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Semester - "YYYYs" academic term key
// -----------------------------------------------------------------------------

var semesterPattern = regexp.MustCompile(`^[0-9]{4}[ab]$`)

// Semester identifies an academic term, e.g. "2024a". Keys sort
// lexicographically in chronological order.
type Semester string

// ParseSemester validates a semester key.
func ParseSemester(s string) (Semester, error) {
	s = strings.TrimSpace(s)
	if !semesterPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSemester, s)
	}
	return Semester(s), nil
}

// String returns the key.
func (s Semester) String() string {
	return string(s)
}

// Year returns the academic year the semester belongs to.
func (s Semester) Year() int {
	y, _ := strconv.Atoi(string(s)[:4])
	return y
}

// Term returns 'a' for the winter term and 'b' for the spring term.
func (s Semester) Term() byte {
	return s[4]
}

// Before reports whether s comes strictly before other.
func (s Semester) Before(other Semester) bool {
	return s < other
}

// Next returns the following semester.
func (s Semester) Next() Semester {
	if s.Term() == 'a' {
		return Semester(fmt.Sprintf("%04db", s.Year()))
	}
	return Semester(fmt.Sprintf("%04da", s.Year()+1))
}

// IMSYear returns the registration system year, which lags one behind.
func (s Semester) IMSYear() int {
	return s.Year() - 1
}

// Number returns 1 for the winter term and 2 for the spring term.
func (s Semester) Number() int {
	if s.Term() == 'a' {
		return 1
	}
	return 2
}

// HebrewName renders the semester as it is displayed, e.g. "תשפ״ד א׳".
func (s Semester) HebrewName() string {
	term := "א׳"
	if s.Term() == 'b' {
		term = "ב׳"
	}
	return hebrewNumeral((s.Year()+3760)%1000) + " " + term
}

var (
	hundreds = []struct {
		value  int
		letter string
	}{{400, "ת"}, {300, "ש"}, {200, "ר"}, {100, "ק"}}
	tens  = []string{"", "י", "כ", "ל", "מ", "נ", "ס", "ע", "פ", "צ"}
	units = []string{"", "א", "ב", "ג", "ד", "ה", "ו", "ז", "ח", "ט"}
)

func hebrewNumeral(n int) string {
	var letters []string
	for _, h := range hundreds {
		for n >= h.value {
			letters = append(letters, h.letter)
			n -= h.value
		}
	}
	switch n {
	case 15:
		letters = append(letters, "ט", "ו")
	case 16:
		letters = append(letters, "ט", "ז")
	default:
		if t := tens[n/10]; t != "" {
			letters = append(letters, t)
		}
		if u := units[n%10]; u != "" {
			letters = append(letters, u)
		}
	}

	switch len(letters) {
	case 0:
		return ""
	case 1:
		return letters[0] + "׳"
	default:
		last := len(letters) - 1
		return strings.Join(letters[:last], "") + "״" + letters[last]
	}
}

// -----------------------------------------------------------------------------
// Weekday - one-letter Hebrew day codes
// -----------------------------------------------------------------------------

// Weekday is a teaching day, Sunday first.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// TeachingDays is the number of weekdays lessons can fall on (Sunday to
// Friday).
const TeachingDays = 6

var (
	weekdayLetters = [...]string{"א", "ב", "ג", "ד", "ה", "ו", "ש"}
	weekdayNames   = [...]string{"ראשון", "שני", "שלישי", "רביעי", "חמישי", "שישי", "שבת"}
)

// ParseWeekday maps a catalog day letter to a Weekday.
func ParseWeekday(letter string) (Weekday, bool) {
	letter = strings.TrimSpace(letter)
	for i, l := range weekdayLetters {
		if l == letter {
			return Weekday(i), true
		}
	}
	return 0, false
}

// Letter returns the catalog day letter.
func (d Weekday) Letter() string {
	return weekdayLetters[d]
}

// HebrewName returns the full day name.
func (d Weekday) HebrewName() string {
	return weekdayNames[d]
}
