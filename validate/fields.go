package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// CountryCode is prepended to accepted phone numbers.
	CountryCode = "+1"

	MinPartySize = 1
	MaxPartySize = 10

	// SlotMinutes is the booking time granularity.
	SlotMinutes = 15
)

var (
	OpeningTime = clock{11, 30}
	ClosingTime = clock{14, 0}
)

var (
	emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	timePattern  = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

type clock struct {
	Hour, Minute int
}

func (c clock) minutes() int {
	return c.Hour*60 + c.Minute
}

func (c clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func Name(input string, _ time.Time) Result {
	name := strings.TrimSpace(input)
	if name == "" {
		return Rejected(KindEmpty, "Name cannot be empty.")
	}
	return Accepted(name)
}

func Email(input string, _ time.Time) Result {
	email := strings.TrimSpace(input)
	if !emailPattern.MatchString(email) {
		return Rejected(KindFormat, "Invalid email format.")
	}
	return Accepted(email)
}

func Phone(input string, _ time.Time) Result {
	phone := strings.TrimSpace(input)
	if !phonePattern.MatchString(phone) {
		return Rejected(KindFormat, "Invalid phone number. Use exactly 10 digits with no +1, spaces, or symbols.")
	}
	return Accepted(CountryCode + phone)
}

// Date accepts MM-DD for a weekday after today within the current or next
// calendar month. A January date entered in December belongs to next year.
func Date(input string, now time.Time) Result {
	parts := strings.Split(strings.TrimSpace(input), "-")
	if len(parts) != 2 {
		return Rejected(KindFormat, "Invalid date format.")
	}
	month, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || month < 1 || month > 12 {
		return Rejected(KindFormat, "Invalid date format.")
	}
	day, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || day < 1 {
		return Rejected(KindFormat, "Invalid date format.")
	}

	year := now.Year()
	if now.Month() == time.December && time.Month(month) == time.January {
		year++
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if date.Month() != time.Month(month) || date.Day() != day {
		return Rejected(KindFormat, "Invalid date format.")
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !date.After(today) {
		return Rejected(KindPast, "Reservations must be made at least one day in advance.")
	}
	nextMonth := now.Month()%12 + 1
	if date.Month() != now.Month() && date.Month() != nextMonth {
		return Rejected(KindMonth, "You can only book for the current or next month.")
	}
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return Rejected(KindWeekday, "Reservations are only available on weekdays (Monday to Friday).")
	}
	return Accepted(date.Format(time.DateOnly))
}

// Time accepts 24-hour HH:MM inside the opening window on a slot boundary.
func Time(input string, _ time.Time) Result {
	text := strings.TrimSpace(input)
	if !timePattern.MatchString(text) {
		return Rejected(KindFormat, "Invalid time format.")
	}
	hour, _ := strconv.Atoi(text[:2])
	minute, _ := strconv.Atoi(text[3:])
	if hour > 23 || minute > 59 {
		return Rejected(KindFormat, "Invalid time format.")
	}
	at := clock{hour, minute}.minutes()
	if at < OpeningTime.minutes() || at > ClosingTime.minutes() {
		return Rejected(KindRange, fmt.Sprintf("Reservations must be between %s and %s.", OpeningTime, ClosingTime))
	}
	if minute%SlotMinutes != 0 {
		return Rejected(KindGranularity, fmt.Sprintf("Time must be in %d-minute intervals.", SlotMinutes))
	}
	return Accepted(text)
}

func PartySize(input string, _ time.Time) Result {
	count, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return Rejected(KindFormat, "Party size must be a whole number.")
	}
	if count < MinPartySize || count > MaxPartySize {
		return Rejected(KindRange, fmt.Sprintf("Party size must be between %d and %d.", MinPartySize, MaxPartySize))
	}
	return Accepted(count)
}
