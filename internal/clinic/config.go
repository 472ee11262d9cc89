// Package clinic provides clinic-specific configuration and business hours logic.
package clinic

import (
	"fmt"
	"time"
)

// Window is a single opening window within a day, e.g. 08:00-12:00.
// Open and Close are minutes since midnight; the window is half-open [Open, Close).
type Window struct {
	Open  int `json:"open"`
	Close int `json:"close"`
}

// Contains reports whether the interval [start, start+duration) in minutes
// since midnight lies entirely inside the window.
func (w Window) Contains(start, durationMinutes int) bool {
	return start >= w.Open && start+durationMinutes <= w.Close
}

// BusinessHours maps weekdays to their opening windows. A day with no windows
// is closed.
type BusinessHours map[time.Weekday][]Window

// Config holds clinic identity and operating hours. It is constructed once and
// passed explicitly into every component that needs it; there is no ambient
// global clinic state.
type Config struct {
	Name     string
	Address  string
	Timezone string
	Hours    BusinessHours
}

// Default returns the SmileRight Dental Clinic configuration: Monday to Friday,
// 8:00-12:00 and 13:00-18:00, closed on weekends.
func Default() *Config {
	weekday := []Window{
		{Open: mins(8, 0), Close: mins(12, 0)},
		{Open: mins(13, 0), Close: mins(18, 0)},
	}
	return &Config{
		Name:     "SmileRight Dental Clinic",
		Address:  "5561 St-Denis Street, Montreal, Canada",
		Timezone: "America/Toronto",
		Hours: BusinessHours{
			time.Monday:    weekday,
			time.Tuesday:   weekday,
			time.Wednesday: weekday,
			time.Thursday:  weekday,
			time.Friday:    weekday,
		},
	}
}

// WindowsFor returns the opening windows for a weekday, empty when closed.
func (c *Config) WindowsFor(day time.Weekday) []Window {
	return c.Hours[day]
}

// IsOpenDay reports whether the clinic opens at all on the given weekday.
func (c *Config) IsOpenDay(day time.Weekday) bool {
	return len(c.Hours[day]) > 0
}

// HoursSpeech renders the operating hours as natural speech for the caller.
func (c *Config) HoursSpeech() string {
	return "We are open Monday to Friday from 8 AM to 12 PM and 1 PM to 6 PM. We are closed on weekends."
}

// InfoSpeech renders the clinic location and hours for the caller.
func (c *Config) InfoSpeech() string {
	return fmt.Sprintf("%s is located at %s. %s", c.Name, c.Address, c.HoursSpeech())
}

func mins(hour, minute int) int {
	return hour*60 + minute
}
