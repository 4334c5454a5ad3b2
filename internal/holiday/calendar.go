package holiday

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/us"
)

// OfflineCalendar answers public-holiday checks from rule-based calendars
// when the remote provider cannot be reached. Only nationwide holidays of a
// few countries are covered.
type OfflineCalendar struct {
	calendars map[string]*cal.BusinessCalendar
}

// NewOfflineCalendar builds calendars for US, GB, DE and FR.
func NewOfflineCalendar() *OfflineCalendar {
	build := func(hs []*cal.Holiday) *cal.BusinessCalendar {
		c := cal.NewBusinessCalendar()
		c.AddHoliday(hs...)
		return c
	}
	return &OfflineCalendar{calendars: map[string]*cal.BusinessCalendar{
		"US": build(us.Holidays),
		"GB": build(gb.Holidays),
		"DE": build(de.Holidays),
		"FR": build(fr.Holidays),
	}}
}

// IsPublicHoliday reports whether day falls on a holiday of countryCode.
// covered is false when the country has no offline calendar.
func (o *OfflineCalendar) IsPublicHoliday(day time.Time, countryCode string) (isHoliday, covered bool) {
	if o == nil {
		return false, false
	}
	c, found := o.calendars[countryCode]
	if !found {
		return false, false
	}
	actual, _, _ := c.IsHoliday(time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC))
	return actual, true
}
