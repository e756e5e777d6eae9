package attendance

import "time"

// WeekOffCalendar decides whether a business day is a configured
// non-working day for an employee. Per-employee weekly offs take
// precedence; employees without one fall back to the deployment-wide
// default days.
type WeekOffCalendar struct {
	DefaultDays []time.Weekday
}

func (c WeekOffCalendar) IsWeekOff(emp Employee, day Day) bool {
	wd := day.Weekday()
	if emp.FirstWeeklyOff != nil || emp.SecondWeeklyOff != nil {
		return (emp.FirstWeeklyOff != nil && *emp.FirstWeeklyOff == wd) ||
			(emp.SecondWeeklyOff != nil && *emp.SecondWeeklyOff == wd)
	}
	for _, d := range c.DefaultDays {
		if d == wd {
			return true
		}
	}
	return false
}
