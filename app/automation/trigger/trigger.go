// Package trigger computes when a schedule automation runs next.
//
// Every function here is pure: the result depends only on the trigger
// configuration and the supplied "now". A configuration that cannot produce a
// next run yields nil rather than an error.
package trigger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"autoflow/app/db/models"

	cronv3 "github.com/robfig/cron/v3"
)

const (
	ScheduleDaily   = "daily"
	ScheduleHourly  = "hourly"
	ScheduleWeekly  = "weekly"
	ScheduleMonthly = "monthly"
	ScheduleCron    = "cron"
)

var (
	clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

	cronParser = cronv3.NewParser(cronv3.SecondOptional | cronv3.Minute | cronv3.Hour | cronv3.Dom | cronv3.Month | cronv3.Dow | cronv3.Descriptor)

	weekdays = map[string]time.Weekday{
		"sunday": time.Sunday, "sun": time.Sunday,
		"monday": time.Monday, "mon": time.Monday,
		"tuesday": time.Tuesday, "tue": time.Tuesday,
		"wednesday": time.Wednesday, "wed": time.Wednesday,
		"thursday": time.Thursday, "thu": time.Thursday,
		"friday": time.Friday, "fri": time.Friday,
		"saturday": time.Saturday, "sat": time.Saturday,
	}
)

// ComputeNextRun returns the first occurrence of cfg strictly after now, in
// UTC, or nil when cfg is absent or malformed. Wall clock times are read in
// cfg.Timezone, falling back to now's location.
func ComputeNextRun(cfg models.TriggerConfig, now time.Time) *time.Time {
	loc, err := location(cfg.Timezone, now.Location())
	if err != nil {
		return nil
	}
	local := now.In(loc)

	var next time.Time
	switch strings.ToLower(strings.TrimSpace(cfg.Schedule)) {
	case ScheduleDaily:
		h, m, ok := parseClock(cfg.Time)
		if !ok {
			return nil
		}
		next = time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(local.Year(), local.Month(), local.Day()+1, h, m, 0, 0, loc)
		}
	case ScheduleHourly:
		minute := 0
		if cfg.Minute != nil {
			minute = *cfg.Minute
		}
		if minute < 0 || minute > 59 {
			return nil
		}
		next = time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), minute, 0, 0, loc)
		if !next.After(now) {
			next = next.Add(time.Hour)
		}
	case ScheduleWeekly:
		wd, ok := parseWeekday(cfg.Weekday)
		if !ok {
			return nil
		}
		h, m, ok := parseClock(cfg.Time)
		if !ok {
			return nil
		}
		for i := 0; i <= 7; i++ {
			c := time.Date(local.Year(), local.Month(), local.Day()+i, h, m, 0, 0, loc)
			if c.Weekday() == wd && c.After(now) {
				next = c
				break
			}
		}
	case ScheduleMonthly:
		if cfg.DayOfMonth < 1 || cfg.DayOfMonth > 31 {
			return nil
		}
		h, m, ok := parseClock(cfg.Time)
		if !ok {
			return nil
		}
		for i := 0; i <= 1; i++ {
			year, month := local.Year(), local.Month()+time.Month(i)
			day := clampDay(year, month, cfg.DayOfMonth, loc)
			c := time.Date(year, month, day, h, m, 0, 0, loc)
			if c.After(now) {
				next = c
				break
			}
		}
	case ScheduleCron:
		sched, err := cronParser.Parse(strings.TrimSpace(cfg.Cron))
		if err != nil {
			return nil
		}
		next = sched.Next(local)
	default:
		return nil
	}

	if next.IsZero() || !next.After(now) {
		return nil
	}
	next = next.UTC()
	return &next
}

// Validate reports field level problems of a trigger configuration, keyed by
// JSON field name. An empty map means the configuration is usable.
func Validate(triggerType string, cfg models.TriggerConfig) map[string]string {
	fields := map[string]string{}
	switch triggerType {
	case models.TriggerEvent:
		if strings.TrimSpace(cfg.Event) == "" {
			fields["event"] = "required for event triggers"
		}
		return fields
	case models.TriggerSchedule:
	default:
		fields["triggerType"] = fmt.Sprintf("must be %s or %s", models.TriggerSchedule, models.TriggerEvent)
		return fields
	}

	if _, err := location(cfg.Timezone, time.UTC); err != nil {
		fields["timezone"] = "unknown time zone"
	}

	needClock := true
	switch strings.ToLower(strings.TrimSpace(cfg.Schedule)) {
	case "":
		fields["schedule"] = "required"
		needClock = false
	case ScheduleDaily:
	case ScheduleHourly:
		needClock = false
		if cfg.Minute != nil && (*cfg.Minute < 0 || *cfg.Minute > 59) {
			fields["minute"] = "must be between 0 and 59"
		}
	case ScheduleWeekly:
		if _, ok := parseWeekday(cfg.Weekday); !ok {
			fields["weekday"] = "must be a day name"
		}
	case ScheduleMonthly:
		if cfg.DayOfMonth < 1 || cfg.DayOfMonth > 31 {
			fields["dayOfMonth"] = "must be between 1 and 31"
		}
	case ScheduleCron:
		needClock = false
		if _, err := cronParser.Parse(strings.TrimSpace(cfg.Cron)); err != nil {
			fields["cron"] = err.Error()
		}
	default:
		fields["schedule"] = "unknown schedule " + strconv.Quote(cfg.Schedule)
		needClock = false
	}
	if needClock {
		if _, _, ok := parseClock(cfg.Time); !ok {
			fields["time"] = "must be HH:MM"
		}
	}
	return fields
}

func location(name string, fallback *time.Location) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		if fallback == nil {
			return time.UTC, nil
		}
		return fallback, nil
	}
	return time.LoadLocation(name)
}

func parseClock(s string) (int, int, bool) {
	match := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return 0, 0, false
	}
	h, _ := strconv.Atoi(match[1])
	m, _ := strconv.Atoi(match[2])
	return h, m, true
}

func parseWeekday(s string) (time.Weekday, bool) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	return wd, ok
}

// clampDay caps day to the length of the given month.
func clampDay(year int, month time.Month, day int, loc *time.Location) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		return last
	}
	return day
}
