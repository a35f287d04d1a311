package trigger

import (
	"math/rand"
	"testing"
	"time"
	_ "time/tzdata"

	"autoflow/app/db/models"

	"github.com/stretchr/testify/assert"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func intp(i int) *int { return &i }

func TestComputeNextRun_Daily(t *testing.T) {
	asserter := assert.New(t)
	cfg := models.TriggerConfig{Schedule: "daily", Time: "09:00"}

	next := ComputeNextRun(cfg, at("2024-01-01T10:00:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-01-02T09:00:00Z"), *next)
	}

	next = ComputeNextRun(cfg, at("2024-01-01T08:59:59Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-01-01T09:00:00Z"), *next)
	}

	// an occurrence equal to now rolls forward
	next = ComputeNextRun(cfg, at("2024-01-01T09:00:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-01-02T09:00:00Z"), *next)
	}

	// month and year boundaries
	next = ComputeNextRun(cfg, at("2024-12-31T23:00:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2025-01-01T09:00:00Z"), *next)
	}
}

func TestComputeNextRun_DailyAlwaysAfterNow(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	base := at("2020-01-01T00:00:00Z")
	for i := 0; i < 2000; i++ {
		now := base.Add(time.Duration(r.Int63n(int64(5 * 365 * 24 * time.Hour))))
		cfg := models.TriggerConfig{
			Schedule: "daily",
			Time:     time.Date(0, 1, 1, r.Intn(24), r.Intn(60), 0, 0, time.UTC).Format("15:04"),
		}
		next := ComputeNextRun(cfg, now)
		if assert.NotNil(t, next, cfg.Time) {
			assert.True(t, next.After(now), "%s at %s", cfg.Time, now)
			assert.True(t, next.Sub(now) <= 24*time.Hour, "%s at %s", cfg.Time, now)
		}
	}
}

func TestComputeNextRun_Malformed(t *testing.T) {
	now := at("2024-01-01T10:00:00Z")
	for _, cfg := range []models.TriggerConfig{
		{},
		{Schedule: "daily"},
		{Time: "09:00"},
		{Schedule: "daily", Time: "9am"},
		{Schedule: "daily", Time: "24:00"},
		{Schedule: "daily", Time: "09:60"},
		{Schedule: "fortnightly", Time: "09:00"},
		{Schedule: "daily", Time: "09:00", Timezone: "Mars/Olympus"},
		{Schedule: "hourly", Minute: intp(75)},
		{Schedule: "weekly", Time: "09:00", Weekday: "someday"},
		{Schedule: "monthly", Time: "09:00"},
		{Schedule: "monthly", Time: "09:00", DayOfMonth: 32},
		{Schedule: "cron", Cron: "not a cron"},
		{Schedule: "cron"},
	} {
		assert.NotPanics(t, func() {
			assert.Nil(t, ComputeNextRun(cfg, now), "%+v", cfg)
		})
	}
}

func TestComputeNextRun_Timezone(t *testing.T) {
	cfg := models.TriggerConfig{Schedule: "daily", Time: "09:00", Timezone: "Europe/Paris"}
	next := ComputeNextRun(cfg, at("2024-01-01T10:00:00Z"))
	if assert.NotNil(t, next) {
		assert.Equal(t, at("2024-01-02T08:00:00Z"), *next)
		assert.Equal(t, time.UTC, next.Location())
	}
}

func TestComputeNextRun_Hourly(t *testing.T) {
	asserter := assert.New(t)

	next := ComputeNextRun(models.TriggerConfig{Schedule: "hourly", Minute: intp(15)}, at("2024-01-01T10:30:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-01-01T11:15:00Z"), *next)
	}
	next = ComputeNextRun(models.TriggerConfig{Schedule: "hourly"}, at("2024-01-01T10:30:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-01-01T11:00:00Z"), *next)
	}
}

func TestComputeNextRun_Weekly(t *testing.T) {
	asserter := assert.New(t)
	// 2024-01-01 is a Monday
	cfg := models.TriggerConfig{Schedule: "weekly", Weekday: "Monday", Time: "09:00"}

	next := ComputeNextRun(cfg, at("2024-01-01T08:00:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-01-01T09:00:00Z"), *next)
	}
	next = ComputeNextRun(cfg, at("2024-01-01T09:00:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-01-08T09:00:00Z"), *next)
	}
	next = ComputeNextRun(models.TriggerConfig{Schedule: "weekly", Weekday: "fri", Time: "17:30"}, at("2024-01-01T08:00:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-01-05T17:30:00Z"), *next)
	}
}

func TestComputeNextRun_Monthly(t *testing.T) {
	asserter := assert.New(t)

	cfg := models.TriggerConfig{Schedule: "monthly", DayOfMonth: 31, Time: "06:00"}
	next := ComputeNextRun(cfg, at("2024-02-01T00:00:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-02-29T06:00:00Z"), *next)
	}
	next = ComputeNextRun(cfg, at("2024-12-31T07:00:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2025-01-31T06:00:00Z"), *next)
	}
}

func TestComputeNextRun_Cron(t *testing.T) {
	asserter := assert.New(t)

	next := ComputeNextRun(models.TriggerConfig{Schedule: "cron", Cron: "*/15 * * * *"}, at("2024-01-01T10:07:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-01-01T10:15:00Z"), *next)
	}
	next = ComputeNextRun(models.TriggerConfig{Schedule: "cron", Cron: "@daily"}, at("2024-01-01T10:07:00Z"))
	if asserter.NotNil(next) {
		asserter.Equal(at("2024-01-02T00:00:00Z"), *next)
	}
}

func TestValidate(t *testing.T) {
	asserter := assert.New(t)

	asserter.Empty(Validate(models.TriggerSchedule, models.TriggerConfig{Schedule: "daily", Time: "09:00"}))
	asserter.Empty(Validate(models.TriggerEvent, models.TriggerConfig{Event: "invoice.paid"}))
	asserter.Empty(Validate(models.TriggerSchedule, models.TriggerConfig{Schedule: "cron", Cron: "0 9 * * 1-5"}))

	fields := Validate(models.TriggerSchedule, models.TriggerConfig{Schedule: "daily", Time: "25:00"})
	asserter.Contains(fields, "time")

	fields = Validate(models.TriggerSchedule, models.TriggerConfig{})
	asserter.Contains(fields, "schedule")

	fields = Validate(models.TriggerEvent, models.TriggerConfig{})
	asserter.Contains(fields, "event")

	fields = Validate("webhook", models.TriggerConfig{})
	asserter.Contains(fields, "triggerType")

	fields = Validate(models.TriggerSchedule, models.TriggerConfig{Schedule: "weekly", Time: "09:00", Timezone: "Nowhere/City"})
	asserter.Contains(fields, "weekday")
	asserter.Contains(fields, "timezone")
}
