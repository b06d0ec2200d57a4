package task

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: TimeOfDay{9, 0}},
		{in: "00:00", want: TimeOfDay{0, 0}},
		{in: "23:59", want: TimeOfDay{23, 59}},
		{in: "7:30", want: TimeOfDay{7, 30}},
		{in: " 12:05 ", want: TimeOfDay{12, 5}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "12", wantErr: true},
		{in: "12:00:00", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrConfig) {
					t.Fatalf("ParseTimeOfDay(%q): want ErrConfig, got %v", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q): unexpected error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseTimeOfDay(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    time.Weekday
		wantErr bool
	}{
		{in: "monday", want: time.Monday},
		{in: "Mon", want: time.Monday},
		{in: "FRIDAY", want: time.Friday},
		{in: "sun", want: time.Sunday},
		{in: "thurs", want: time.Thursday},
		{in: "weds", wantErr: true},
		{in: "", wantErr: true},
		{in: "1", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseWeekday(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrConfig) {
					t.Fatalf("ParseWeekday(%q): want ErrConfig, got %v", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWeekday(%q): unexpected error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ParseWeekday(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestWeekdaySet(t *testing.T) {
	t.Parallel()

	var s WeekdaySet
	if !s.IsZero() {
		t.Fatal("zero set must report IsZero")
	}
	s = s.With(time.Monday).With(time.Friday)
	if !s.Has(time.Monday) || !s.Has(time.Friday) {
		t.Fatal("added weekdays missing")
	}
	if s.Has(time.Sunday) {
		t.Fatal("Sunday should not be set")
	}
	if got := s.String(); got != "Mon,Fri" {
		t.Fatalf("String() = %q, want %q", got, "Mon,Fri")
	}
}

func TestDefinitionValidate(t *testing.T) {
	t.Parallel()

	valid := Definition{
		Name:  "health-check",
		Recur: Recurrence{Every: 5 * time.Minute},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid definition rejected: %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Definition)
	}{
		{"empty name", func(d *Definition) { d.Name = " " }},
		{"both recurrence modes", func(d *Definition) { d.Recur.Daily = true }},
		{"day of month too large", func(d *Definition) { d.DayOfMonth = 32 }},
		{"day of month negative", func(d *Definition) { d.DayOfMonth = -1 }},
		{"inverted window", func(d *Definition) {
			d.After = &TimeOfDay{17, 0}
			d.Before = &TimeOfDay{9, 0}
		}},
		{"negative max runtime", func(d *Definition) { d.MaxRuntime = -time.Second }},
		{"unknown timezone", func(d *Definition) { d.Timezone = "Mars/Olympus" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := valid
			tc.mut(&d)
			if err := d.Validate(); !errors.Is(err, ErrConfig) {
				t.Fatalf("want ErrConfig, got %v", err)
			}
		})
	}

	t.Run("no recurrence is allowed", func(t *testing.T) {
		d := Definition{Name: "paused"}
		if err := d.Validate(); err != nil {
			t.Fatalf("definition without recurrence rejected: %v", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := Definition{Name: "a", Recur: Recurrence{Every: time.Minute}}
	b := Definition{Name: "b", Recur: Recurrence{Daily: true}}

	if replaced := r.Put(a); replaced {
		t.Fatal("first Put must not report replacement")
	}
	r.Put(b)
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	a.Message = "updated"
	if replaced := r.Put(a); !replaced {
		t.Fatal("upsert must report replacement")
	}
	got, ok := r.Get("a")
	if !ok || got.Message != "updated" {
		t.Fatalf("Get(a) = %+v, %v", got, ok)
	}

	if names := r.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("Names = %v", names)
	}

	now := time.Now()
	if !r.SetLastRun("a", now) {
		t.Fatal("SetLastRun on existing task failed")
	}
	if got, _ := r.Get("a"); !got.LastRun.Equal(now) {
		t.Fatalf("LastRun = %v, want %v", got.LastRun, now)
	}
	if r.SetLastRun("ghost", now) {
		t.Fatal("SetLastRun on unknown task must report false")
	}

	if !r.Remove("a") {
		t.Fatal("Remove(a) failed")
	}
	if r.Remove("a") {
		t.Fatal("second Remove(a) must report false")
	}
	if _, ok := r.Get("a"); ok {
		t.Fatal("removed task still present")
	}
}
