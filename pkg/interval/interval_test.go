package interval

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "", want: "D"},
		{input: "D", want: "D"},
		{input: "d", want: "D"},
		{input: "W", want: "W"},
		{input: "m", want: "M"},
		{input: "1", want: "1"},
		{input: " 15 ", want: "15"},
		{input: "0", wantErr: true},
		{input: "-5", wantErr: true},
		{input: "hourly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("Parse(%q) error = %v, want ErrInvalid", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
			}
			if !got.Valid() {
				t.Errorf("Parse(%q) returned invalid interval", tt.input)
			}
		})
	}
}

func TestInterval_ZeroValueInvalid(t *testing.T) {
	var iv Interval
	if iv.Valid() {
		t.Error("zero Interval should not be valid")
	}
	if Minutes(0).Valid() {
		t.Error("Minutes(0) should not be valid")
	}
}

func TestInterval_NextPrev(t *testing.T) {
	tests := []struct {
		name     string
		iv       Interval
		at       time.Time
		wantNext time.Time
		wantPrev time.Time
	}{
		{
			name:     "daily",
			iv:       Daily,
			at:       date(2024, 3, 1),
			wantNext: date(2024, 3, 2),
			wantPrev: date(2024, 2, 29),
		},
		{
			name:     "weekly",
			iv:       Weekly,
			at:       date(2024, 1, 8),
			wantNext: date(2024, 1, 15),
			wantPrev: date(2024, 1, 1),
		},
		{
			name:     "monthly clamps day",
			iv:       Monthly,
			at:       date(2024, 1, 31),
			wantNext: date(2024, 2, 29),
			wantPrev: date(2023, 12, 31),
		},
		{
			name:     "monthly from march end",
			iv:       Monthly,
			at:       date(2023, 3, 31),
			wantNext: date(2023, 4, 30),
			wantPrev: date(2023, 2, 28),
		},
		{
			name:     "five minutes",
			iv:       Minutes(5),
			at:       time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
			wantNext: time.Date(2024, 1, 2, 9, 35, 0, 0, time.UTC),
			wantPrev: time.Date(2024, 1, 2, 9, 25, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.iv.Next(tt.at); !got.Equal(tt.wantNext) {
				t.Errorf("Next(%v) = %v, want %v", tt.at, got, tt.wantNext)
			}
			if got := tt.iv.Prev(tt.at); !got.Equal(tt.wantPrev) {
				t.Errorf("Prev(%v) = %v, want %v", tt.at, got, tt.wantPrev)
			}
		})
	}
}

func TestInterval_Truncate(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	at := time.Date(2024, 1, 15, 9, 31, 45, 500, shanghai)

	if got, want := Daily.Truncate(at), date(2024, 1, 15); !got.Equal(want) {
		t.Errorf("Daily.Truncate = %v, want %v", got, want)
	}
	if got, want := Minutes(1).Truncate(at), time.Date(2024, 1, 15, 9, 31, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Minutes(1).Truncate = %v, want %v", got, want)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-15", date(2024, 1, 15)},
		{"20240115", date(2024, 1, 15)},
		{"1/15/2024", date(2024, 1, 15)},
		{"01/15/2024 09:30", time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)},
		{"2024-01-15 09:30:00", time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)},
		{"1705276800", date(2024, 1, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			if err != nil {
				t.Fatalf("ParseTime(%q) error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if _, err := ParseTime(""); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("ParseTime(\"\") error = %v, want ErrInvalidDate", err)
	}
	if _, err := ParseTime("yesterday"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("ParseTime(\"yesterday\") error = %v, want ErrInvalidDate", err)
	}
	if _, err := ParseTime("2024Q1"); errors.Is(err, ErrInvalid) {
		t.Errorf("date error %v should not read as an invalid interval", err)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"2024-01-15":       "2024-01-15",
		"1/15/2024":        "2024-01-15",
		"01/15/2024 09:30": "2024-01-15",
		"":                 "",
		"garbage":          "",
	}
	for input, want := range tests {
		if got := NormalizeDate(input); got != want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestInterval_Bounds(t *testing.T) {
	from, to, err := Daily.Bounds("2024-02-01", "2024-04-30")
	if err != nil {
		t.Fatalf("Bounds error: %v", err)
	}
	if !from.Equal(date(2024, 2, 1)) || !to.Equal(date(2024, 4, 30)) {
		t.Errorf("Daily.Bounds = [%v, %v]", from, to)
	}

	from, to, err = Minutes(1).Bounds("2024-02-01", "2024-02-02")
	if err != nil {
		t.Fatalf("Bounds error: %v", err)
	}
	if !from.Equal(date(2024, 2, 1)) {
		t.Errorf("intraday from = %v, want midnight", from)
	}
	if want := time.Date(2024, 2, 2, 23, 59, 0, 0, time.UTC); !to.Equal(want) {
		t.Errorf("intraday to = %v, want %v", to, want)
	}

	_, to, err = Minutes(1).Bounds("2024-02-01", "2024-02-02 10:15")
	if err != nil {
		t.Fatalf("Bounds error: %v", err)
	}
	if want := time.Date(2024, 2, 2, 10, 15, 0, 0, time.UTC); !to.Equal(want) {
		t.Errorf("explicit clock to = %v, want %v", to, want)
	}

	if _, _, err := Daily.Bounds("nope", "2024-01-01"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("Bounds with bad from error = %v, want ErrInvalidDate", err)
	}
}

func TestFormat(t *testing.T) {
	if got := Format(date(2024, 1, 15)); got != "2024-01-15" {
		t.Errorf("Format(date) = %q", got)
	}
	if got := Format(time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)); got != "2024-01-15 09:30:00" {
		t.Errorf("Format(datetime) = %q", got)
	}
}
