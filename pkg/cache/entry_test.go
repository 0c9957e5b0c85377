package cache

import (
	"testing"
	"time"

	"github.com/Sternrassler/market-data-gateway/pkg/series"
)

func TestEntry_IsFresh(t *testing.T) {
	stored := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &Entry{Key: "hot:x", StoredAt: stored}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"just stored", stored, true},
		{"inside ttl", stored.Add(59 * time.Second), true},
		{"exactly ttl", stored.Add(60 * time.Second), false},
		{"past ttl", stored.Add(10 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.IsFresh(tt.now, DefaultTTL); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Age(t *testing.T) {
	stored := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &Entry{StoredAt: stored}

	if got := entry.Age(stored.Add(90 * time.Second)); got != 90*time.Second {
		t.Errorf("Age() = %v, want 90s", got)
	}
}

func TestEntry_Clone(t *testing.T) {
	entry := &Entry{
		Key:     "hot:x",
		Content: series.Rows{{Values: map[string]any{"name": "Moutai"}}},
	}

	clone := entry.Clone()
	clone.Content[0].Values["name"] = "changed"

	if entry.Content[0].Values["name"] != "Moutai" {
		t.Error("Clone shares row values with the original")
	}
}
