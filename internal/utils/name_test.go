package utils

import (
	"testing"
	"time"
)

func TestImageNameRoundTrip(t *testing.T) {
	when := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)

	tests := []struct {
		name     string
		taskID   string
		original string
		wantName string
	}{
		{name: "simple", taskID: "T1", original: "photo.png", wantName: "T1_20250314092653_photo.jpg"},
		{name: "task id with underscores", taskID: "T_1_a", original: "img.jpg", wantName: "T_1_a_20250314092653_img.jpg"},
		{name: "no extension", taskID: "T9", original: "shot", wantName: "T9_20250314092653_shot.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FinalImageName(tt.taskID, when, tt.original)
			if got != tt.wantName {
				t.Fatalf("FinalImageName = %q, want %q", got, tt.wantName)
			}

			taskID, parsed, _, err := ParseImageName(got)
			if err != nil {
				t.Fatalf("ParseImageName(%q) error: %v", got, err)
			}
			if taskID != tt.taskID {
				t.Errorf("parsed task id = %q, want %q", taskID, tt.taskID)
			}
			if !parsed.Equal(when) {
				t.Errorf("parsed time = %v, want %v", parsed, when)
			}
		})
	}
}

func TestParseImageNameRejectsUnstructured(t *testing.T) {
	for _, name := range []string{"photo.jpg", "no_timestamp_here.jpg", ""} {
		if _, _, _, err := ParseImageName(name); err == nil {
			t.Errorf("ParseImageName(%q) expected error, got nil", name)
		}
	}
}
