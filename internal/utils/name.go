package utils

import (
	"fmt"
	"strings"
	"time"
)

const nameTimestampLayout = "20060102150405"

// FinalImageName derives the stored file name for an upload:
// {task_id}_{timestamp}_{original base name}, extension forced to .jpg.
func FinalImageName(taskID string, t time.Time, original string) string {
	return fmt.Sprintf("%s_%s_%s", taskID, t.Format(nameTimestampLayout), CanonicalName(original))
}

// ParseImageName splits a stored file name back into task id, capture time
// and original base name. Task ids may themselves contain underscores, so
// the 14-digit timestamp segment anchors the split.
func ParseImageName(name string) (taskID string, t time.Time, original string, err error) {
	parts := strings.Split(name, "_")
	for i := 1; i < len(parts)-1; i++ {
		ts, parseErr := time.ParseInLocation(nameTimestampLayout, parts[i], time.Local)
		if parseErr != nil {
			continue
		}
		return strings.Join(parts[:i], "_"), ts, strings.Join(parts[i+1:], "_"), nil
	}
	return "", time.Time{}, "", fmt.Errorf("no timestamp segment in %q", name)
}
