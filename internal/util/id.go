package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a new entity identifier such as "tsk_5f1c3aa2…".
// An empty prefix yields the bare hex form.
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
