package utils

import (
	"fmt"
	"math/rand"
	"time"
)

// GenerateReference creates a human-readable appointment reference.
// Format: APT-YYYYMMDD-HHMMSS-NNNNNN
func GenerateReference(now time.Time) string {
	return fmt.Sprintf("APT-%s-%s-%06d",
		now.Format("20060102"),
		now.Format("150405"),
		rand.Intn(1_000_000),
	)
}
