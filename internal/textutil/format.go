package textutil

import "fmt"

// HumanBytes renders a byte count with binary units, e.g. "1.4 MiB".
// Negative values render as "0 B".
func HumanBytes(v int64) string {
	const unit = 1024
	if v < 0 {
		v = 0
	}
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div := int64(unit)
	exp := 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(v) / float64(div)
	return fmt.Sprintf("%.1f %ciB", value, "KMGTPE"[exp])
}

// Ternary picks a when cond holds and b otherwise.
func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}
