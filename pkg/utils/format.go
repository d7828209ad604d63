package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// BytesPerGB is the binary gigabyte used for bandwidth figures
const BytesPerGB = 1024 * 1024 * 1024

// FormatSize formats a byte count with binary units ("1.4 MB")
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + FormatSize(-bytes)
	}
	return strings.Replace(humanize.IBytes(uint64(bytes)), "iB", "B", 1)
}

// FormatGB formats a gigabyte amount with two decimals
func FormatGB(gb float64) string {
	return fmt.Sprintf("%.2f GB", gb)
}

// FormatCount formats an integer with thousands separators
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatDuration formats a duration as HH:MM:SS
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
