package utils

import (
	"io/fs"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
)

const zoneinfoDir = "/usr/share/zoneinfo"

// fallbackTimezones is served when the host has no zoneinfo database
var fallbackTimezones = []string{
	"Africa/Cairo", "Africa/Johannesburg", "Africa/Lagos", "Africa/Nairobi",
	"America/Bogota", "America/Chicago", "America/Denver", "America/Los_Angeles",
	"America/Mexico_City", "America/New_York", "America/Sao_Paulo", "America/Toronto",
	"Asia/Dubai", "Asia/Kolkata", "Asia/Shanghai", "Asia/Singapore", "Asia/Tehran", "Asia/Tokyo",
	"Australia/Sydney", "Europe/Berlin", "Europe/London", "Europe/Madrid", "Europe/Paris",
	"Pacific/Auckland", "UTC",
}

var (
	timezonesOnce sync.Once
	timezones     []string
)

// Timezones returns the sorted IANA identifiers known to the host
func Timezones() []string {
	timezonesOnce.Do(func() {
		timezones = scanZoneinfo(os.DirFS(zoneinfoDir))
		if len(timezones) == 0 {
			timezones = slices.Clone(fallbackTimezones)
		}
	})
	return slices.Clone(timezones)
}

// scanZoneinfo collects Area/Location style names that time.LoadLocation accepts
func scanZoneinfo(fsys fs.FS) []string {
	var names []string
	_ = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != "." && (p == "posix" || p == "right" || !startsUpper(p)) {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.Contains(p, "/") && p != "UTC" {
			return nil
		}
		if !startsUpper(p) || strings.HasPrefix(p, "Etc/") {
			return nil
		}
		if _, err := time.LoadLocation(p); err == nil {
			names = append(names, p)
		}
		return nil
	})
	slices.Sort(names)
	return names
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
