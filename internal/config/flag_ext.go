package config

import (
	"strings"
	"time"
)

// Flags below remember whether they were set on the command line, so the
// config file only fills what the user did not pass explicitly.

type strFlag struct {
	v   string
	set bool
}

func (f *strFlag) String() string     { return f.v }
func (f *strFlag) Set(s string) error { f.v, f.set = s, true; return nil }

type durationFlag struct {
	v   time.Duration
	set bool
}

func (f *durationFlag) String() string {
	if f.v == 0 {
		return ""
	}
	return f.v.String()
}

func (f *durationFlag) Set(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	f.v, f.set = d, true
	return nil
}

// listFlag is a comma-separated list; empty items are dropped.
type listFlag struct {
	v   []string
	set bool
}

func (f *listFlag) String() string { return strings.Join(f.v, ",") }
func (f *listFlag) Set(s string) error {
	f.v, f.set = splitList(s), true
	return nil
}

func splitList(s string) []string {
	var res []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			res = append(res, item)
		}
	}
	return res
}
