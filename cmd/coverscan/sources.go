package main

import (
	"strings"

	"covergrab/internal/cover"
)

// sourceListFlag implements flag.Value for the -s flag: a
// comma-separated (and/or repeated) list of source names.
type sourceListFlag struct {
	names []cover.SourceName
}

func newSourceListFlag() *sourceListFlag { return &sourceListFlag{} }

func (f *sourceListFlag) String() string {
	if f == nil || len(f.names) == 0 {
		return ""
	}
	parts := make([]string, len(f.names))
	for i, n := range f.names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ",")
}

func (f *sourceListFlag) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, err := cover.ParseSourceName(part)
		if err != nil {
			return err
		}
		f.names = append(f.names, name)
	}
	return nil
}
