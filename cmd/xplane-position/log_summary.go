package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"xplane-position/internal/replay"
	"xplane-position/internal/xplane"
)

type logSummary struct {
	Frames    int
	Invalid   int
	Duration  time.Duration
	TagCounts map[string]int
}

func summarizeLog(frames []replay.Frame) logSummary {
	s := logSummary{TagCounts: map[string]int{}}
	for _, f := range frames {
		s.Frames++
		if f.At > s.Duration {
			s.Duration = f.At
		}
		recs, err := xplane.Parse(f.Data)
		if err != nil {
			s.Invalid++
			continue
		}
		for _, r := range recs {
			s.TagCounts[r.Tag().String()]++
		}
	}
	return s
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	frames, err := replay.LoadFile(path)
	if err != nil {
		return err
	}
	s := summarizeLog(frames)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "datagrams: %d\n", s.Frames)
	fmt.Fprintf(w, "invalid_datagrams: %d\n", s.Invalid)
	fmt.Fprintf(w, "duration: %s\n", s.Duration)

	tags := make([]string, 0, len(s.TagCounts))
	for k := range s.TagCounts {
		tags = append(tags, k)
	}
	sort.Strings(tags)
	fmt.Fprintf(w, "records:\n")
	for _, k := range tags {
		fmt.Fprintf(w, "  %s: %d\n", k, s.TagCounts[k])
	}
	return nil
}
