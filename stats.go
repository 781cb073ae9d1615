package main

import "sort"

// aggregator accumulates project-level statistics while entries stream past.
// It has a single owner per run and is not safe for concurrent use.
type aggregator struct {
	files       int
	directories int
	size        int64
	tokens      int
	typeCounts  map[string]int
	languages   map[string]struct{}
	finalized   bool
}

func newAggregator() *aggregator {
	return &aggregator{
		typeCounts: make(map[string]int),
		languages:  make(map[string]struct{}),
	}
}

// record folds one entry into the running totals. Directories and files feed
// the respective counters; symlinks feed neither. Only files carry a
// classification and contribute size.
func (a *aggregator) record(e Entry, cls Classification, tokens int) {
	if a.finalized {
		panic("aggregator: record after finalize")
	}
	switch e.Kind {
	case KindDirectory:
		a.directories++
	case KindFile:
		a.files++
		a.size += e.Size
		a.tokens += tokens
		a.typeCounts[cls.Type]++
		if cls.Language != "" {
			a.languages[cls.Language] = struct{}{}
		}
	}
}

// finalize freezes the totals. Calling record afterwards is a programming
// error.
func (a *aggregator) finalize() ProjectStats {
	if a.finalized {
		panic("aggregator: finalize called twice")
	}
	a.finalized = true

	languages := make([]string, 0, len(a.languages))
	for lang := range a.languages {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	return ProjectStats{
		TotalFiles:       a.files,
		TotalDirectories: a.directories,
		TotalSize:        a.size,
		TotalTokens:      a.tokens,
		TypeCounts:       a.typeCounts,
		Languages:        languages,
	}
}
