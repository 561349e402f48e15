package threatintel

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"

	"rampart/ipaddresses"
)

// LocalFeed is a Feed backed by indicator list files on disk, one indicator
// per line, one file per indicator kind. An external refresher process (or a
// PutIndicators call) replaces the lists; lookups only consult the in-memory
// sets.
type LocalFeed struct {
	mu         sync.RWMutex
	indicators map[IndicatorKind]map[string]struct{}
	confidence int
	source     string
}

// NewLocalFeed creates an empty local feed. confidence is assigned to every
// listed indicator.
func NewLocalFeed(source string, confidence int) *LocalFeed {
	if confidence <= 0 {
		confidence = 75
	}
	return &LocalFeed{
		indicators: make(map[IndicatorKind]map[string]struct{}),
		confidence: confidence,
		source:     source,
	}
}

// LoadFile replaces the indicator set for one kind with the contents of a
// line-delimited file. Blank lines and #-comments are skipped. IP lists
// additionally drop IANA special-purpose addresses: those ranges never appear
// as a routable client, so a feed listing them is noise.
func (f *LocalFeed) LoadFile(kind IndicatorKind, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var values []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if kind == KindIP {
			if special, serr := ipaddresses.IsSpecialPurposeAddress(line); serr == nil && special {
				continue
			}
		}
		values = append(values, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	f.PutIndicators(kind, values)
	return nil
}

// PutIndicators replaces the indicator set for one kind wholesale.
func (f *LocalFeed) PutIndicators(kind IndicatorKind, values []string) {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	f.mu.Lock()
	f.indicators[kind] = set
	f.mu.Unlock()
}

func (f *LocalFeed) LookupIndicator(ctx context.Context, value string, kind IndicatorKind) (Record, error) {
	f.mu.RLock()
	_, listed := f.indicators[kind][strings.ToLower(value)]
	f.mu.RUnlock()

	rec := Record{Indicator: value, Kind: kind}
	if listed {
		rec.Malicious = true
		rec.Confidence = f.confidence
		rec.Categories = []string{"listed"}
		rec.Sources = []string{f.source}
	}
	return rec, nil
}
