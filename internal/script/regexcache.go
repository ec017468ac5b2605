package script

import (
	"regexp"
	"sync"
)

// regexCache compiles regexp.Regexp lazily and keeps them around for the
// life of the run — stage scripts tend to call regex_match/regex_replace
// with the same handful of literal patterns on every line.
type regexCache struct {
	mu  sync.RWMutex
	pat map[string]*regexp.Regexp
}

func newRegexCache() *regexCache {
	return &regexCache{pat: make(map[string]*regexp.Regexp)}
}

func (c *regexCache) compile(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.pat[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pat[pattern] = re
	c.mu.Unlock()
	return re, nil
}
