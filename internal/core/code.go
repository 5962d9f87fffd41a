package core

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"unicode"
)

const (
	SuffixMin = 100
	SuffixMax = 999

	// SuffixesPerPrefix bounds how many codes one committee prefix can issue per run.
	SuffixesPerPrefix = SuffixMax - SuffixMin + 1

	// PrefixLen is the number of committee characters kept in a code.
	PrefixLen = 3

	// maxRandomDraws is how many colliding draws are tolerated before the
	// allocator switches to scanning for a free suffix.
	maxRandomDraws = 64
)

// CodeSet is the set of codes issued during one run.
//
// It is owned by a single batch driver and is not safe for concurrent use.
type CodeSet struct {
	codes     map[string]struct{}
	perPrefix map[string]int
}

func NewCodeSet() *CodeSet {
	return &CodeSet{
		codes:     make(map[string]struct{}),
		perPrefix: make(map[string]int),
	}
}

func (s *CodeSet) Contains(code string) bool {
	_, ok := s.codes[code]
	return ok
}

func (s *CodeSet) Len() int { return len(s.codes) }

// Add registers a code issued elsewhere. It reports whether the code was new.
func (s *CodeSet) Add(code string) bool {
	prefix := code
	if len(code) >= 3 {
		prefix = code[:len(code)-3]
	}
	return s.add(prefix, code)
}

func (s *CodeSet) add(prefix, code string) bool {
	if s.Contains(code) {
		return false
	}
	s.codes[code] = struct{}{}
	s.perPrefix[prefix]++
	return true
}

// Prefix returns the upper-cased first three characters of a committee name.
// Shorter names yield a shorter prefix; there is no padding.
//
// Codes name output files, so path separators, dots, colons and control
// characters are replaced with '_'.
func Prefix(committee string) string {
	r := []rune(strings.TrimSpace(committee))
	if len(r) > PrefixLen {
		r = r[:PrefixLen]
	}
	for i, c := range r {
		if pathUnsafe(c) {
			r[i] = '_'
		}
	}
	return strings.ToUpper(string(r))
}

func pathUnsafe(c rune) bool {
	switch c {
	case '/', '\\', '.', ':':
		return true
	}
	return unicode.IsControl(c)
}

// Allocator issues short delegate codes of the form <PREFIX><NNN>.
type Allocator struct {
	rng *rand.Rand
}

// NewAllocator returns an allocator drawing from rng. A nil rng uses a
// randomly seeded source.
func NewAllocator(rng *rand.Rand) *Allocator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Allocator{rng: rng}
}

// NewSeededAllocator returns an allocator whose sequence is fixed by seed.
func NewSeededAllocator(seed uint64) *Allocator {
	return NewAllocator(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Allocate draws a code for committee that is not yet in used, registers it and
// returns it.
//
// Suffixes are drawn uniformly from [SuffixMin, SuffixMax]. After maxRandomDraws
// collisions the allocator scans from a random start instead, so a nearly full
// prefix still terminates. A prefix with every suffix taken fails with
// ErrCodeSpaceExhausted.
func (a *Allocator) Allocate(committee string, used *CodeSet) (string, error) {
	if used == nil {
		return "", errors.New("nil code set")
	}
	prefix := Prefix(committee)
	exhausted := &Error{
		Kind: ErrCodeSpaceExhausted,
		Msg:  fmt.Sprintf("all %d codes for prefix %q are issued", SuffixesPerPrefix, prefix),
	}
	if used.perPrefix[prefix] >= SuffixesPerPrefix {
		return "", exhausted
	}

	for i := 0; i < maxRandomDraws; i++ {
		code := prefix + strconv.Itoa(a.draw())
		if used.add(prefix, code) {
			return code, nil
		}
	}

	start := a.draw() - SuffixMin
	for i := 0; i < SuffixesPerPrefix; i++ {
		n := SuffixMin + (start+i)%SuffixesPerPrefix
		code := prefix + strconv.Itoa(n)
		if used.add(prefix, code) {
			return code, nil
		}
	}
	return "", exhausted
}

func (a *Allocator) draw() int {
	return SuffixMin + a.rng.IntN(SuffixesPerPrefix)
}
