package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Username identifies an account. Comparison is exact and case-sensitive.
type Username string

// Account represents the managed GitHub account
type Account struct {
	Username Username
}

// ProfileURL builds the full GitHub URL for an account
func (a *Account) ProfileURL() string {
	return fmt.Sprintf("https://github.com/%s", a.Username)
}

var (
	// Matches github.com/username patterns (no deeper paths)
	accountURLPattern = regexp.MustCompile(`github\.com/([A-Za-z0-9-]+)/?$`)
	// Valid login pattern
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?$`)
)

// ParseAccountInput extracts an Account from a profile URL or login string
func ParseAccountInput(input string) (*Account, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty input")
	}

	input = strings.TrimPrefix(input, "@")

	if matches := accountURLPattern.FindStringSubmatch(input); len(matches) > 1 {
		return &Account{Username: Username(matches[1])}, nil
	}

	if usernamePattern.MatchString(input) {
		return &Account{Username: Username(input)}, nil
	}

	return nil, fmt.Errorf("invalid account URL or username: %s", input)
}

// UserSet is a set of usernames.
type UserSet map[Username]struct{}

// NewUserSet builds a set from the given names, dropping duplicates.
func NewUserSet(names ...Username) UserSet {
	s := make(UserSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// UserSetOf builds a set from plain strings.
func UserSetOf(names ...string) UserSet {
	s := make(UserSet, len(names))
	for _, n := range names {
		s[Username(n)] = struct{}{}
	}
	return s
}

func (s UserSet) Add(names ...Username) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

func (s UserSet) Remove(names ...Username) {
	for _, n := range names {
		delete(s, n)
	}
}

func (s UserSet) Has(name Username) bool {
	_, ok := s[name]
	return ok
}

func (s UserSet) Len() int { return len(s) }

func (s UserSet) Clone() UserSet {
	out := make(UserSet, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Union returns a new set holding members of s and every other set.
func (s UserSet) Union(others ...UserSet) UserSet {
	out := s.Clone()
	for _, o := range others {
		for n := range o {
			out[n] = struct{}{}
		}
	}
	return out
}

// Minus returns a new set holding members of s found in none of others.
func (s UserSet) Minus(others ...UserSet) UserSet {
	out := make(UserSet, len(s))
	for n := range s {
		excluded := false
		for _, o := range others {
			if o.Has(n) {
				excluded = true
				break
			}
		}
		if !excluded {
			out[n] = struct{}{}
		}
	}
	return out
}

// Intersect returns a new set holding members present in both s and o.
func (s UserSet) Intersect(o UserSet) UserSet {
	out := make(UserSet)
	for n := range s {
		if o.Has(n) {
			out[n] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members in lexicographic order.
func (s UserSet) Sorted() []Username {
	out := make([]Username, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
