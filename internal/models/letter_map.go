package models

import (
	"fmt"
	"sort"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

// LetterMap maps one letter to another (cipher to plain in every puzzle field).
// It encodes as a JSON object of single-letter strings with sorted keys.
type LetterMap map[rune]rune

func (m LetterMap) Clone() LetterMap {
	out := make(LetterMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the map keys in ascending order.
func (m LetterMap) Keys() []rune {
	keys := make([]rune, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Inverse returns the value→key map. Only meaningful for bijections.
func (m LetterMap) Inverse() LetterMap {
	out := make(LetterMap, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// IsBijection reports whether no two keys share a value.
func (m LetterMap) IsBijection() bool {
	seen := make(map[rune]struct{}, len(m))
	for _, v := range m {
		if _, ok := seen[v]; ok {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}

func (m LetterMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = string(v)
	}
	return json.Marshal(out)
}

func (m *LetterMap) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(LetterMap, len(raw))
	for k, v := range raw {
		kr, err := singleLetter(k)
		if err != nil {
			return err
		}
		vr, err := singleLetter(v)
		if err != nil {
			return err
		}
		out[kr] = vr
	}
	*m = out
	return nil
}

// LetterSets holds, per key letter, an ordered set of letters.
type LetterSets map[rune][]rune

// Add inserts v under k and reports whether it was new.
func (s LetterSets) Add(k, v rune) bool {
	if s.Has(k, v) {
		return false
	}
	set := append(s[k], v)
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	s[k] = set
	return true
}

func (s LetterSets) Has(k, v rune) bool {
	for _, r := range s[k] {
		if r == v {
			return true
		}
	}
	return false
}

func (s LetterSets) Clone() LetterSets {
	out := make(LetterSets, len(s))
	for k, v := range s {
		out[k] = append([]rune(nil), v...)
	}
	return out
}

func (s LetterSets) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(s))
	for k, set := range s {
		vals := make([]string, len(set))
		for i, r := range set {
			vals[i] = string(r)
		}
		out[string(k)] = vals
	}
	return json.Marshal(out)
}

func (s *LetterSets) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(LetterSets, len(raw))
	for k, vals := range raw {
		kr, err := singleLetter(k)
		if err != nil {
			return err
		}
		for _, v := range vals {
			vr, err := singleLetter(v)
			if err != nil {
				return err
			}
			out.Add(kr, vr)
		}
	}
	*s = out
	return nil
}

func singleLetter(s string) (rune, error) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("expected a single letter, got %q", s)
	}
	return r, nil
}
