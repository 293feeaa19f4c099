// Package cipher builds substitution-enciphered puzzles from plaintext quotes.
package cipher

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"
)

const alphabetSize = 26

// FallbackQuote is served whenever the quote pool cannot provide one.
var FallbackQuote = models.Quote{
	Text:       "THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG",
	Author:     "Anonymous",
	Difficulty: 2.0,
	IsActive:   true,
}

type EngineInterface interface {
	Encrypt(plaintext string, difficulty models.Difficulty) (*models.Puzzle, error)
}

// Engine draws substitution keys from its own random source and is safe for
// concurrent use.
type Engine struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock func() time.Time
}

func NewEngine() EngineInterface {
	return NewSeededEngine(rand.Uint64(), rand.Uint64(), time.Now)
}

// NewSeededEngine returns an engine with a reproducible key sequence.
func NewSeededEngine(seed1, seed2 uint64, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		rng:   rand.New(rand.NewPCG(seed1, seed2)),
		clock: clock,
	}
}

// Encrypt builds a fresh in-progress puzzle for plaintext.
func (e *Engine) Encrypt(plaintext string, difficulty models.Difficulty) (*models.Puzzle, error) {
	solution := models.NormalizeText(plaintext)
	alphabet := letterSet(solution)
	if len(alphabet) == 0 {
		return nil, apperr.New(apperr.ErrEncryption, "plaintext has no encryptable letters")
	}

	plainToCipher := e.drawKey(alphabet)
	encrypted := Apply(solution, plainToCipher)

	now := e.clock()
	p := &models.Puzzle{
		ID:               models.NewPuzzleID(),
		Encrypted:        encrypted,
		Solution:         solution,
		Mapping:          plainToCipher.Inverse(),
		CorrectMappings:  models.LetterMap{},
		GuessedMappings:  models.LetterMap{},
		IncorrectGuesses: models.LetterSets{},
		MaxMistakes:      difficulty.MaxMistakes(),
		Difficulty:       difficulty,
		StartTime:        now,
		LastUpdateTime:   now,
	}
	p.RecomputeDisplay()
	return p, nil
}

// drawKey restricts a uniformly random permutation of A-Z to the given
// alphabet, redrawing until no letter maps to itself.
func (e *Engine) drawKey(alphabet []rune) models.LetterMap {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		perm := e.rng.Perm(alphabetSize)
		key := make(models.LetterMap, len(alphabet))
		ok := true
		for _, l := range alphabet {
			c := rune('A' + perm[l-'A'])
			if c == l {
				ok = false
				break
			}
			key[l] = c
		}
		if ok {
			return key
		}
	}
}

// Apply substitutes every mapped letter of text; other runes pass through.
func Apply(text string, key models.LetterMap) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if sub, ok := key[r]; ok {
			b.WriteRune(sub)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Decrypt reverses the puzzle's ciphertext with its ground-truth mapping.
func Decrypt(p *models.Puzzle) string {
	return Apply(p.Encrypted, p.Mapping)
}

func letterSet(s string) []rune {
	var seen [alphabetSize]bool
	var out []rune
	for _, r := range s {
		if !models.IsCipherLetter(r) || seen[r-'A'] {
			continue
		}
		seen[r-'A'] = true
		out = append(out, r)
	}
	return out
}
