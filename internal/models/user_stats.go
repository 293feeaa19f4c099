package models

import (
	"math"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	json "github.com/goccy/go-json"
)

// UserStats aggregates one user's results. Mutated only by Apply and by
// abandonment (streak reset).
type UserStats struct {
	UserID          string          `json:"user_id"`
	GamesPlayed     int             `json:"games_played"`
	GamesWon        int             `json:"games_won"`
	CurrentStreak   int             `json:"current_streak"`
	BestStreak      int             `json:"best_streak"`
	TotalScore      int64           `json:"total_score"`
	AverageMistakes float64         `json:"average_mistakes"`
	AverageTime     float64         `json:"average_time"`
	LastPlayedDate  time.Time       `json:"last_played_date"`
	PlayedQuotes    *roaring.Bitmap `json:"-"`
}

// GameResult is the input to a stats update.
type GameResult struct {
	Won       bool
	Score     int
	Mistakes  int
	TimeTaken int
	QuoteID   int64
	PlayedAt  time.Time
}

// NewUserStats returns empty stats for a user.
func NewUserStats(userID string) *UserStats {
	return &UserStats{
		UserID:       userID,
		PlayedQuotes: roaring.New(),
	}
}

// Apply folds one finished game into the aggregate.
func (s *UserStats) Apply(r GameResult) {
	s.GamesPlayed++
	if r.Won {
		s.GamesWon++
		s.CurrentStreak++
		if s.CurrentStreak > s.BestStreak {
			s.BestStreak = s.CurrentStreak
		}
	} else {
		s.CurrentStreak = 0
	}
	s.TotalScore += int64(r.Score)

	n := float64(s.GamesPlayed)
	s.AverageMistakes = (s.AverageMistakes*(n-1) + float64(r.Mistakes)) / n
	s.AverageTime = (s.AverageTime*(n-1) + float64(r.TimeTaken)) / n

	s.LastPlayedDate = r.PlayedAt
	s.MarkPlayed(r.QuoteID)
}

// ResetStreak is applied when a game is abandoned.
func (s *UserStats) ResetStreak() {
	s.CurrentStreak = 0
}

// MarkPlayed records a quote id as served to the user.
func (s *UserStats) MarkPlayed(quoteID int64) {
	if quoteID <= 0 || quoteID > math.MaxUint32 {
		return
	}
	if s.PlayedQuotes == nil {
		s.PlayedQuotes = roaring.New()
	}
	s.PlayedQuotes.Add(uint32(quoteID))
}

// HasPlayed reports whether the quote was already served.
func (s *UserStats) HasPlayed(quoteID int64) bool {
	if s.PlayedQuotes == nil || quoteID <= 0 || quoteID > math.MaxUint32 {
		return false
	}
	return s.PlayedQuotes.Contains(uint32(quoteID))
}

// PlayedQuoteIDs lists played quote ids in ascending order.
func (s *UserStats) PlayedQuoteIDs() []int64 {
	if s.PlayedQuotes == nil {
		return nil
	}
	ids := make([]int64, 0, s.PlayedQuotes.GetCardinality())
	it := s.PlayedQuotes.Iterator()
	for it.HasNext() {
		ids = append(ids, int64(it.Next()))
	}
	return ids
}

// EncodePlayed serializes the played-quote set for storage.
func (s *UserStats) EncodePlayed() ([]byte, error) {
	if s.PlayedQuotes == nil {
		return roaring.New().MarshalBinary()
	}
	return s.PlayedQuotes.MarshalBinary()
}

// DecodePlayed restores the played-quote set from storage.
func (s *UserStats) DecodePlayed(data []byte) error {
	bm := roaring.New()
	if len(data) > 0 {
		if err := bm.UnmarshalBinary(data); err != nil {
			return err
		}
	}
	s.PlayedQuotes = bm
	return nil
}

// WinRate returns won/played as a percentage.
func (s *UserStats) WinRate() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.GamesWon) / float64(s.GamesPlayed) * 100
}

func (s *UserStats) MarshalJSON() ([]byte, error) {
	type plain UserStats
	played, err := s.EncodePlayed()
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		PlayedQuotes []byte  `json:"played_quotes,omitempty"`
		WinRate      float64 `json:"win_rate"`
	}{plain(*s), played, s.WinRate()})
}

// UnmarshalJSON embeds the alias by value: the decoder cannot allocate an
// embedded pointer to an unexported type.
func (s *UserStats) UnmarshalJSON(data []byte) error {
	type plain UserStats
	aux := struct {
		plain
		PlayedQuotes []byte `json:"played_quotes,omitempty"`
	}{plain: plain(*s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = UserStats(aux.plain)
	return s.DecodePlayed(aux.PlayedQuotes)
}
