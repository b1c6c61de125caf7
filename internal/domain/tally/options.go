package tally

// Option enables an auxiliary statistic on every entry.
type Option func(*Entry)

// WithEliminators tracks who eliminated each competitor.
func WithEliminators() Option {
	return func(e *Entry) { e.Eliminators = make(map[*Competitor]float64) }
}

// WithBumpers tracks who sent each competitor to the losers' bracket.
func WithBumpers() Option {
	return func(e *Entry) { e.Bumpers = make(map[*Competitor]float64) }
}

// WithPairs tracks which competitor advanced alongside each one.
func WithPairs() Option {
	return func(e *Entry) { e.Pairs = make(map[*Competitor]float64) }
}

// WithRoundRobin enables the match-win, game-differential and game-win
// histograms of an n-player round robin of first-to-num matches.
func WithRoundRobin(n, num int) Option {
	return func(e *Entry) {
		span := (n - 1) * num
		e.MatchWins = make([]float64, n)
		e.SetScore = make([]float64, 2*span+1)
		e.setScoreOffset = span
		e.SetWins = make([]float64, span+1)
	}
}

// WithScores enables a team score histogram with size entries.
func WithScores(size int) Option {
	return func(e *Entry) { e.Scores = make([]float64, size) }
}
