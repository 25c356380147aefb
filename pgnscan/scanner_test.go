package pgnscan

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
)

const lichessExport = `[Event "Rated Blitz game"]
[Site "https://lichess.org/AbCdEf12"]
[Date "2024.03.01"]
[White "German11"]
[Black "someone"]
[Result "0-1"]
[WhiteElo "1480"]
[BlackElo "1502"]

1. e4 { [%clk 0:03:00] } 1... e5 { [%clk 0:03:00] } 2. Qh5?! { [%clk 0:02:58] } 2... Nc6 3. Bc4 Nf6?? 4. Qxf7# 0-1

[Event "Rated Blitz game"]
[Site "https://lichess.org/XyZ98765"]
[White "someone"]
[Black "German11"]

1. d4 d5 2. c4 1-0

`

func TestAnalyzeDropsIncompleteGame(t *testing.T) {
	assert := assert.New(t)

	games, err := Analyze(strings.NewReader(lichessExport), "german11")
	assert.NoError(err)
	// second game has no Result tag, so 'won' never resolves
	if assert.Len(games, 1) {
		assert.Equal(GameResult{ID: "AbCdEf12", Plies: 7, Won: false, IsWhite: true}, games[0])
	}
}

func TestAnalyzeNestedVariation(t *testing.T) {
	assert := assert.New(t)

	pgn := `[Site "https://lichess.org/nested01"]
[White "opponent"]
[Black "Target"]
[Result "0-1"]

1. e4 (1. d4 d5 (1... Nf6 2. c4 (2. Nf3 g6) e6) 2. c4) 1... e5 2. Nf3 { a comment (with parens } Nc6
; line comment 3. Bb5
3. Bb5 $1 a6 $6 (3... Nf6 4. O-O) 4. Ba4 0-1
`
	games, err := Analyze(strings.NewReader(pgn), "target")
	assert.NoError(err)
	if assert.Len(games, 1) {
		assert.Equal("nested01", games[0].ID)
		assert.Equal(7, games[0].Plies)
		assert.False(games[0].IsWhite)
		assert.True(games[0].Won)
	}
}

func TestAnalyzeOutcomes(t *testing.T) {
	assert := assert.New(t)

	pgn := `[Site "https://lichess.org/g1"]
[White "Target"]
[Result "1-0"]

1. e4 e5 1-0

[Site "https://lichess.org/g2"]
[White "other"]
[Result "1-0"]

1. e4 e5 1-0

[Site "https://lichess.org/g3"]
[White "Target"]
[Result "1/2-1/2"]

1. e4 e5 1/2-1/2

[Site "https://lichess.org/g4"]
[White "other"]
[Result "*"]

1. e4 *
`
	games, err := Analyze(strings.NewReader(pgn), "TARGET")
	assert.NoError(err)
	assert.Equal([]GameResult{
		{ID: "g1", Plies: 2, Won: true, IsWhite: true},
		{ID: "g2", Plies: 2, Won: false, IsWhite: false},
		{ID: "g3", Plies: 2, Won: false, IsWhite: true},
		{ID: "g4", Plies: 1, Won: false, IsWhite: false},
	}, games)
}

func TestAnalyzeMissingSite(t *testing.T) {
	assert := assert.New(t)

	pgn := `[White "Target"]
[Result "1-0"]

1. e4 e5 1-0
`
	games, err := Analyze(strings.NewReader(pgn), "target")
	assert.NoError(err)
	assert.Empty(games)
}

func TestAnalyzeGlueAndEscapes(t *testing.T) {
	assert := assert.New(t)

	pgn := `[Site "https://lichess.org/glued"]
[White "The \"Target\" Player"]
[Result "0-1"]
% escaped line 1. e4 e5
1.e4 e5 2.Nf3 Nc6 3.0-0 0-1`

	games, err := Analyze(strings.NewReader(pgn), "target")
	assert.NoError(err)
	if assert.Len(games, 1) {
		assert.Equal(5, games[0].Plies)
		assert.True(games[0].IsWhite)
		assert.False(games[0].Won)
	}
}

func TestAnalyzeStrayCloseBrace(t *testing.T) {
	assert := assert.New(t)

	pgn := `[Site "https://lichess.org/brace001"]
[White "Target"]
[Result "0-1"]

1. e4 { outer { inner } still } e5 } 0-1

[Site "https://lichess.org/brace002"]
[White "Target"]
[Result "1-0"]

1. d4 d5 2. c4 1-0
`
	type result struct {
		games []GameResult
		err   error
	}
	done := make(chan result, 1)
	go func() {
		games, err := Analyze(strings.NewReader(pgn), "target")
		done <- result{games, err}
	}()

	select {
	case res := <-done:
		assert.NoError(res.err)
		assert.Equal([]GameResult{
			{ID: "brace001", Plies: 2, Won: false, IsWhite: true},
			{ID: "brace002", Plies: 3, Won: true, IsWhite: true},
		}, res.games)
	case <-time.After(3 * time.Second):
		t.Fatal("Analyze did not return")
	}
}

func TestAnalyzeGameWithoutMovetext(t *testing.T) {
	assert := assert.New(t)

	pgn := `[Event "Rated Blitz game"]
[Site "https://lichess.org/b1"]
[White "Target"]
[Result "1-0"]

[Event "Rated Blitz game"]
[Site "https://lichess.org/b2"]
[White "someone"]
[Black "Target"]
[Result "1-0"]

1. e4 e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0
`
	games, err := Analyze(strings.NewReader(pgn), "target")
	assert.NoError(err)
	assert.Equal([]GameResult{
		{ID: "b1", Plies: 0, Won: true, IsWhite: true},
		{ID: "b2", Plies: 7, Won: false, IsWhite: false},
	}, games)
}

func TestAnalyzeReadError(t *testing.T) {
	assert := assert.New(t)

	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader(lichessExport), iotest.ErrReader(boom))
	games, err := Analyze(r, "german11")
	assert.ErrorIs(err, boom)
	assert.Len(games, 1)
}

func TestSortedSuspicious(t *testing.T) {
	assert := assert.New(t)

	games := []GameResult{
		{ID: "a", Plies: 40},
		{ID: "b", Plies: 10},
		{ID: "c", Plies: 25},
		{ID: "d", Plies: 5, Won: true},
	}
	sus := SortedSuspicious(games)
	var plies []int
	for _, g := range sus {
		plies = append(plies, g.Plies)
	}
	assert.Equal([]int{10, 25, 40}, plies)
	assert.Empty(SortedSuspicious(nil))
}

func TestAccumulatorFinish(t *testing.T) {
	assert := assert.New(t)

	var acc accumulator
	_, ok := acc.finish()
	assert.False(ok)

	id, white, outcome := "x", false, "0-1"
	acc.id = &id
	acc.isWhite = &white
	_, ok = acc.finish()
	assert.False(ok)

	acc.outcome = &outcome
	acc.resolve()
	res, ok := acc.finish()
	assert.True(ok)
	assert.True(res.Won)
	assert.Equal("black", res.Color())
}
