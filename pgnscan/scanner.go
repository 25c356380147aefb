package pgnscan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Analyze scans a PGN export and returns one GameResult per complete game,
// seen from the side of 'username' (matched case-insensitively against the
// White tag).
//
// Only the mainline is counted: variations are skipped in full, as are
// comments, NAGs, move numbers and result tokens. Games whose id, color or
// outcome cannot be determined are dropped without error. If the same game
// id appears twice, the later game wins.
//
// The returned error is only non-nil if reading from r failed; the games
// scanned before the failure are still returned.
func Analyze(r io.Reader, username string) ([]GameResult, error) {
	s := &scanner{
		r:         bufio.NewReader(r),
		username:  strings.ToLower(username),
		lineStart: true,
		tags:      make(map[string]bool),
		byID:      make(map[string]int),
	}
	if err := s.run(); err != nil {
		return s.games, fmt.Errorf("reading PGN: %w", err)
	}
	return s.games, nil
}

type scanner struct {
	r        *bufio.Reader
	username string

	acc       accumulator
	tags      map[string]bool
	inGame    bool
	inMoves   bool
	lineStart bool

	games []GameResult
	byID  map[string]int
}

func (s *scanner) run() error {
	for {
		c, err := s.r.ReadByte()
		if errors.Is(err, io.EOF) {
			s.endGame()
			return nil
		}
		if err != nil {
			return err
		}
		atLineStart := s.lineStart
		s.lineStart = c == '\n'

		switch {
		case isSpace(c):
		case c == '%' && atLineStart:
			err = s.skipLine()
		case c == '[':
			err = s.header()
		case c == '{':
			err = s.skipUntil('}')
		case c == ';':
			err = s.skipLine()
		case c == '(':
			err = s.skipVariation()
		case c == ')', c == ']', c == '}':
			// unbalanced, ignore
		case c == '$':
			_, err = s.token(c)
		default:
			var tok string
			tok, err = s.token(c)
			if err == nil {
				s.move(tok)
			}
		}
		if err != nil {
			return err
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	return isSpace(c) || strings.IndexByte("{}();[]", c) >= 0
}

// skipUntil consumes input through the next 'delim'. Running out of input
// is not an error here; the main loop will see EOF next.
func (s *scanner) skipUntil(delim byte) error {
	_, err := s.r.ReadString(delim)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *scanner) skipLine() error {
	s.lineStart = true
	return s.skipUntil('\n')
}

// skipVariation advances past the parenthesis matching one which was just
// consumed. Nested variations and comments inside are skipped along with it;
// nothing inside is counted.
func (s *scanner) skipVariation() error {
	depth := 1
	for depth > 0 {
		c, err := s.r.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case '{':
			if err := s.skipUntil('}'); err != nil {
				return err
			}
		case ';':
			if err := s.skipUntil('\n'); err != nil {
				return err
			}
		}
	}
	return nil
}

// token reads the rest of a token whose first byte 'first' was already
// consumed.
func (s *scanner) token(first byte) (string, error) {
	var b strings.Builder
	b.WriteByte(first)
	for {
		c, err := s.r.ReadByte()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		if isDelimiter(c) {
			return b.String(), s.r.UnreadByte()
		}
		b.WriteByte(c)
	}
}

// header parses a tag pair after its opening bracket, eg: Site "https://lichess.org/abcd1234"]
func (s *scanner) header() error {
	var key, val strings.Builder
	inValue, escaped, sawValue := false, false, false
	for {
		c, err := s.r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if inValue {
			switch {
			case escaped:
				val.WriteByte(c)
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inValue = false
			default:
				val.WriteByte(c)
			}
			continue
		}
		if c == ']' {
			break
		}
		if c == '\n' {
			s.lineStart = true
			break
		}
		if c == '"' {
			inValue, sawValue = true, true
			continue
		}
		if !sawValue && !isSpace(c) {
			key.WriteByte(c)
		}
	}
	// tags after movetext, or a tag seen twice, start the next game
	k := key.String()
	if s.inMoves || s.tags[k] {
		s.endGame()
	}
	s.tags[k] = true
	s.inGame = true
	s.applyHeader(k, val.String())
	return nil
}

func (s *scanner) applyHeader(key, val string) {
	switch key {
	case "Site":
		id := strings.TrimSpace(val[strings.LastIndexByte(val, '/')+1:])
		if id != "" {
			s.acc.id = &id
		}
	case "White":
		isWhite := s.username != "" && strings.Contains(strings.ToLower(val), s.username)
		s.acc.isWhite = &isWhite
	case "Result":
		outcome := strings.TrimSpace(val)
		s.acc.outcome = &outcome
	default:
		return
	}
	s.acc.resolve()
}

func (s *scanner) move(tok string) {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		s.endGame()
		return
	}
	// move numbers: "12." "12..." or glued like "12.Nf3"
	if i := strings.LastIndexByte(tok, '.'); i >= 0 {
		tok = tok[i+1:]
	}
	if tok == "" {
		return
	}
	if !strings.HasPrefix(tok, "0-0") && !isSANStart(tok[0]) {
		return
	}
	s.acc.plies++
	s.inMoves = true
	s.inGame = true
}

func isSANStart(c byte) bool {
	return (c >= 'a' && c <= 'h') || strings.IndexByte("KQRBNO", c) >= 0
}

func (s *scanner) endGame() {
	if s.inGame {
		if res, ok := s.acc.finish(); ok {
			if i, dup := s.byID[res.ID]; dup {
				s.games[i] = res
			} else {
				s.byID[res.ID] = len(s.games)
				s.games = append(s.games, res)
			}
		}
	}
	s.acc = accumulator{}
	clear(s.tags)
	s.inGame = false
	s.inMoves = false
}
