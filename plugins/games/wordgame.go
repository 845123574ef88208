package games

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed words.yaml
var defaultWords []byte

// Word is one entry of the word bank.
type Word struct {
	Word string `yaml:"word"`
	Hint string `yaml:"hint"`
}

// WordBank is the set of words the word game draws from.
type WordBank struct {
	Words []Word `yaml:"words"`
}

// DefaultWordBank returns the built-in bank.
func DefaultWordBank() *WordBank {
	bank, err := ParseWordBank(defaultWords)
	if err != nil {
		panic(fmt.Sprintf("built-in word bank: %v", err))
	}
	return bank
}

// LoadWordBank reads a YAML word bank from path.
func LoadWordBank(path string) (*WordBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read word bank: %w", err)
	}
	bank, err := ParseWordBank(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bank, nil
}

// ParseWordBank decodes and validates a YAML word bank.
func ParseWordBank(data []byte) (*WordBank, error) {
	var bank WordBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse word bank: %w", err)
	}
	kept := bank.Words[:0]
	for _, w := range bank.Words {
		w.Word = strings.TrimSpace(w.Word)
		if w.Word == "" || strings.ContainsFunc(w.Word, unicode.IsSpace) {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("word bank has no usable words")
	}
	bank.Words = kept
	return &bank, nil
}

func (b *WordBank) pick(intn func(int) int) Word {
	return b.Words[intn(len(b.Words))]
}

// FoldAnswer normalizes a guess for comparison: diacritics are stripped
// and case is folded.
func FoldAnswer(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return cases.Fold().String(out)
}

// WordGame asks the chat to unscramble a word. Anyone may answer; wrong
// guesses are ignored.
type WordGame struct {
	word      Word
	answer    string
	scrambled string
}

// NewWordGame scrambles w using intn.
func NewWordGame(w Word, intn func(int) int) *WordGame {
	return &WordGame{
		word:      w,
		answer:    FoldAnswer(w.Word),
		scrambled: scramble(w.Word, intn),
	}
}

func scramble(word string, intn func(int) int) string {
	letters := []rune(strings.ToUpper(word))
	orig := string(letters)
	for attempt := 0; attempt < 5; attempt++ {
		for i := len(letters) - 1; i > 0; i-- {
			j := intn(i + 1)
			letters[i], letters[j] = letters[j], letters[i]
		}
		if string(letters) != orig {
			break
		}
	}
	return string(letters)
}

func (w *WordGame) Name() string { return "Word game" }
func (w *WordGame) Seats() int   { return 0 }

func (w *WordGame) Start([]string) string {
	text := fmt.Sprintf("🔤 Unscramble: *%s*", w.scrambled)
	if w.word.Hint != "" {
		text += fmt.Sprintf("\nHint: %s", w.word.Hint)
	}
	return text + "\nFirst correct answer wins."
}

// Legal accepts any single word of the answer's length.
func (w *WordGame) Legal(text string) bool {
	if text == "" || strings.ContainsFunc(text, unicode.IsSpace) {
		return false
	}
	return len([]rune(FoldAnswer(text))) == len([]rune(w.answer))
}

func (w *WordGame) Play(mv Move) Step {
	if FoldAnswer(mv.Text) != w.answer {
		return Step{}
	}
	return Step{
		Text:    fmt.Sprintf("🎉 @%s got it: *%s*", mv.Player, w.word.Word),
		Outcome: OutcomeWin,
	}
}

func (w *WordGame) Expire() string {
	return fmt.Sprintf("The word was *%s*.", w.word.Word)
}
