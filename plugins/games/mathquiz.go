package games

import (
	"fmt"
	"strconv"
)

// MathQuiz asks one arithmetic question. Anyone may answer; the first
// correct answer wins.
type MathQuiz struct {
	question string
	answer   int
}

// NewMathQuiz draws a question using intn.
func NewMathQuiz(intn func(int) int) *MathQuiz {
	switch intn(3) {
	case 0:
		a, b := 2+intn(49), 2+intn(49)
		return &MathQuiz{question: fmt.Sprintf("%d + %d", a, b), answer: a + b}
	case 1:
		a, b := 2+intn(49), 2+intn(49)
		if b > a {
			a, b = b, a
		}
		return &MathQuiz{question: fmt.Sprintf("%d - %d", a, b), answer: a - b}
	default:
		a, b := 2+intn(11), 2+intn(11)
		return &MathQuiz{question: fmt.Sprintf("%d × %d", a, b), answer: a * b}
	}
}

func (q *MathQuiz) Name() string { return "Math quiz" }
func (q *MathQuiz) Seats() int   { return 0 }

func (q *MathQuiz) Start([]string) string {
	return fmt.Sprintf("🧮 What is %s? First correct answer wins.", q.question)
}

func (q *MathQuiz) Legal(text string) bool {
	_, err := strconv.Atoi(text)
	return err == nil
}

func (q *MathQuiz) Play(mv Move) Step {
	n, err := strconv.Atoi(mv.Text)
	if err != nil || n != q.answer {
		return Step{}
	}
	return Step{
		Text:    fmt.Sprintf("✅ @%s is right: %s = %d", mv.Player, q.question, q.answer),
		Outcome: OutcomeWin,
	}
}

func (q *MathQuiz) Expire() string {
	return fmt.Sprintf("%s = %d.", q.question, q.answer)
}
