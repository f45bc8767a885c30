package chat

import (
	"math/rand"
	"strconv"
)

const captchaOptionCount = 5

type captcha struct {
	question string
	answer   string
	options  []string
}

// generateCaptcha builds an arithmetic question for the difficulty tier.
// Unknown tiers fall back to easy.
func generateCaptcha(difficulty string) captcha {
	var question string
	var answer int
	switch difficulty {
	case "medium":
		a, b := 10+rand.Intn(21), 1+rand.Intn(20)
		question = strconv.Itoa(a) + " + " + strconv.Itoa(b)
		answer = a + b
	case "hard":
		a, b := 10+rand.Intn(21), 2+rand.Intn(8)
		question = strconv.Itoa(a) + " × " + strconv.Itoa(b)
		answer = a * b
	default:
		a, b := 1+rand.Intn(9), 1+rand.Intn(9)
		question = strconv.Itoa(a) + " + " + strconv.Itoa(b)
		answer = a + b
	}
	return captcha{
		question: question,
		answer:   strconv.Itoa(answer),
		options:  captchaOptions(answer),
	}
}

// captchaOptions returns the answer plus distinct distractors near it,
// shuffled. Distractors stay within roughly 30% of the answer; when the
// neighborhood is too cramped to yield enough distinct values, remaining
// slots fill from a wider uniform range.
func captchaOptions(answer int) []string {
	delta := answer * 30 / 100
	if delta < 3 {
		delta = 3
	}

	seen := map[int]struct{}{answer: {}}
	values := []int{answer}
	for attempts := 0; len(values) < captchaOptionCount && attempts < 100; attempts++ {
		candidate := answer - delta + rand.Intn(2*delta+1)
		if candidate < 1 {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		values = append(values, candidate)
	}
	for len(values) < captchaOptionCount {
		candidate := 1 + rand.Intn(answer*2+10)
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		values = append(values, candidate)
	}

	rand.Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})

	options := make([]string, len(values))
	for i, v := range values {
		options[i] = strconv.Itoa(v)
	}
	return options
}
