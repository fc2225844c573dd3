package template

import (
	"fmt"
	"math/rand/v2"
)

// Builtin returns the stock zone templates.
func Builtin() []Template {
	return []Template{
		{Zone: "Alpha", Build: sumDraft},
		{Zone: "Beta", Build: productDraft},
		{Zone: "Gamma", Build: fractionDraft},
		{Zone: "Delta", Build: equationDraft},
		{Zone: "Epsilon", Build: areaDraft},
	}
}

// between returns a random int in [lo, hi].
func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

// Alpha: addition and subtraction, wider operands as difficulty rises.
func sumDraft(rng *rand.Rand, difficulty int) Draft {
	ranges := [...][2]int{{1, 9}, {10, 99}, {100, 999}, {100, 999}, {1000, 9999}}
	lo, hi := ranges[difficulty-1][0], ranges[difficulty-1][1]

	a, b := between(rng, lo, hi), between(rng, lo, hi)
	if difficulty >= 2 && rng.IntN(2) == 0 {
		if a < b {
			a, b = b, a
		}
		return Draft{
			Prompt:      fmt.Sprintf("What is %d - %d?", a, b),
			Answer:      a - b,
			Steps:       []string{fmt.Sprintf("Start at %d.", a), fmt.Sprintf("Take away %d to get %d.", b, a-b)},
			Explanation: fmt.Sprintf("%d minus %d leaves %d.", a, b, a-b),
			Concept:     "subtraction",
		}
	}

	if difficulty == 4 {
		c := between(rng, lo, hi)
		sum := a + b + c
		return Draft{
			Prompt: fmt.Sprintf("What is %d + %d + %d?", a, b, c),
			Answer: sum,
			Steps: []string{
				fmt.Sprintf("Add the first two: %d + %d = %d.", a, b, a+b),
				fmt.Sprintf("Add the third: %d + %d = %d.", a+b, c, sum),
			},
			Explanation: fmt.Sprintf("Adding in pairs gives %d.", sum),
			Concept:     "addition",
		}
	}

	return Draft{
		Prompt:      fmt.Sprintf("What is %d + %d?", a, b),
		Answer:      a + b,
		Steps:       []string{fmt.Sprintf("Start at %d.", a), fmt.Sprintf("Count on %d to reach %d.", b, a+b)},
		Explanation: fmt.Sprintf("%d plus %d makes %d.", a, b, a+b),
		Concept:     "addition",
	}
}

// Beta: multiplication.
func productDraft(rng *rand.Rand, difficulty int) Draft {
	ranges := [...][4]int{
		{2, 5, 2, 5},
		{2, 9, 2, 9},
		{11, 19, 2, 9},
		{12, 99, 11, 30},
		{100, 999, 11, 99},
	}
	r := ranges[difficulty-1]
	a, b := between(rng, r[0], r[1]), between(rng, r[2], r[3])
	p := a * b

	steps := []string{fmt.Sprintf("Multiply %d by %d.", a, b)}
	if b >= 10 {
		tens, ones := b/10*10, b%10
		steps = []string{
			fmt.Sprintf("Split %d into %d + %d.", b, tens, ones),
			fmt.Sprintf("%d × %d = %d and %d × %d = %d.", a, tens, a*tens, a, ones, a*ones),
			fmt.Sprintf("Add the parts: %d + %d = %d.", a*tens, a*ones, p),
		}
	}
	return Draft{
		Prompt:      fmt.Sprintf("What is %d × %d?", a, b),
		Answer:      p,
		Steps:       steps,
		Explanation: fmt.Sprintf("%d groups of %d make %d.", b, a, p),
		Concept:     "multiplication",
	}
}

// Gamma: a fraction of a quantity, chosen so the result is whole.
func fractionDraft(rng *rand.Rand, difficulty int) Draft {
	denominators := [...][]int{{2}, {2, 4, 5}, {3, 4, 6, 8}, {6, 8, 12}, {7, 9, 12, 16}}
	dens := denominators[difficulty-1]
	den := dens[rng.IntN(len(dens))]
	num := between(rng, 1, den-1)
	k := between(rng, 1, 3*difficulty)
	q := den * k
	ans := num * k

	return Draft{
		Prompt: fmt.Sprintf("What is %d/%d of %d?", num, den, q),
		Answer: ans,
		Steps: []string{
			fmt.Sprintf("Divide %d into %d equal parts: %d ÷ %d = %d.", q, den, q, den, k),
			fmt.Sprintf("Take %d of those parts: %d × %d = %d.", num, num, k, ans),
		},
		Explanation: fmt.Sprintf("One %dth of %d is %d, so %d/%d of it is %d.", den, q, k, num, den, ans),
		Concept:     "fractions",
	}
}

// Delta: one-variable linear equations a·x + b = c with a whole solution.
func equationDraft(rng *rand.Rand, difficulty int) Draft {
	x := between(rng, 0, 4+3*difficulty)
	a := 1
	if difficulty >= 2 {
		a = between(rng, 2, 2+difficulty)
	}
	b := between(rng, 1, 5*difficulty)
	c := a*x + b

	prompt := fmt.Sprintf("Solve for x: %dx + %d = %d", a, b, c)
	if a == 1 {
		prompt = fmt.Sprintf("Solve for x: x + %d = %d", b, c)
	}
	steps := []string{fmt.Sprintf("Subtract %d from both sides: %dx = %d.", b, a, c-b)}
	if a != 1 {
		steps = append(steps, fmt.Sprintf("Divide both sides by %d: x = %d.", a, x))
	}
	return Draft{
		Prompt:      prompt,
		Answer:      x,
		Steps:       steps,
		Explanation: fmt.Sprintf("Undoing each operation in reverse order isolates x = %d.", x),
		Concept:     "linear-equations",
	}
}

// Epsilon: areas of rectangles, L-shapes and triangles.
func areaDraft(rng *rand.Rand, difficulty int) Draft {
	switch {
	case difficulty <= 2:
		w, h := between(rng, 2, 4*difficulty+2), between(rng, 2, 4*difficulty+2)
		return Draft{
			Prompt:      fmt.Sprintf("A rectangle is %d cm wide and %d cm tall. What is its area in cm²?", w, h),
			Answer:      w * h,
			Steps:       []string{fmt.Sprintf("Area = width × height = %d × %d = %d.", w, h, w*h)},
			Explanation: "A rectangle's area is its width times its height.",
			Concept:     "area",
		}

	case difficulty <= 4:
		w1, h1 := between(rng, 3, 12), between(rng, 3, 12)
		w2, h2 := between(rng, 2, 10), between(rng, 2, 10)
		total := w1*h1 + w2*h2
		return Draft{
			Prompt: fmt.Sprintf("An L-shape is made of a %d×%d rectangle and a %d×%d rectangle that do not overlap. What is its total area?", w1, h1, w2, h2),
			Answer: total,
			Steps: []string{
				fmt.Sprintf("First rectangle: %d × %d = %d.", w1, h1, w1*h1),
				fmt.Sprintf("Second rectangle: %d × %d = %d.", w2, h2, w2*h2),
				fmt.Sprintf("Add them: %d + %d = %d.", w1*h1, w2*h2, total),
			},
			Explanation: "Split a composite shape into rectangles and add their areas.",
			Concept:     "composite-area",
		}

	default:
		base := 2 * between(rng, 3, 20)
		h := between(rng, 3, 25)
		area := base * h / 2
		return Draft{
			Prompt: fmt.Sprintf("A triangle has base %d m and height %d m. What is its area in m²?", base, h),
			Answer: area,
			Steps: []string{
				fmt.Sprintf("Multiply base by height: %d × %d = %d.", base, h, base*h),
				fmt.Sprintf("Halve it: %d ÷ 2 = %d.", base*h, area),
			},
			Explanation: "A triangle is half of the rectangle with the same base and height.",
			Concept:     "triangle-area",
		}
	}
}
