package services

import (
	"regexp"
	"strings"
	"unicode"
)

// Models occasionally ignore the prompt and emit LaTeX anyway. These rules
// rewrite the common commands into plain Unicode so question text renders
// without a math engine.
var (
	inlineMathRe = regexp.MustCompile(`\$([^$]+)\$`)
	fracRe       = regexp.MustCompile(`\\frac\{([^}]+)\}\{([^}]+)\}`)
	sqrtRe       = regexp.MustCompile(`\\sqrt\{([^}]+)\}`)

	mathReplacer = strings.NewReplacer(
		"^2", "²",
		"^3", "³",
		"_1", "₁",
		"_2", "₂",
		`\times`, "×",
		`\div`, "÷",
		`\pm`, "±",
		`\leq`, "≤",
		`\geq`, "≥",
		`\neq`, "≠",
		`\alpha`, "α",
		`\beta`, "β",
		`\gamma`, "γ",
		`\theta`, "θ",
		`\omega`, "ω",
		`\pi`, "π",
		`\Delta`, "Δ",
	)
)

// CleanMathMarkup strips LaTeX remnants from AI-generated text: inline math
// delimiters are unwrapped, \frac and \sqrt are rewritten, common commands
// become their Unicode equivalents, and any leftover backslashes are removed.
// The function is idempotent and returns non-LaTeX text unchanged.
func CleanMathMarkup(text string) string {
	if text == "" {
		return text
	}
	text = inlineMathRe.ReplaceAllString(text, "$1")
	text = fracRe.ReplaceAllString(text, "$1/$2")
	text = sqrtRe.ReplaceAllString(text, "√$1")
	text = mathReplacer.Replace(text)
	return strings.ReplaceAll(text, `\`, "")
}

// Arabic physics shorthand mapped to the Latin symbols the diagram renderer
// understands. Keys are whole symbol tokens, including subscripted and
// coefficient forms.
var symbolTokens = map[string]string{
	"ش":  "q",
	"ش₁": "q₁",
	"ش₂": "q₂",
	"ش₃": "q₃",
	"ق":  "F",
	"ق₁": "F₁",
	"ق₂": "F₂",
	"ف":  "r",
	"ف₁": "r₁",
	"ف₂": "r₂",
	"٢ف": "2r",
	"٣ف": "3r",
	"٤ف": "4r",
	"ك":  "m",
	"ك₁": "m₁",
	"ك₂": "m₂",
	"ع":  "v",
	"ع₁": "v₁",
	"ع₂": "v₂",
	"ج":  "a",
	"ج₁": "a₁",
	"ج₂": "a₂",
	"ز":  "t",
	"ز₁": "t₁",
	"ز₂": "t₂",
}

func isSymbolRune(r rune) bool {
	return unicode.Is(unicode.Arabic, r) || (r >= '₀' && r <= '₉')
}

// LatinizeSymbols rewrites standalone Arabic physics symbols (ش, ق₁, ٣ف, ...)
// into their Latin equivalents (q, F₁, 3r, ...). Matching is token-based:
// only whole runs of Arabic script map, so ordinary Arabic words that happen
// to contain these letters are left untouched. Idempotent, since the output
// tokens are Latin and never re-match.
func LatinizeSymbols(text string) string {
	if text == "" {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))

	var token strings.Builder
	flush := func() {
		if token.Len() == 0 {
			return
		}
		t := token.String()
		if mapped, ok := symbolTokens[t]; ok {
			out.WriteString(mapped)
		} else {
			out.WriteString(t)
		}
		token.Reset()
	}

	for _, r := range text {
		if isSymbolRune(r) {
			token.WriteRune(r)
			continue
		}
		flush()
		out.WriteRune(r)
	}
	flush()

	return out.String()
}
