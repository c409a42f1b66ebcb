package screen

import (
	"strings"
	"unicode"
)

// defaultKeywords is the built-in self-harm-risk phrase list. The exact set
// is policy, not contract; deployments override it via config.
var defaultKeywords = []string{
	"자살",
	"죽고싶",
	"죽고 싶",
	"동반",
	"목숨",
	"생을마감",
	"극단적",
	"자해",
	"끝내고싶",
	"끝내고 싶",
	"세상을 떠나",
	"삶을 포기",
	"더이상 살",
	"더 이상 살",
}

// Helpline describes a support contact returned alongside a flagged outcome.
type Helpline struct {
	Name        string `json:"name" mapstructure:"name"`
	Number      string `json:"number" mapstructure:"number"`
	Description string `json:"description" mapstructure:"description"`
}

// DefaultHelplines returns the built-in support contacts.
func DefaultHelplines() []Helpline {
	return []Helpline{
		{
			Name:        "자살예방상담전화",
			Number:      "1393",
			Description: "24시간 운영되는 자살예방 전문 상담전화입니다.",
		},
		{
			Name:        "정신건강위기상담전화",
			Number:      "1577-0199",
			Description: "정신건강 위기 상황 시 전문 상담을 받을 수 있습니다.",
		},
	}
}

// Screen classifies text against a fixed phrase list. It is pure and
// stateless after construction: matching is case-insensitive and ignores
// all whitespace, on both the text and the needles, so a two-word phrase
// still matches across newlines, repeated spaces, or no space at all.
type Screen struct {
	needles []string
}

// New builds a Screen from the given phrases. An empty slice selects the
// built-in list.
func New(keywords []string) *Screen {
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	needles := make([]string, 0, len(keywords))
	for _, k := range keywords {
		n := normalize(k)
		if n != "" {
			needles = append(needles, n)
		}
	}
	return &Screen{needles: needles}
}

// Flags reports whether text contains any of the screened phrases.
// Empty input never flags.
func (s *Screen) Flags(text string) bool {
	if text == "" {
		return false
	}
	normalized := normalize(text)
	for _, needle := range s.needles {
		if strings.Contains(normalized, needle) {
			return true
		}
	}
	return false
}

// Matches returns the normalized phrases found in text, in list order.
func (s *Screen) Matches(text string) []string {
	if text == "" {
		return nil
	}
	normalized := normalize(text)
	var found []string
	for _, needle := range s.needles {
		if strings.Contains(normalized, needle) {
			found = append(found, needle)
		}
	}
	return found
}

func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
