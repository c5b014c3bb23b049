package memory

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/strata-ai/strata/internal/config"
)

// patternKeyword is a case-folded keyword with its weighted-mode weight.
type patternKeyword struct {
	text   string
	weight float64
}

// patternRegexp keeps the compiled regexp with its weighted-mode weight,
// keyed by the original expression in config.
type patternRegexp struct {
	re     *regexp.Regexp
	weight float64
}

// compiledPattern is a domain pattern with its regexps compiled once.
type compiledPattern struct {
	name     string
	keywords []patternKeyword
	regexps  []patternRegexp
	bonus    float64
	mode     string
}

// compiledTrigger is a permanence trigger with its regexps compiled once.
type compiledTrigger struct {
	name     string
	keywords []string
	regexps  []*regexp.Regexp
	boost    float64
}

// Matcher evaluates text against domain patterns and permanence triggers.
// It is a pure function of its compiled configuration and is safe for
// concurrent use.
type Matcher struct {
	patterns      []compiledPattern
	triggers      []compiledTrigger
	caseSensitive bool
}

// MatchResult reports what an evaluation fired and the resulting score terms.
type MatchResult struct {
	// DomainBonus is the sum of fired pattern bonuses, uncapped across
	// patterns.
	DomainBonus float64

	// PermanenceBoost is the sum of fired trigger boosts, kept separate so
	// the classifier can tell a trigger fired.
	PermanenceBoost float64

	// FiredPatterns and FiredTriggers list the names that matched.
	FiredPatterns []string
	FiredTriggers []string
}

// TriggerFired reports whether any permanence trigger matched.
func (r MatchResult) TriggerFired() bool {
	return len(r.FiredTriggers) > 0
}

// NewMatcher compiles patterns and triggers from validated configuration.
// The config loader has already checked names, modes, ranges, and regexp
// syntax; a compile failure here means the config was not validated.
func NewMatcher(cfg *config.Config) (*Matcher, error) {
	m := &Matcher{caseSensitive: cfg.CaseSensitive}

	for _, p := range cfg.Patterns {
		cp := compiledPattern{
			name:  p.Name,
			bonus: p.Bonus,
			mode:  p.Mode,
		}
		if cp.mode == "" {
			cp.mode = config.MatchAny
		}
		for _, kw := range p.Keywords {
			cp.keywords = append(cp.keywords, patternKeyword{
				text:   m.fold(kw),
				weight: p.Weights[kw],
			})
		}
		for _, expr := range p.Regexps {
			re, err := m.compile(expr)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", p.Name, err)
			}
			cp.regexps = append(cp.regexps, patternRegexp{
				re:     re,
				weight: p.Weights[expr],
			})
		}
		m.patterns = append(m.patterns, cp)
	}

	for _, t := range cfg.Triggers {
		ct := compiledTrigger{name: t.Name, boost: t.Boost}
		for _, kw := range t.Keywords {
			ct.keywords = append(ct.keywords, m.fold(kw))
		}
		for _, expr := range t.Regexps {
			re, err := m.compile(expr)
			if err != nil {
				return nil, fmt.Errorf("trigger %q: %w", t.Name, err)
			}
			ct.regexps = append(ct.regexps, re)
		}
		m.triggers = append(m.triggers, ct)
	}

	return m, nil
}

// fold lowercases s unless matching is case-sensitive.
func (m *Matcher) fold(s string) string {
	if m.caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

// compile compiles expr, prefixing (?i) for case-insensitive matching.
func (m *Matcher) compile(expr string) (*regexp.Regexp, error) {
	if !m.caseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling regexp %q: %w", expr, err)
	}
	return re, nil
}

// Match evaluates text against all patterns and triggers. Each pattern fires
// at most once; fired bonuses are summed across patterns without a cap.
// Trigger boosts are summed separately. Empty text fires nothing.
func (m *Matcher) Match(text string) MatchResult {
	var result MatchResult
	if text == "" {
		return result
	}

	folded := m.fold(text)

	for i := range m.patterns {
		p := &m.patterns[i]
		if bonus, ok := p.evaluate(folded, text); ok {
			result.DomainBonus += bonus
			result.FiredPatterns = append(result.FiredPatterns, p.name)
		}
	}

	for i := range m.triggers {
		t := &m.triggers[i]
		if t.matches(folded, text) {
			result.PermanenceBoost += t.boost
			result.FiredTriggers = append(result.FiredTriggers, t.name)
		}
	}

	return result
}

// evaluate applies the pattern's match mode. Keywords are matched against
// the folded text, regexps against the raw text (case folding is baked into
// the compiled expression). Returns the bonus earned and whether the pattern
// fired.
func (p *compiledPattern) evaluate(folded, raw string) (float64, bool) {
	switch p.mode {
	case config.MatchAll:
		// Every keyword and regexp must be present.
		for _, kw := range p.keywords {
			if !strings.Contains(folded, kw.text) {
				return 0, false
			}
		}
		for _, pr := range p.regexps {
			if !pr.re.MatchString(raw) {
				return 0, false
			}
		}
		return p.bonus, true

	case config.MatchWeighted:
		// Sum the weights of matched keywords, capped at the pattern bonus.
		var sum float64
		matched := false
		for _, kw := range p.keywords {
			if strings.Contains(folded, kw.text) {
				matched = true
				sum += kw.weight
			}
		}
		for _, pr := range p.regexps {
			if pr.re.MatchString(raw) {
				matched = true
				sum += pr.weight
			}
		}
		if !matched {
			return 0, false
		}
		if sum > p.bonus {
			sum = p.bonus
		}
		return sum, true

	default: // config.MatchAny
		for _, kw := range p.keywords {
			if strings.Contains(folded, kw.text) {
				return p.bonus, true
			}
		}
		for _, pr := range p.regexps {
			if pr.re.MatchString(raw) {
				return p.bonus, true
			}
		}
		return 0, false
	}
}

// matches reports whether any trigger keyword or regexp is present.
func (t *compiledTrigger) matches(folded, raw string) bool {
	for _, kw := range t.keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	for _, re := range t.regexps {
		if re.MatchString(raw) {
			return true
		}
	}
	return false
}
