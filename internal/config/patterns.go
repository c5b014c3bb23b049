package config

// Match modes for domain patterns.
const (
	// MatchAny fires when at least one keyword or regexp matches.
	MatchAny = "any"
	// MatchAll fires only when every keyword is present.
	MatchAll = "all"
	// MatchWeighted sums per-keyword weights of matched keywords, capped
	// at the pattern's bonus.
	MatchWeighted = "weighted"
)

// Pattern is a named keyword/regexp rule that adds a bonus to a document's
// importance score when it matches. Patterns are explicit tagged records
// validated once at load, never loose maps interpreted at match time.
type Pattern struct {
	Name     string             `mapstructure:"name"`
	Keywords []string           `mapstructure:"keywords"`
	Regexps  []string           `mapstructure:"regexps"`
	Bonus    float64            `mapstructure:"bonus"`
	Mode     string             `mapstructure:"mode"`
	Weights  map[string]float64 `mapstructure:"weights"`
}

// Trigger is a permanence trigger: a pattern whose match adds a boost that
// is applied to the uncapped combined score, allowing one-step promotion to
// the permanent tier.
type Trigger struct {
	Name     string   `mapstructure:"name"`
	Keywords []string `mapstructure:"keywords"`
	Regexps  []string `mapstructure:"regexps"`
	Boost    float64  `mapstructure:"boost"`
}
