package member

// LevelThresholds holds the minimum cumulative XP for each level boundary.
// Index i is the XP at which level i+1 begins; the final entry is a display
// ceiling used on leaderboards, not a reachable boundary (level is capped).
var LevelThresholds = [...]int{0, 200, 600, 1500, 3000, 5000, 7500, 10000, 14000, 18500, 25000}

const (
	// MinLevel is the level of a freshly registered member.
	MinLevel = 1

	// MaxLevel is the cap; XP keeps accumulating past it, level does not.
	MaxLevel = 10

	// maxLevelProgressSpan is the fixed progress denominator at MaxLevel,
	// where there is no next boundary to measure against.
	maxLevelProgressSpan = 100
)

// Tier describes one level's presentation.
type Tier struct {
	Level int
	Emoji string
	Name  string
}

var tiers = [...]Tier{
	{1, "🪴", "Sprout at the Palace Gate"},
	{2, "🏰", "Royal Novice"},
	{3, "🎀", "Princess Trainee"},
	{4, "🍼", "Beginner Princess"},
	{5, "🍀", "Rare Princess"},
	{6, "🔮", "Epic Princess"},
	{7, "🌈", "Legendary Princess"},
	{8, "🦄", "Beast Princess"},
	{9, "💎", "True Princess"},
	{10, "👑", "QUEEN"},
}

// LevelOf returns the level for a cumulative XP total.
// Negative totals clamp to MinLevel.
func LevelOf(xp XP) int {
	for i := 1; i < len(LevelThresholds); i++ {
		if int(xp) < LevelThresholds[i] {
			return i
		}
	}
	return MaxLevel
}

// TierOf returns the tier presentation for a cumulative XP total.
func TierOf(xp XP) Tier {
	return tiers[LevelOf(xp)-1]
}

// Progress describes position within the current level.
type Progress struct {
	Level   int
	Current int // XP earned within the current level
	Span    int // XP width of the current level
	ToNext  int // XP remaining to the next boundary
}

// ProgressWithinLevel computes intra-level progress for a cumulative XP
// total. At MaxLevel the span is a fixed filler, Current clamps at the
// span, and ToNext stays constant.
func ProgressWithinLevel(xp XP) Progress {
	level := LevelOf(xp)
	switch {
	case level == MinLevel:
		return Progress{
			Level:   level,
			Current: int(xp),
			Span:    LevelThresholds[1],
			ToNext:  LevelThresholds[1] - int(xp),
		}
	case level < MaxLevel:
		floor := LevelThresholds[level-1]
		span := LevelThresholds[level] - floor
		return Progress{
			Level:   level,
			Current: int(xp) - floor,
			Span:    span,
			ToNext:  LevelThresholds[level] - int(xp),
		}
	default:
		current := int(xp) - LevelThresholds[MaxLevel-1]
		if current > maxLevelProgressSpan {
			current = maxLevelProgressSpan
		}
		return Progress{
			Level:   level,
			Current: current,
			Span:    maxLevelProgressSpan,
			ToNext:  maxLevelProgressSpan,
		}
	}
}

// Bar renders the progress as a fixed-width cell bar for profile messages.
func (p Progress) Bar(width int) string {
	filled := 0
	if p.Span > 0 {
		filled = width * p.Current / p.Span
	}
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := make([]rune, 0, width)
	for i := 0; i < filled; i++ {
		bar = append(bar, '■')
	}
	for i := filled; i < width; i++ {
		bar = append(bar, '□')
	}
	return string(bar)
}
