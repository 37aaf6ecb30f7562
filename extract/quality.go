package extract

// Score rates an extraction's usefulness on [0, 1].
//
// The heuristic rewards the presence of a title and description, tiered
// content length, and multi-line structure. Thresholds are calibrated so
// that a bare snippet scores below the default ingestion quality gate while
// any real article body clears it.
func Score(content, title, description string) float64 {
	score := 0.0
	if title != "" {
		score += 0.2
	}
	if description != "" {
		score += 0.2
	}
	switch {
	case len(content) >= 600:
		score += 0.4
	case len(content) >= 200:
		score += 0.25
	case len(content) >= 80:
		score += 0.1
	}
	if containsNewline(content) {
		score += 0.2
	} else {
		score += 0.05
	}
	if score > 1.0 {
		score = 1.0
	}
	return round3(score)
}

func containsNewline(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return true
		}
	}
	return false
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
