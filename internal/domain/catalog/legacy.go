package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// groupNameMarkers are matched against the folded name with all whitespace
// removed, so "2 x 1" and "Dos por Uno" both match.
var groupNameMarkers = []string{"2x1", "2por1", "dosporuno"}

// foldName lower-cases s and strips accents.
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// LooksLikeGroupName is the legacy inference for promotions saved without
// an explicit group flag. Only BackfillGroupFlags and IsGroupPromotion use it.
func LooksLikeGroupName(name string) bool {
	compact := strings.Join(strings.FieldsFunc(foldName(name), unicode.IsSpace), "")
	for _, m := range groupNameMarkers {
		if strings.Contains(compact, m) {
			return true
		}
	}
	return false
}

type BackfillResult struct {
	Scanned    int `json:"scanned"`
	Group      int `json:"group"`
	Individual int `json:"individual"`
}

// BackfillGroupFlags writes an explicit is_group to every unclassified
// promotion using the name heuristic. With dryRun set nothing is written.
func BackfillGroupFlags(ctx context.Context, repo PromotionRepository, dryRun bool, logger zerolog.Logger) (BackfillResult, error) {
	var res BackfillResult
	promos, err := repo.ListUnclassified(ctx)
	if err != nil {
		return res, fmt.Errorf("list unclassified promotions: %w", err)
	}
	for _, p := range promos {
		res.Scanned++
		group := LooksLikeGroupName(p.Name)
		if group {
			res.Group++
		} else {
			res.Individual++
		}
		logger.Info().
			Str("promotion_id", p.ID.String()).
			Str("name", p.Name).
			Bool("is_group", group).
			Bool("dry_run", dryRun).
			Msg("classified legacy promotion")
		if dryRun {
			continue
		}
		if err := repo.SetGroupFlag(ctx, p.ID, group); err != nil {
			return res, fmt.Errorf("set group flag on %s: %w", p.ID, err)
		}
	}
	return res, nil
}
