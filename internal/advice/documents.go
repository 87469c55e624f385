package advice

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/rules"
)

// Document is one retrievable piece of plant knowledge.
type Document struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Documents builds the retrieval corpus for a plant. plan may be nil when the
// plant has no current plan.
func Documents(plant *model.Plant, plan *model.CarePlan, profile rules.Profile) []Document {
	var docs []Document
	if plan != nil {
		docs = append(docs, planDocuments(plan)...)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Species profile %q for %s (%s). ", profile.Name, plant.Name, plant.Species)
	fmt.Fprintf(&b, "Water every %.0f days with about %.0f ml. ", profile.WateringIntervalDays, profile.WaterAmountML)
	fmt.Fprintf(&b, "Fertilize every %.0f days with %s. ", profile.FertilizerIntervalDays, humanize(profile.FertilizerType))
	fmt.Fprintf(&b, "Light %.0f to %.0f PPFD. Soil moisture target %.0f%%. ",
		profile.LightPPFDMin, profile.LightPPFDMax, profile.SoilMoistureTarget*100)
	if profile.Notes != "" {
		b.WriteString(profile.Notes)
	}
	docs = append(docs, Document{
		ID:    "profile-" + profile.Name,
		Title: "Species care profile",
		Text:  strings.TrimSpace(b.String()),
	})
	return docs
}

func planDocuments(plan *model.CarePlan) []Document {
	r := plan.Rationale
	docs := []Document{{
		ID:    "plan-summary",
		Title: fmt.Sprintf("Care plan v%d summary", plan.Version),
		Text:  strings.TrimSpace(strings.Join([]string{r.Summary, r.PrimaryReason, r.ConfidenceNarrative}, " ")),
	}}

	w := plan.Plan.WateringSchedule
	f := plan.Plan.FertilizerSchedule
	l := plan.Plan.LightTargets
	docs = append(docs, Document{
		ID:    "plan-schedule",
		Title: "Current schedule",
		Text: fmt.Sprintf(
			"Water every %.1f days with %.0f ml, next watering %s. Fertilize every %.1f days with %s, next feeding %s. "+
				"Keep light between %.0f and %.0f PPFD. Soil moisture target %.0f%%. Review the plan every %.0f days.",
			w.IntervalDays, w.AmountML, w.NextDate.Format("2006-01-02"),
			f.IntervalDays, humanize(f.Type), f.NextDate.Format("2006-01-02"),
			l.PPFDMin, l.PPFDMax, plan.Plan.SoilMoistureTarget*100, plan.Plan.ReviewIntervalDays),
	})

	for _, rec := range r.Recommendations {
		parts := []string{fmt.Sprintf("%s is %.1f %s.", humanize(rec.Recommendation.Name),
			rec.Recommendation.Value, rec.Recommendation.Unit)}
		if rec.PrimaryReason.Description != "" {
			parts = append(parts, rec.PrimaryReason.Description)
		}
		for _, c := range rec.Components {
			if c.Description != "" && c.Description != rec.PrimaryReason.Description {
				parts = append(parts, c.Description)
			}
		}
		docs = append(docs, Document{
			ID:    "rec-" + rec.Recommendation.Name,
			Title: "Why " + humanize(rec.Recommendation.Name),
			Text:  strings.Join(parts, " "),
		})
	}

	var fired []string
	for _, a := range r.RulesApplied {
		if a.Fired && a.Rationale != "" {
			fired = append(fired, a.Rationale)
		}
	}
	if len(fired) > 0 {
		docs = append(docs, Document{ID: "plan-rules", Title: "Rules applied", Text: strings.Join(fired, " ")})
	}

	for _, a := range plan.Plan.Alerts {
		docs = append(docs, Document{
			ID:    "alert-" + a.Code,
			Title: fmt.Sprintf("%s alert", a.Level),
			Text:  a.Message,
		})
	}
	return docs
}

// Rank orders docs by term overlap with the question, weighting rare terms
// higher, and returns at most k. Ties keep corpus order. When nothing
// overlaps the first k documents are returned.
func Rank(question string, docs []Document, k int) []Document {
	if k <= 0 || len(docs) == 0 {
		return nil
	}
	if k > len(docs) {
		k = len(docs)
	}

	q := terms(question)
	docTerms := make([]map[string]bool, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		docTerms[i] = terms(d.Title + " " + d.Text)
		for t := range docTerms[i] {
			df[t]++
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(docs))
	for i := range docs {
		var s float64
		for t := range q {
			if docTerms[i][t] {
				s += math.Log(1 + float64(len(docs))/float64(df[t]))
			}
		}
		scores[i] = scored{idx: i, score: s}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })

	out := make([]Document, 0, k)
	for _, s := range scores[:k] {
		out = append(out, docs[s.idx])
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true, "you": true,
	"your": true, "with": true, "this": true, "that": true, "what": true, "when": true, "how": true,
	"why": true, "should": true, "does": true, "can": true, "have": true, "has": true, "was": true,
	"its": true, "from": true, "into": true, "about": true, "there": true, "their": true, "too": true,
	"much": true, "many": true, "often": true, "every": true, "plant": true, "plan": true,
}

// terms lowercases s, splits on non-alphanumerics, drops short words and
// stopwords, and strips a trailing plural "s".
func terms(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			w = strings.TrimSuffix(w, "s")
		}
		out[w] = true
	}
	return out
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}
