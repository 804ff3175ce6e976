package domain

// MatchStatus is the outcome of a reconciliation attempt.
type MatchStatus string

const (
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusAmbiguous MatchStatus = "ambiguous"
	MatchStatusUnmatched MatchStatus = "unmatched"
)

// MatchMethod explains which branch of the decision procedure produced a status.
type MatchMethod string

const (
	MethodNoAmount        MatchMethod = "no_amount"
	MethodNoDate          MatchMethod = "no_date"
	MethodStrongID        MatchMethod = "strong_id"
	MethodNoCandidates    MatchMethod = "no_candidates"
	MethodSingleCandidate MatchMethod = "single_candidate"
	MethodLowScore        MatchMethod = "low_score"
	MethodGap             MatchMethod = "gap"
	MethodTiebreak        MatchMethod = "tiebreak"
	MethodNeedsReview     MatchMethod = "needs_review"
	MethodDefault         MatchMethod = "default"
	MethodExactTaxID      MatchMethod = "exact_tax_id"
	MethodScored          MatchMethod = "scored"
)

// Candidate is one ranked alternative considered during matching.
type Candidate struct {
	ID           string         `json:"id"`
	Score        int            `json:"score"`
	SubScores    map[string]int `json:"sub_scores,omitempty"`
	EvidenceRank int            `json:"evidence_rank"`
	Reasons      []string       `json:"reasons"`
}

// MatchResult is the immutable outcome of the sale matcher or the
// counterparty resolver. ID is empty unless Status is matched, and
// Candidates is never nil.
type MatchResult struct {
	ID          string      `json:"id,omitempty"`
	Score       int         `json:"score"`
	Status      MatchStatus `json:"status"`
	Method      MatchMethod `json:"method"`
	NeedsReview bool        `json:"needs_review"`
	Candidates  []Candidate `json:"candidates"`
}

// IsMatched reports whether the result carries a usable match.
func (r MatchResult) IsMatched() bool {
	return r.Status == MatchStatusMatched && r.ID != ""
}
