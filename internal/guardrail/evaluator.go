package guardrail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ventureos-labs/ventureos-go/internal/domain"
	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

// Reason and warning codes, accumulated in evaluation order. Codes are
// independent; one batch can carry several.
const (
	ReasonInvalidSourceURL  = "INVALID_SOURCE_URL"
	ReasonSourcePolicyBlock = "SOURCE_POLICY_BLOCK"
	ReasonSourceCountLimit  = "SOURCE_COUNT_LIMIT"
	ReasonTokenBudget       = "TOKEN_BUDGET_EXCEEDED"
	ReasonCostBudget        = "COST_BUDGET_EXCEEDED"
	ReasonSensitiveClaim    = "SENSITIVE_CLAIM_DETECTED"

	WarningAllowlistMiss = "SOURCE_ALLOWLIST_MISS"
)

// auditSampleCap bounds the redacted source sample stored with each
// evaluation record.
const auditSampleCap = 10

var sensitiveClaimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdiagnosi\b`),
	regexp.MustCompile(`(?i)\bterapia\b`),
	regexp.MustCompile(`(?i)\bcura\b`),
	regexp.MustCompile(`(?i)\bfarmaco\b`),
	regexp.MustCompile(`(?i)\bmedical advice\b`),
	regexp.MustCompile(`(?i)\bguaranteed results?\b`),
	regexp.MustCompile(`(?i)\brisultat[oi] garantit[oi]\b`),
}

// Sensitive-claim scanning only activates for regulated niches;
// unconditional scanning over-blocks unrelated verticals.
var regulatedNicheTerms = []string{
	"health", "medical", "medico", "salute",
	"finance", "finanza", "investment", "investimenti",
	"legal", "legale", "insurance", "assicurazioni",
}

// Source is one candidate research source.
type Source struct {
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// BatchInput describes one batch to evaluate.
type BatchInput struct {
	RunID            string
	Sources          []Source
	EstimatedTokens  int
	EstimatedCostUsd float64
	// EnforceStop blocks the run and raises a risk flag on a failed
	// verdict. Advisory callers set it false.
	EnforceStop bool
}

// ActorInfo attributes the evaluation in the audit trail.
type ActorInfo struct {
	Actor     string
	RequestID string
	UserAgent string
	IP        net.IP
}

// Verdict is the evaluation outcome. Allowed is true iff no reason
// code accumulated; warnings never block.
type Verdict struct {
	Allowed       bool
	ReasonCodes   []string
	WarningCodes  []string
	UniqueDomains []string
	Policy        EffectivePolicy
}

// Evaluator scores research batches inside one storage transaction per
// call.
type Evaluator struct {
	store repo.Store
}

func NewEvaluator(store repo.Store) *Evaluator {
	if store == nil {
		return nil
	}
	return &Evaluator{store: store}
}

// Evaluate scores the batch against the run's effective policy. Rules
// accumulate without short-circuiting so a caller sees every violation
// at once. Whatever the outcome, exactly one audit record is written.
func (e *Evaluator) Evaluate(ctx context.Context, info ActorInfo, input BatchInput) (Verdict, error) {
	if e == nil || e.store == nil {
		return Verdict{}, errors.New("guardrail evaluator not initialized")
	}
	actor := strings.TrimSpace(info.Actor)
	if actor == "" {
		return Verdict{}, errors.New("actor is required")
	}

	var verdict Verdict
	err := e.store.WithinTx(ctx, func(tx repo.Tx) error {
		run, err := tx.Runs().GetForUpdate(ctx, input.RunID)
		if err != nil {
			return err
		}
		policy, err := resolveWith(ctx, tx.Guardrails(), input.RunID)
		if err != nil {
			return err
		}

		result := scoreBatch(run, policy, input)
		blocked := len(result.reasonCodes) > 0

		if blocked && input.EnforceStop {
			if err := tx.Runs().UpdateStatus(ctx, input.RunID, domain.RunStatusBlocked, nil); err != nil {
				return err
			}
			now := time.Now().UTC()
			flag := domain.RiskFlag{
				ID:          uuid.NewString(),
				RunID:       input.RunID,
				Scope:       domain.RiskScopeClaims,
				Severity:    domain.RiskSeverityHardStop,
				Title:       "Research compliance hard stop",
				Description: "Research batch blocked: " + strings.Join(result.reasonCodes, ", "),
				Mitigation:  "Adjust sources/claims/budget and rerun compliance check.",
				Status:      domain.RiskStatusOpen,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Risks().Create(ctx, flag); err != nil {
				return err
			}
		}

		action := "research_batch.allowed"
		if blocked {
			action = "research_batch.blocked"
		}
		_, err = tx.Audit().Append(ctx, domain.AuditRecord{
			OccurredAt: time.Now().UTC(),
			Actor:      actor,
			Action:     action,
			EntityType: "research_batch",
			EntityID:   fmt.Sprintf("research:%s:%d", input.RunID, time.Now().UnixMilli()),
			RunID:      input.RunID,
			RequestID:  info.RequestID,
			IP:         info.IP,
			UserAgent:  info.UserAgent,
			Details: domain.Metadata{
				"reason_codes":        result.reasonCodes,
				"warning_codes":       result.warningCodes,
				"source_count":        len(input.Sources),
				"unique_domain_count": len(result.uniqueDomains),
				"estimated_tokens":    input.EstimatedTokens,
				"estimated_cost_usd":  input.EstimatedCostUsd,
				"blocked_domains":     result.blockedDomains,
				"non_allowed_domains": result.nonAllowedDomains,
				"sample_sources":      sampleSources(input.Sources, policy.RedactPII),
			},
		})
		if err != nil {
			return err
		}

		verdict = Verdict{
			Allowed:       !blocked,
			ReasonCodes:   result.reasonCodes,
			WarningCodes:  result.warningCodes,
			UniqueDomains: result.uniqueDomains,
			Policy:        policy,
		}
		return nil
	})
	if err != nil {
		return Verdict{}, err
	}
	return verdict, nil
}

type batchScore struct {
	reasonCodes       []string
	warningCodes      []string
	uniqueDomains     []string
	blockedDomains    []string
	nonAllowedDomains []string
}

func scoreBatch(run domain.Run, policy EffectivePolicy, input BatchInput) batchScore {
	var score batchScore
	allowed := normalizeHostSet(policy.AllowDomains)
	blocked := normalizeHostSet(policy.BlockDomains)

	seen := make(map[string]struct{})
	invalidURLs := 0
	for _, source := range input.Sources {
		host, ok := NormalizeHost(source.URL)
		if !ok {
			invalidURLs++
			continue
		}
		if _, dup := seen[host]; !dup {
			seen[host] = struct{}{}
			score.uniqueDomains = append(score.uniqueDomains, host)
		}
		if _, hit := blocked[host]; hit {
			score.blockedDomains = appendUnique(score.blockedDomains, host)
		}
		if len(allowed) > 0 {
			if _, hit := allowed[host]; !hit {
				score.nonAllowedDomains = appendUnique(score.nonAllowedDomains, host)
			}
		}
	}

	if invalidURLs > 0 {
		score.reasonCodes = append(score.reasonCodes, ReasonInvalidSourceURL)
	}
	if len(score.blockedDomains) > 0 {
		score.reasonCodes = append(score.reasonCodes, ReasonSourcePolicyBlock)
	}
	if len(score.nonAllowedDomains) > 0 {
		score.warningCodes = append(score.warningCodes, WarningAllowlistMiss)
	}
	if len(input.Sources) > policy.MaxSourcesPerBatch {
		score.reasonCodes = append(score.reasonCodes, ReasonSourceCountLimit)
	}
	if input.EstimatedTokens > policy.MaxTokenBudgetPerBatch {
		score.reasonCodes = append(score.reasonCodes, ReasonTokenBudget)
	}
	if input.EstimatedCostUsd > policy.MaxCostUsdPerBatch {
		score.reasonCodes = append(score.reasonCodes, ReasonCostBudget)
	}
	if isRegulatedNiche(run.Niche) && hasSensitiveClaim(input.Sources) {
		score.reasonCodes = append(score.reasonCodes, ReasonSensitiveClaim)
	}
	return score
}

func isRegulatedNiche(niche string) bool {
	text := strings.ToLower(niche)
	for _, term := range regulatedNicheTerms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func hasSensitiveClaim(sources []Source) bool {
	for _, source := range sources {
		for _, pattern := range sensitiveClaimPatterns {
			if pattern.MatchString(source.Snippet) {
				return true
			}
		}
	}
	return false
}

func sampleSources(sources []Source, redact bool) []map[string]string {
	n := len(sources)
	if n > auditSampleCap {
		n = auditSampleCap
	}
	sample := make([]map[string]string, 0, n)
	for _, source := range sources[:n] {
		snippet := source.Snippet
		if redact {
			snippet = RedactPII(snippet)
		}
		sample = append(sample, map[string]string{"url": source.URL, "snippet": snippet})
	}
	return sample
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
