// Package pipeline holds the static venture-evaluation step topology:
// the ordered step-key list and the checkpoint gates between stages.
package pipeline

import "github.com/ventureos-labs/ventureos-go/internal/domain"

// Step keys in pipeline order. The topology is a linear list, not a
// branching DAG.
const (
	StepNicheIntake      = "A1_NICHE_INTAKE"
	StepMarketSignals    = "A2_MARKET_SIGNALS"
	StepVoiceOfCustomer  = "A3_VOC"
	StepTriggerMap       = "A4_TRIGGER_MAP"
	StepIdeaGen          = "A5_IDEA_GEN"
	StepScoring          = "A6_SCORING"
	StepPnlKpi           = "A7_PNL_KPI"
	StepRiskCompliance   = "A8_RISK_COMPLIANCE"
	StepPlatformFit      = "S1_PLATFORM_FIT"
	StepContentStrategy  = "S2_CONTENT_STRATEGY"
	StepCalendar30Day    = "S3_30D_CALENDAR"
	StepScriptCopy       = "S4_SCRIPT_COPY"
	StepCreativePrompts  = "S5_CREATIVE_PROMPTS"
	StepSocialQA         = "S6_SOCIAL_QA"
	StepExecutionPlanner = "A9_EXECUTION_PLANNER"
)

var orderedStepKeys = []string{
	StepNicheIntake,
	StepMarketSignals,
	StepVoiceOfCustomer,
	StepTriggerMap,
	StepIdeaGen,
	StepScoring,
	StepPnlKpi,
	StepRiskCompliance,
	StepPlatformFit,
	StepContentStrategy,
	StepCalendar30Day,
	StepScriptCopy,
	StepCreativePrompts,
	StepSocialQA,
	StepExecutionPlanner,
}

// gate pins each step to the checkpoint it needs before executing and
// the checkpoint its output is reviewed under, if any.
type gate struct {
	requires string
	produces string
}

var gates = map[string]gate{
	StepNicheIntake:      {produces: domain.CheckpointNicheBrief},
	StepMarketSignals:    {requires: domain.CheckpointNicheBrief},
	StepVoiceOfCustomer:  {requires: domain.CheckpointNicheBrief},
	StepTriggerMap:       {requires: domain.CheckpointNicheBrief, produces: domain.CheckpointTriggerMap},
	StepIdeaGen:          {requires: domain.CheckpointTriggerMap},
	StepScoring:          {requires: domain.CheckpointTriggerMap, produces: domain.CheckpointShortlist},
	StepPnlKpi:           {requires: domain.CheckpointShortlist},
	StepRiskCompliance:   {requires: domain.CheckpointShortlist, produces: domain.CheckpointPnlRiskGoNoGo},
	StepPlatformFit:      {requires: domain.CheckpointPnlRiskGoNoGo},
	StepContentStrategy:  {requires: domain.CheckpointPnlRiskGoNoGo},
	StepCalendar30Day:    {requires: domain.CheckpointPnlRiskGoNoGo},
	StepScriptCopy:       {requires: domain.CheckpointPnlRiskGoNoGo},
	StepCreativePrompts:  {requires: domain.CheckpointPnlRiskGoNoGo},
	StepSocialQA:         {requires: domain.CheckpointPnlRiskGoNoGo, produces: domain.CheckpointSocialPackFinal},
	StepExecutionPlanner: {requires: domain.CheckpointSocialPackFinal},
}

// OrderedStepKeys returns the pipeline step keys in execution order.
func OrderedStepKeys() []string {
	out := make([]string, len(orderedStepKeys))
	copy(out, orderedStepKeys)
	return out
}

// IsKnownStepKey reports whether the key belongs to the topology.
func IsKnownStepKey(stepKey string) bool {
	_, ok := gates[stepKey]
	return ok
}

// RequiredCheckpoint returns the checkpoint type that must hold an
// approved record before the step may execute, or "" when the step is
// ungated.
func RequiredCheckpoint(stepKey string) (string, bool) {
	g, ok := gates[stepKey]
	if !ok {
		return "", false
	}
	return g.requires, true
}

// ProducedCheckpoint returns the checkpoint type a step's output is
// reviewed under, or "" when the step produces no checkpoint.
func ProducedCheckpoint(stepKey string) (string, bool) {
	g, ok := gates[stepKey]
	if !ok {
		return "", false
	}
	return g.produces, true
}

// FirstStepKey returns the entry step of the topology.
func FirstStepKey() string {
	return orderedStepKeys[0]
}
