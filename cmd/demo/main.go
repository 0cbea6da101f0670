package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ventureos-labs/ventureos-go/internal/pipeline"
)

type apiClient struct {
	baseURL   string
	token     string
	requestID string
	http      *http.Client
}

func newAPIClient(baseURL, token, requestID string) *apiClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &apiClient{
		baseURL:   baseURL,
		token:     strings.TrimSpace(token),
		requestID: strings.TrimSpace(requestID),
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(req *http.Request) ([]byte, error) {
	if c.requestID != "" {
		req.Header.Set("X-Request-Id", c.requestID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, fmt.Errorf("http %s %s: status=%d body=%s", req.Method, req.URL.String(), resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *apiClient) getJSON(path string, out any) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	body, err := c.do(req)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *apiClient) postJSON(path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	body, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

type runInfo struct {
	RunID          string `json:"run_id"`
	Status         string `json:"status"`
	CurrentStepKey string `json:"current_step_key"`
}

type stepInfo struct {
	StepID  string `json:"step_id"`
	StepKey string `json:"step_key"`
	Status  string `json:"status"`
}

type approvalInfo struct {
	ApprovalID     string `json:"approval_id"`
	CheckpointType string `json:"checkpoint_type"`
	Status         string `json:"status"`
}

type canExecuteInfo struct {
	CanExecute bool   `json:"can_execute"`
	Reason     string `json:"reason"`
}

type collectedSource struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type collectResult struct {
	Provider string            `json:"provider"`
	Sources  []collectedSource `json:"sources"`
}

type verdictInfo struct {
	Allowed      bool     `json:"allowed"`
	ReasonCodes  []string `json:"reason_codes"`
	WarningCodes []string `json:"warning_codes"`
}

type exportInfo struct {
	ObjectKey string `json:"object_key"`
	Records   int    `json:"records"`
}

type auditList struct {
	Records []struct {
		Action string `json:"action"`
	} `json:"records"`
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func main() {
	now := time.Now().UTC()
	defaultRequestID := fmt.Sprintf("demo-%s", now.Format("20060102T150405Z"))

	var (
		baseURL   = flag.String("orchestrator", envOr("VENTUREOS_ORCHESTRATOR_URL", "http://localhost:8080"), "Orchestrator base URL")
		token     = flag.String("token", envOr("VENTUREOS_BEARER_TOKEN", ""), "Bearer token (optional; required for OIDC mode)")
		requestID = flag.String("request-id", envOr("VENTUREOS_DEMO_REQUEST_ID", defaultRequestID), "X-Request-Id for correlation")
		niche     = flag.String("niche", envOr("VENTUREOS_DEMO_NICHE", "pet supplements"), "Venture niche to evaluate")
		collect   = flag.Bool("collect", false, "Collect live research sources (network access required)")
	)
	flag.Parse()

	client := newAPIClient(*baseURL, *token, *requestID)

	fmt.Printf("==> ventureos demo (orchestrator=%s, request_id=%s)\n", client.baseURL, client.requestID)

	// 1) Create a run
	var run runInfo
	if err := client.postJSON("/runs", map[string]any{
		"niche":        *niche,
		"geo":          "IT",
		"language":     "it",
		"capabilities": "hybrid",
		"constraints":  []string{"no paid ads in month one"},
	}, &run); err != nil {
		die("create run", err)
	}
	fmt.Printf("==> created run: %s (status=%s, step=%s)\n", run.RunID, run.Status, run.CurrentStepKey)

	// 2) Lock working assumptions before the pipeline advances
	if err := client.postJSON(fmt.Sprintf("/runs/%s/lock-assumptions", run.RunID), map[string]any{
		"assumptions": map[string]any{
			"budget_eur_month": 500,
			"team_size":        1,
			"time_horizon":     "90d",
		},
	}, nil); err != nil {
		die("lock assumptions", err)
	}
	fmt.Println("==> locked assumptions")

	// 3) Research batch, live or canned
	sources := []map[string]string{
		{"url": "https://www.reddit.com/r/supplements/", "snippet": "owners compare joint supplements for senior dogs"},
		{"url": "https://www.trustpilot.com/categories/pet_store", "snippet": "reviews mention unclear dosage instructions"},
	}
	if *collect {
		var collected collectResult
		if err := client.postJSON("/research/collect", map[string]any{
			"niche":       *niche,
			"geo":         "IT",
			"language":    "it",
			"max_sources": 8,
		}, &collected); err != nil {
			die("collect research", err)
		}
		fmt.Printf("==> collected %d sources via %s\n", len(collected.Sources), collected.Provider)
		sources = sources[:0]
		for _, src := range collected.Sources {
			sources = append(sources, map[string]string{"url": src.URL, "snippet": src.Snippet})
		}
	}

	var verdict verdictInfo
	if err := client.postJSON(fmt.Sprintf("/runs/%s/research/evaluate", run.RunID), map[string]any{
		"sources":            sources,
		"estimated_tokens":   40000,
		"estimated_cost_usd": 1.5,
		"enforce_stop":       false,
	}, &verdict); err != nil {
		die("evaluate research", err)
	}
	fmt.Printf("==> research verdict: allowed=%t reasons=%v warnings=%v\n", verdict.Allowed, verdict.ReasonCodes, verdict.WarningCodes)

	// 4) Walk the full topology, approving each checkpoint as it lands
	for _, stepKey := range pipeline.OrderedStepKeys() {
		var gate canExecuteInfo
		if err := client.getJSON(fmt.Sprintf("/runs/%s/steps/%s/can-execute", run.RunID, stepKey), &gate); err != nil {
			die("check gate for "+stepKey, err)
		}
		if !gate.CanExecute {
			die("gate closed for "+stepKey, fmt.Errorf("%s", gate.Reason))
		}

		produces, _ := pipeline.ProducedCheckpoint(stepKey)
		outcome := "completed"
		if produces != "" {
			outcome = "needs_approval"
		}

		var step stepInfo
		if err := client.postJSON(fmt.Sprintf("/runs/%s/steps/%s/output", run.RunID, stepKey), map[string]any{
			"status": outcome,
			"output": map[string]any{"summary": "demo output for " + stepKey},
		}, &step); err != nil {
			die("record output for "+stepKey, err)
		}
		fmt.Printf("==> %s: %s\n", stepKey, step.Status)

		if produces == "" {
			continue
		}

		var approval approvalInfo
		if err := client.postJSON(fmt.Sprintf("/runs/%s/approvals", run.RunID), map[string]any{
			"step_key":        stepKey,
			"checkpoint_type": produces,
			"payload":         map[string]any{"source": "demo"},
		}, &approval); err != nil {
			die("request approval for "+produces, err)
		}
		if err := client.postJSON(fmt.Sprintf("/approvals/%s/decision", approval.ApprovalID), map[string]any{
			"decision": "approved",
			"note":     "demo auto-approval",
		}, &approval); err != nil {
			die("approve "+produces, err)
		}
		fmt.Printf("==> checkpoint %s: %s\n", approval.CheckpointType, approval.Status)
	}

	// 5) Score one idea and file the execution plan artifact
	if err := client.postJSON(fmt.Sprintf("/runs/%s/scores", run.RunID), map[string]any{
		"idea_key":       "senior-dog-joint-kit",
		"rubric_version": "v1",
		"overall_score":  7.8,
		"dimensions":     map[string]any{"demand": 8, "competition": 6, "feasibility": 9},
	}, nil); err != nil {
		die("record score", err)
	}
	if err := client.postJSON(fmt.Sprintf("/runs/%s/artifacts", run.RunID), map[string]any{
		"step_key":      pipeline.StepExecutionPlanner,
		"artifact_type": "execution_plan",
		"format":        "markdown",
		"title":         "Demo execution plan",
		"content":       "# Execution plan\n\nDemo plan body.\n",
	}, nil); err != nil {
		die("create artifact", err)
	}
	fmt.Println("==> recorded score and execution plan artifact")

	// 6) Close the run and snapshot its audit trail
	if err := client.postJSON(fmt.Sprintf("/runs/%s/complete", run.RunID), map[string]any{
		"status": "completed",
	}, nil); err != nil {
		die("complete run", err)
	}

	var trail auditList
	if err := client.getJSON(fmt.Sprintf("/runs/%s/audit?limit=200", run.RunID), &trail); err != nil {
		die("fetch audit trail", err)
	}
	var export exportInfo
	if err := client.postJSON(fmt.Sprintf("/runs/%s/audit/export", run.RunID), map[string]any{}, &export); err != nil {
		die("export audit trail", err)
	}
	fmt.Printf("==> run completed: audit records=%d export=%s (%d records)\n", len(trail.Records), export.ObjectKey, export.Records)
}

func die(step string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", step, err)
	os.Exit(1)
}
