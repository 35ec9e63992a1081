package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/ragrouter/config"
	"github.com/mohammad-safakhou/ragrouter/internal/agent/telemetry"
	"github.com/mohammad-safakhou/ragrouter/models"
	"github.com/mohammad-safakhou/ragrouter/tools/attachments"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrEmptyQuery is returned for a query with no text.
var ErrEmptyQuery = errors.New("query is empty")

// AttachmentsUnavailableAnswer is returned when files are supplied but no
// attachment parser is configured.
const AttachmentsUnavailableAnswer = "The attached files could not be processed: attachment handling is not available."

var errAttachmentsUnavailable = errors.New("attachment parser not configured")

const (
	fastPathReasoning               = "Simple question - answered directly using LLM knowledge"
	timeReasoning                   = "time query answered by the time tool"
	attachmentsUnavailableReasoning = "attached files supplied but attachment handling is unavailable"
)

var progressByTool = map[models.SourceID]string{
	models.SourceFinance:   "Fetching finance data...",
	models.SourceWeather:   "Fetching weather data...",
	models.SourceTransport: "Fetching transport data...",
	models.SourceTime:      "Fetching time data...",
}

var orchestratorTracer trace.Tracer = otel.Tracer("ragrouter/internal/agent/orchestrator")

// ProgressFunc receives human-readable stage names while a query runs.
type ProgressFunc func(stage string)

type executeOptions struct {
	progress ProgressFunc
}

// ExecuteOption customizes a single Execute call.
type ExecuteOption func(*executeOptions)

// WithProgress reports stage transitions to fn.
func WithProgress(fn ProgressFunc) ExecuteOption {
	return func(o *executeOptions) { o.progress = fn }
}

// Components are the collaborators an Orchestrator drives. Retriever,
// Attachments and Telemetry may be nil.
type Components struct {
	Analyzer    *QueryAnalyzer
	Normalizer  *LocationNormalizer
	FastPath    *FastPathDetector
	Router      *SourceRouter
	Features    *Features
	Executor    *ToolExecutor
	Aggregator  *ContextAggregator
	Retriever   Retriever
	Attachments AttachmentParser
	Synthesizer Synthesizer
	Telemetry   *telemetry.Telemetry
}

// Orchestrator runs the query pipeline: attachments, analysis, fast path,
// routing, retrieval and tools, web fallback, sufficiency, synthesis.
type Orchestrator struct {
	c      Components
	cfg    config.EngineConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewOrchestrator(c Components, cfg config.EngineConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c.Normalizer == nil {
		c.Normalizer = NewLocationNormalizer()
	}
	if c.FastPath == nil {
		c.FastPath = NewFastPathDetector()
	}
	if c.Features == nil {
		c.Features = NewFeatures()
	}
	if c.Aggregator == nil {
		c.Aggregator = NewContextAggregator(nil, cfg, c.Telemetry, logger)
	}
	if c.Synthesizer == nil {
		c.Synthesizer = NewLLMSynthesizer(nil, nil, logger)
	}
	return &Orchestrator{c: c, cfg: cfg.Normalize(), logger: logger.Named("orchestrator"), now: time.Now}
}

// Execute answers one query. Collaborator failures are folded into the
// result; only an empty query or a canceled context return an error.
func (o *Orchestrator) Execute(ctx context.Context, q Query, opts ...ExecuteOption) (WorkflowResult, error) {
	var eo executeOptions
	for _, opt := range opts {
		opt(&eo)
	}
	progress := func(stage string) {
		if eo.progress != nil {
			eo.progress(stage)
		}
	}

	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return WorkflowResult{}, ErrEmptyQuery
	}

	start := o.now()
	res := WorkflowResult{
		ID:          uuid.New().String(),
		Query:       q.Text,
		SourcesUsed: []models.SourceID{},
		ToolResults: map[models.SourceID]models.ToolResult{},
		FailedTools: []models.SourceID{},
		Citations:   []string{},
	}
	ctx, span := orchestratorTracer.Start(ctx, "agent.execute",
		trace.WithAttributes(
			attribute.String("query.id", res.ID),
			attribute.Bool("query.strict_local", q.StrictLocal),
			attribute.Bool("query.fast_mode", q.FastMode),
			attribute.Int("query.files", len(q.Files)),
		))
	defer span.End()
	log := o.logger.With(zap.String("query_id", res.ID))

	finish := func(outcome telemetry.Outcome) (WorkflowResult, error) {
		end := o.now()
		res.Timestamp = end.UTC()
		res.LatencyMS = end.Sub(start).Milliseconds()
		if err := ctx.Err(); err != nil {
			outcome = telemetry.OutcomeCanceled
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(
			attribute.String("query.outcome", string(outcome)),
			attribute.StringSlice("query.sources_used", sourceStrings(res.SourcesUsed)),
			attribute.Int("query.context_count", res.ContextCount),
		)
		o.c.Telemetry.RecordProcessingEvent(ctx, telemetry.ProcessingEvent{
			ID:             res.ID,
			Query:          res.Query,
			Outcome:        outcome,
			ProcessingTime: end.Sub(start),
			SourcesUsed:    sourceStrings(res.SourcesUsed),
			FailedSources:  sourceStrings(res.FailedTools),
		})
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("execute query: %w", err)
		}
		return res, nil
	}

	if len(q.Files) > 0 {
		if o.c.Attachments == nil {
			log.Warn("attachments supplied without a parser", zap.Int("files", len(q.Files)))
			res.Answer = AttachmentsUnavailableAnswer
			res.Routing = RoutingDecision{Sources: []models.SourceID{models.SourceAttachments}, Reasoning: attachmentsUnavailableReasoning, Query: q.Text}
			res.ToolResults[models.SourceAttachments] = models.Failure(models.SourceAttachments, errAttachmentsUnavailable)
			res.FailedTools = append(res.FailedTools, models.SourceAttachments)
			res.Attachments = true
			res.Answerability = AnswerabilityInsufficient
			return finish(telemetry.OutcomeAttachments)
		}
		o.answerWithAttachments(ctx, q, &res, progress, log)
		return finish(telemetry.OutcomeAttachments)
	}

	progress("Analyzing query...")
	analysis := o.c.Analyzer.Analyze(ctx, q.Text)
	analysis = o.c.Normalizer.NormalizeQuery(analysis, q.Text)
	res.Analysis = &analysis
	if analysis.Err != "" {
		log.Info("analysis degraded to defaults", zap.String("error", analysis.Err))
	}

	lang := o.answerLanguage(q.Text, analysis)

	if !q.StrictLocal && fastPathEligible(analysis) && o.c.FastPath.IsSimple(q.Text) {
		progress("Generating answer (fast path)...")
		res.Routing = RoutingDecision{Sources: []models.SourceID{}, Reasoning: fastPathReasoning, Query: q.Text}
		res.Answer = o.c.Synthesizer.AnswerDirect(ctx, q.Text, lang)
		res.FastPath = true
		res.Answerability = Answerable
		return finish(telemetry.OutcomeFastPath)
	}

	run := newToolRun()
	var decision RoutingDecision
	timeAnswered := false
	if !q.StrictLocal && o.c.Features.IsTimeQuery(q.Text) && o.c.Executor != nil {
		progress(progressByTool[models.SourceTime])
		run = o.c.Executor.RunTime(ctx, res.ID, q.Text, analysis)
		if run.Succeeded() {
			timeAnswered = true
			decision = RoutingDecision{Sources: []models.SourceID{models.SourceTime}, Reasoning: timeReasoning, Query: q.Text}
		}
	}
	if !timeAnswered {
		progress("Routing query...")
		decision = o.c.Router.Route(ctx, q.Text, q.StrictLocal)
	}
	log.Debug("routing decided", zap.Strings("sources", sourceStrings(decision.Sources)), zap.String("reasoning", decision.Reasoning))

	var items []ContextItem
	kbDocs := 0
	if decision.Has(models.SourceLocalKB) && o.c.Retriever != nil {
		progress("Retrieving from knowledge base...")
		kbItems, kbRes := o.retrieve(ctx, res.ID, q.Text, log)
		res.ToolResults[models.SourceLocalKB] = kbRes
		kbDocs = len(kbItems)
		items = append(items, kbItems...)
	}

	if !q.StrictLocal {
		if !timeAnswered && o.c.Executor != nil {
			for _, id := range toolOrder {
				if decision.Has(id) {
					if _, done := run.Results[id]; !done {
						progress(progressByTool[id])
					}
				}
			}
			run.merge(o.c.Executor.Run(ctx, res.ID, decision, q.Text, analysis, run))
		}
		for _, id := range run.Order {
			res.ToolResults[id] = run.Results[id]
		}
		res.FailedTools = append(res.FailedTools, run.Failed...)
		res.Fallbacks = run.Fallbacks
		items = append(items, o.c.Aggregator.ToolItems(run)...)

		if !timeAnswered && o.c.Aggregator.ShouldSearchWeb(q.FastMode, decision, len(res.FailedTools), kbDocs, items) {
			progress("Searching the web...")
			webItems, webRes := o.c.Aggregator.SearchWeb(ctx, res.ID, q.Text, analysis)
			res.ToolResults[models.SourceWebSearch] = webRes
			if !webRes.OK() {
				log.Warn("web search failed", zap.String("error", webRes.Error))
			}
			items = append(items, webItems...)
			decision.add(models.SourceWebSearch)
		}
	}
	res.Routing = decision

	if !o.c.Aggregator.Meaningful(items) {
		res.Answer = RefusalAnswer
		res.Answerability = AnswerabilityInsufficient
		log.Info("insufficient context", zap.Int("items", len(items)))
		return finish(telemetry.OutcomeInsufficient)
	}

	evidence := items
	if len(evidence) > o.cfg.EvidenceLimit {
		evidence = evidence[:o.cfg.EvidenceLimit]
	}
	res.Citations = BuildCitations(evidence, o.cfg.EvidenceLimit)
	res.Grounding = DecideGrounding(decision.Sources)

	progress("Generating answer...")
	res.Answer = o.c.Synthesizer.Synthesize(ctx, SynthesisRequest{
		Query:     q.Text,
		Evidence:  evidence,
		Citations: res.Citations,
		Mode:      res.Grounding,
		Language:  lang,
	})
	res.SourcesUsed = SourcesOf(evidence)
	res.ContextCount = len(items)
	res.Answerability = Answerable
	return finish(telemetry.OutcomeAnswered)
}

func (o *Orchestrator) answerWithAttachments(ctx context.Context, q Query, res *WorkflowResult, progress ProgressFunc, log *zap.Logger) {
	progress("Parsing attachments...")
	atts, err := o.c.Attachments.Parse(ctx, q.Files)
	if err != nil {
		log.Warn("attachment parsing stopped", zap.Error(err))
	}
	progress("Generating answer with attachments...")
	lang := o.c.FastPath.DetectLanguage(q.Text)
	res.Answer = o.c.Synthesizer.AnswerWithAttachments(ctx, q.Text, attachments.Render(atts), lang)
	res.Routing = RoutingDecision{
		Sources:   []models.SourceID{models.SourceAttachments},
		Reasoning: fmt.Sprintf("Direct LLM processing with %d attached file(s)", len(q.Files)),
		Query:     q.Text,
	}
	res.ToolResults[models.SourceAttachments] = models.Success(models.SourceAttachments, atts)
	res.SourcesUsed = []models.SourceID{models.SourceAttachments}
	res.ContextCount = len(atts)
	res.Attachments = true
	res.Answerability = Answerable
}

func (o *Orchestrator) retrieve(ctx context.Context, queryID, query string, log *zap.Logger) ([]ContextItem, models.ToolResult) {
	start := time.Now()
	hits, err := o.c.Retriever.Retrieve(ctx, query)
	o.c.Telemetry.RecordSourceEvent(ctx, telemetry.SourceEvent{
		ID:       queryID,
		Source:   string(models.SourceLocalKB),
		Duration: time.Since(start),
		Success:  err == nil,
		Error:    errString(err),
		Results:  len(hits),
	})
	if err != nil {
		log.Warn("knowledge base retrieval failed", zap.Error(err))
		return nil, models.Failure(models.SourceLocalKB, err)
	}
	return o.c.Aggregator.KBItems(hits), models.Success(models.SourceLocalKB, KBPayload{Count: len(hits), Docs: hits})
}

// fastPathEligible rejects analyses that point at local or specialised
// knowledge; those go through routing even when phrased simply.
func fastPathEligible(a QueryAnalysis) bool {
	if a.IsRegionQuery {
		return false
	}
	switch a.Domain {
	case DomainHKLocal, DomainHistory, DomainCuisine, DomainWeather, DomainFinance, DomainTransport:
		return false
	}
	return true
}

// answerLanguage prefers the detector's verdict when the query carries
// CJK text and otherwise trusts the analysis.
func (o *Orchestrator) answerLanguage(query string, analysis QueryAnalysis) Language {
	if detected := o.c.FastPath.DetectLanguage(query); detected != LanguageEN {
		return detected
	}
	if analysis.Err == "" && analysis.Language != "" {
		return analysis.Language
	}
	return LanguageEN
}

// SourcesOf lists the distinct sources carried by items, sorted.
func SourcesOf(items []ContextItem) []models.SourceID {
	seen := map[models.SourceID]bool{}
	out := []models.SourceID{}
	for _, it := range items {
		if !seen[it.Source] {
			seen[it.Source] = true
			out = append(out, it.Source)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sourceStrings(ids []models.SourceID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
