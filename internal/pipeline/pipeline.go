// Package pipeline sequences a generation run: read sources, assemble the
// prompt, call the model, extract the test source, write it, and, when
// verification is requested, run the consumer tests and verify the
// provider against the produced contract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/drpact/pactgen/internal/artifact"
	"github.com/drpact/pactgen/internal/backend"
	"github.com/drpact/pactgen/internal/config"
	"github.com/drpact/pactgen/internal/consumer"
	"github.com/drpact/pactgen/internal/domain"
	"github.com/drpact/pactgen/internal/extract"
	"github.com/drpact/pactgen/internal/prompt"
	"github.com/drpact/pactgen/internal/source"
	"github.com/drpact/pactgen/internal/telemetry"
	"github.com/drpact/pactgen/internal/verifier"
)

// Stage identifies one pipeline step.
type Stage string

const (
	StageIngest         Stage = "INGEST"
	StageAssemble       Stage = "ASSEMBLE"
	StageGenerate       Stage = "GENERATE"
	StageExtract        Stage = "EXTRACT"
	StageWrite          Stage = "WRITE"
	StageConsumerTest   Stage = "CONSUMER_TEST"
	StageProviderVerify Stage = "PROVIDER_VERIFY"
)

// Stable per-stage exit codes for scripting. 0 is full success.
var stageExitCodes = map[Stage]int{
	StageIngest:         2,
	StageAssemble:       3,
	StageGenerate:       4,
	StageExtract:        5,
	StageWrite:          6,
	StageConsumerTest:   7,
	StageProviderVerify: 9,
}

// exitContractMissing distinguishes "tests passed, no pact emitted" from a
// test failure.
const exitContractMissing = 8

// StageResult records the outcome of one stage. The orchestrator owns the
// run's ordered sequence; results are appended and never rewritten.
type StageResult struct {
	Stage     Stage
	Succeeded bool
	ExitCode  int
	Message   string
}

// Report is the aggregate outcome of one run.
type Report struct {
	Results  []StageResult
	ExitCode int

	// GeneratedSource is populated in dry-run mode instead of a file write.
	GeneratedSource string
}

// FailedStage returns the failing stage, if any.
func (r *Report) FailedStage() (Stage, bool) {
	for _, res := range r.Results {
		if !res.Succeeded {
			return res.Stage, true
		}
	}
	return "", false
}

// Options control one run.
type Options struct {
	// Backend is the backend name selected with --provider.
	Backend string

	// Verify enables the consumer-test and provider-verify stages.
	Verify bool

	// DryRun stops after extraction and reports the generated source
	// without touching the output file.
	DryRun bool
}

// Pipeline wires the stages together.
type Pipeline struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	caller    completer
	reader    *source.Reader
	assembler *prompt.Assembler
	extractor *extract.Extractor
	tracer    trace.Tracer
}

// completer is the slice of the backend caller the pipeline needs;
// narrowed for testing with canned responses.
type completer interface {
	Name() string
	Complete(ctx context.Context, p *domain.GenerationPrompt) (*domain.ModelResponse, error)
}

// New builds a pipeline from configuration. The backend is resolved once,
// here; no stage selects backends later.
func New(cfg *config.Config, opts Options, logger *slog.Logger) (*Pipeline, error) {
	backendCfg, err := cfg.BackendByName(opts.Backend)
	if err != nil {
		return nil, err
	}

	caller, err := backend.NewCaller(backendCfg, cfg.Timeouts.Model, logger)
	if err != nil {
		return nil, err
	}

	assembler, err := prompt.NewAssembler(cfg.Prompt.MaxTokens)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		caller: caller,
		reader: &source.Reader{
			ConsumerPath:    cfg.Paths.ConsumerSource,
			ProviderPath:    cfg.Paths.ProviderSource,
			TemplatePath:    cfg.Paths.PromptTemplate,
			DefaultTemplate: prompt.DefaultTemplate(),
		},
		assembler: assembler,
		extractor: &extract.Extractor{LanguageTags: cfg.Prompt.LanguageTags},
		tracer:    telemetry.Tracer("pactgen/pipeline"),
	}, nil
}

// Run executes the pipeline. Any stage failure terminates the run; no later
// stage executes. The returned report always carries a usable exit code.
func (p *Pipeline) Run(ctx context.Context) *Report {
	report := &Report{}

	req, ok := runStage(ctx, p, report, StageIngest, func(ctx context.Context) (*domain.GenerationRequest, error) {
		return p.reader.Load(p.opts.Backend)
	})
	if !ok {
		return report
	}
	if req.ProviderSource == "" {
		p.logger.Warn("no provider source found, using consumer-only analysis")
	}

	assembled, ok := runStage(ctx, p, report, StageAssemble, func(ctx context.Context) (*domain.GenerationPrompt, error) {
		return p.assembler.Assemble(req)
	})
	if !ok {
		return report
	}
	p.logger.Info("prompt assembled", slog.Int("tokens", assembled.TokenCount))

	resp, ok := runStage(ctx, p, report, StageGenerate, func(ctx context.Context) (*domain.ModelResponse, error) {
		return p.caller.Complete(ctx, assembled)
	})
	if !ok {
		return report
	}

	art, ok := runStage(ctx, p, report, StageExtract, func(ctx context.Context) (*extract.Artifact, error) {
		return p.extractor.Extract(resp.RawText)
	})
	if !ok {
		return report
	}

	lint := extract.Lint(art.Source)
	for _, f := range lint.Fixes {
		p.logger.Info("rewrote hallucinated pattern", slog.String("fix", f))
	}
	for _, w := range lint.Warnings {
		p.logger.Warn("suspicious pattern in generated test", slog.String("warning", w))
	}

	if p.opts.DryRun {
		report.GeneratedSource = lint.Source
		return report
	}

	_, ok = runStage(ctx, p, report, StageWrite, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, artifact.Write(p.cfg.Paths.GeneratedTest, []byte(lint.Source))
	})
	if !ok {
		return report
	}
	p.logger.Info("contract test written", slog.String("path", p.cfg.Paths.GeneratedTest))

	if !p.opts.Verify {
		// Skipping verification is not a failure.
		return report
	}

	runner := &consumer.Runner{
		Dir:          p.cfg.Consumer.Dir,
		Command:      p.cfg.Consumer.TestCommand,
		ContractPath: p.cfg.Paths.ContractFile,
		Timeout:      p.cfg.Timeouts.ConsumerTest,
		Logger:       p.logger,
	}
	_, ok = runStage(ctx, p, report, StageConsumerTest, func(ctx context.Context) (struct{}, error) {
		_, _, err := runner.Run(ctx)
		return struct{}{}, err
	})
	if !ok {
		return report
	}

	v := &verifier.Verifier{
		Dir:          p.cfg.Provider.Dir,
		Command:      p.cfg.Provider.VerifyCommand,
		ContractPath: p.cfg.Paths.ContractFile,
		ProviderURL:  p.cfg.Provider.BaseURL,
		Timeout:      p.cfg.Timeouts.ProviderVerify,
		Logger:       p.logger,
	}
	_, ok = runStage(ctx, p, report, StageProviderVerify, func(ctx context.Context) (struct{}, error) {
		_, err := v.Run(ctx)
		return struct{}{}, err
	})
	if !ok {
		return report
	}

	return report
}

// runStage executes one stage under a span, appends its result, and maps a
// failure to the report's exit code.
func runStage[T any](ctx context.Context, p *Pipeline, report *Report, stage Stage, fn func(context.Context) (T, error)) (T, bool) {
	spanCtx, span := p.tracer.Start(ctx, string(stage))
	defer span.End()

	out, err := fn(spanCtx)
	if err != nil {
		span.RecordError(err)
		report.Results = append(report.Results, StageResult{
			Stage:    stage,
			ExitCode: failureExitCode(stage, err),
			Message:  failureMessage(err),
		})
		report.ExitCode = failureExitCode(stage, err)
		p.logger.Error("stage failed",
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()))
		var zero T
		return zero, false
	}

	report.Results = append(report.Results, StageResult{Stage: stage, Succeeded: true})
	return out, true
}

func failureExitCode(stage Stage, err error) int {
	var missing *consumer.ContractMissingError
	if errors.As(err, &missing) {
		return exitContractMissing
	}
	return stageExitCodes[stage]
}

// failureMessage keeps the captured subprocess output attached to the
// message so the operator sees the raw diagnostics.
func failureMessage(err error) string {
	var testErr *consumer.TestFailedError
	if errors.As(err, &testErr) && testErr.Output != "" {
		return fmt.Sprintf("%s\n%s", testErr.Error(), strings.TrimRight(testErr.Output, "\n"))
	}
	var verifyErr *verifier.VerificationFailedError
	if errors.As(err, &verifyErr) && verifyErr.Output != "" {
		return fmt.Sprintf("%s\n%s", verifyErr.Error(), strings.TrimRight(verifyErr.Output, "\n"))
	}
	return err.Error()
}
