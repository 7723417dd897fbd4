// Command adjudicate replays a debate record dump through the adversarial
// confidence pipeline and emits the confidence and transparency reports.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/audit"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/config"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/ingest"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/run"
	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/scoring"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "score":
		return runScore(args[2:], stdout, stderr)
	case "verify":
		return runVerify(args[2:], stdout, stderr)
	case "policy":
		return runPolicy(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: adjudicate <command> [flags]

commands:
  score    replay a record dump and emit confidence + transparency reports
  verify   replay a record dump and verify the ledger hash chain
  policy   print the effective threshold policy`)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}

func runScore(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "record dump JSON file (required)")
	policyPath := fs.String("policy", "", "threshold policy YAML file (optional)")
	outDir := fs.String("out", "", "directory for report files (default: stdout)")
	withTrail := fs.Bool("trail", false, "emit the audit trail to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	logger := newLogger(stderr)

	if *input == "" {
		fmt.Fprintln(stderr, "score: -input is required")
		return 2
	}

	manifest, err := config.Load(*policyPath)
	if err != nil {
		logger.Error("failed to load policy", "error", err)
		return 1
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		logger.Error("failed to read dump", "path", *input, "error", err)
		return 1
	}
	dump, err := ingest.Decode(data)
	if err != nil {
		logger.Error("dump rejected", "path", *input, "error", err)
		return 1
	}

	r, err := buildRun(dump, manifest, *withTrail, logger)
	if err != nil {
		logger.Error("failed to replay dump", "error", err)
		return 1
	}

	result, err := r.Finalize(finalizeInput(dump))
	if err != nil {
		logger.Error("failed to finalize run", "error", err)
		return 1
	}

	logger.Info("run finalized",
		"overall_score", result.Score.OverallScore,
		"overall_level", result.Score.OverallLevel,
		"requires_review", result.Decision.RequiresReview,
		"priority", result.Decision.Priority,
	)

	if *outDir == "" {
		return emitJSON(stdout, map[string]any{
			"confidence_report":   result.Confidence,
			"transparency_report": result.Transparency,
		}, logger)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Error("failed to create output directory", "path", *outDir, "error", err)
		return 1
	}
	files := map[string]any{
		"confidence_report.json":   result.Confidence,
		"transparency_report.json": result.Transparency,
	}
	for name, v := range files {
		path := filepath.Join(*outDir, name)
		if err := writeJSONFile(path, v); err != nil {
			logger.Error("failed to write report", "path", path, "error", err)
			return 1
		}
		logger.Info("wrote report", "path", path)
	}
	return 0
}

func runVerify(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "record dump JSON file (required)")
	policyPath := fs.String("policy", "", "threshold policy YAML file (optional)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	logger := newLogger(stderr)

	if *input == "" {
		fmt.Fprintln(stderr, "verify: -input is required")
		return 2
	}

	manifest, err := config.Load(*policyPath)
	if err != nil {
		logger.Error("failed to load policy", "error", err)
		return 1
	}
	data, err := os.ReadFile(*input)
	if err != nil {
		logger.Error("failed to read dump", "path", *input, "error", err)
		return 1
	}
	dump, err := ingest.Decode(data)
	if err != nil {
		logger.Error("dump rejected", "path", *input, "error", err)
		return 1
	}

	r, err := buildRun(dump, manifest, false, logger)
	if err != nil {
		logger.Error("failed to replay dump", "error", err)
		return 1
	}

	ok, detail := r.Ledger().Verify()
	fmt.Fprintf(stdout, "entries: %d\nhead: %s\nresult: %s\n",
		len(r.Ledger().Entries()), r.Ledger().Head(), detail)
	if !ok {
		return 1
	}
	return 0
}

func runPolicy(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("policy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	policyPath := fs.String("policy", "", "threshold policy YAML file (optional)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	logger := newLogger(stderr)

	manifest, err := config.Load(*policyPath)
	if err != nil {
		logger.Error("failed to load policy", "error", err)
		return 1
	}
	return emitJSON(stdout, manifest, logger)
}

// buildRun replays a dump through a fresh run: rounds open in ascending
// order, each round's critiques land before its responses, and rejected
// records are logged and dropped without halting the replay.
func buildRun(dump *ingest.Dump, manifest *config.PolicyManifest, withTrail bool, logger *slog.Logger) (*run.Run, error) {
	opts := []run.Option{}
	if withTrail {
		opts = append(opts, run.WithTrail(audit.NewTrail("adjudicate")))
	}
	r, err := run.New(&manifest.Thresholds, opts...)
	if err != nil {
		return nil, err
	}

	specs := append([]ingest.RoundSpec(nil), dump.Rounds...)
	sort.Slice(specs, func(i, j int) bool { return specs[i].Round < specs[j].Round })

	recorded := make(map[string]bool, len(dump.Critiques))
	answered := make(map[string]bool, len(dump.Responses))
	for _, spec := range specs {
		if err := r.OpenRound(spec.Round, spec.Type); err != nil {
			return nil, err
		}
		for _, c := range dump.Critiques {
			if c.Round != spec.Round {
				continue
			}
			if err := r.RecordCritique(c); err != nil {
				logger.Warn("critique dropped", "critique_id", c.CritiqueID, "error", err)
				continue
			}
			recorded[c.CritiqueID] = true
		}
		for _, resp := range dump.Responses {
			if resp.Round != spec.Round {
				continue
			}
			if err := r.RecordResponse(resp); err != nil {
				logger.Warn("response dropped", "response_id", resp.ResponseID, "error", err)
				continue
			}
			answered[resp.ResponseID] = true
		}
		if _, err := r.CloseRound(spec.Round); err != nil {
			return nil, err
		}
	}

	// Records tagged with rounds the dump never declared still enter the
	// ledger; they just have no round summary.
	for _, c := range dump.Critiques {
		if recorded[c.CritiqueID] {
			continue
		}
		if err := r.RecordCritique(c); err != nil {
			logger.Warn("critique dropped", "critique_id", c.CritiqueID, "error", err)
		} else {
			logger.Warn("critique outside any declared round", "critique_id", c.CritiqueID, "round", c.Round)
		}
	}
	for _, resp := range dump.Responses {
		if answered[resp.ResponseID] {
			continue
		}
		if err := r.RecordResponse(resp); err != nil {
			logger.Warn("response dropped", "response_id", resp.ResponseID, "error", err)
		} else {
			logger.Warn("response outside any declared round", "response_id", resp.ResponseID, "round", resp.Round)
		}
	}

	return r, nil
}

func finalizeInput(dump *ingest.Dump) run.FinalizeInput {
	in := run.FinalizeInput{
		ExtraFlags:       dump.Flags,
		ConsensusReached: dump.ConsensusReached,
	}
	if len(dump.Sections) > 0 {
		in.Sections = make(map[string]scoring.SectionContext, len(dump.Sections))
		for name, sc := range dump.Sections {
			in.Sections[name] = scoring.SectionContext{
				BaseScore:     sc.BaseScore,
				WordCount:     sc.WordCount,
				RevisionCount: sc.RevisionCount,
			}
		}
	}
	return in
}

func emitJSON(w io.Writer, v any, logger *slog.Logger) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Error("failed to encode output", "error", err)
		return 1
	}
	return 0
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
