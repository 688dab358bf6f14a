package main

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/absfs/filemask"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonResult struct {
	Path    string `json:"path"`
	Type    string `json:"type"`
	Outcome string `json:"outcome"`
	NewPath string `json:"new_path,omitempty"`
	Error   string `json:"error,omitempty"`
}

type jsonReport struct {
	Target    string         `json:"target"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Results   []jsonResult   `json:"results"`
	Summary   map[string]int `json:"summary"`
}

func printReport(w io.Writer, target string, r *filemask.Report) {
	fmt.Fprintf(w, "%s: %d processed, %d skipped\n", target, r.Processed(), len(r.Skips()))
	for _, res := range r.Skips() {
		if res.Outcome == filemask.SkipUnsupportedDirectory || res.Outcome == filemask.SkipSidecarFile {
			continue
		}
		fmt.Fprintf(w, "  skip %s (%s)\n", res.Path, res.Outcome)
	}
}

// writeJSONReport writes r as a single JSON line
func writeJSONReport(w io.Writer, target string, r *filemask.Report) error {
	out := jsonReport{
		Target:    target,
		Processed: r.Processed(),
		Skipped:   len(r.Skips()),
		Results:   make([]jsonResult, 0, len(r.Results)),
		Summary:   make(map[string]int),
	}
	for _, res := range r.Results {
		jr := jsonResult{
			Path:    res.Path,
			Type:    res.Type.String(),
			Outcome: res.Outcome.String(),
			NewPath: res.NewPath,
		}
		if res.Err != nil {
			jr.Error = res.Err.Error()
		}
		out.Results = append(out.Results, jr)
	}
	for o, n := range r.Summary() {
		out.Summary[o.String()] = n
	}
	return json.NewEncoder(w).Encode(out)
}
