package filemask

import (
	"github.com/samber/lo"
)

// Outcome is the decision taken for one target
type Outcome uint8

const (
	// OutcomeEncrypted means the target was transformed and the flag set
	OutcomeEncrypted Outcome = iota
	// OutcomeDecrypted means the target was restored and the flag cleared
	OutcomeDecrypted

	// SkipSidecarFile means the target is a sidecar container or record
	SkipSidecarFile
	// SkipUnsupportedDirectory means the encoder cannot process directories
	SkipUnsupportedDirectory
	// SkipTargetIO means the target could not be inspected
	SkipTargetIO
	// SkipSidecarIO means the sidecar could not be created, opened or written
	SkipSidecarIO
	// SkipSidecarCorrupt means the sidecar is too short or its map is invalid
	SkipSidecarCorrupt
	// SkipOwnershipMismatch means the sidecar belongs to another password
	SkipOwnershipMismatch
	// SkipAlreadyEncoded means the target is already encoded with this type
	SkipAlreadyEncoded
	// SkipMutuallyExclusive means header and content encoding would overlap
	SkipMutuallyExclusive
	// SkipVariantFailed means the encoder reported a failure
	SkipVariantFailed
	// SkipNeverEncrypted means no sidecar exists for the target
	SkipNeverEncrypted
	// SkipFlagNotSet means the target is not encoded with this type
	SkipFlagNotSet
	// SkipSymlink means cascade traversal did not follow a link to a directory
	SkipSymlink
	// SkipCycle means a directory was reached a second time
	SkipCycle
)

var outcomeNames = map[Outcome]string{
	OutcomeEncrypted:         "encrypted",
	OutcomeDecrypted:         "decrypted",
	SkipSidecarFile:          "sidecar-file",
	SkipUnsupportedDirectory: "unsupported-directory",
	SkipTargetIO:             "target-io",
	SkipSidecarIO:            "sidecar-io",
	SkipSidecarCorrupt:       "sidecar-corrupt",
	SkipOwnershipMismatch:    "ownership-mismatch",
	SkipAlreadyEncoded:       "already-encoded",
	SkipMutuallyExclusive:    "mutually-exclusive",
	SkipVariantFailed:        "variant-failed",
	SkipNeverEncrypted:       "never-encrypted",
	SkipFlagNotSet:           "flag-not-set",
	SkipSymlink:              "symlink",
	SkipCycle:                "cycle",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Skipped reports whether the target was left untouched
func (o Outcome) Skipped() bool {
	return o != OutcomeEncrypted && o != OutcomeDecrypted
}

// Result records what happened to one target
type Result struct {
	Path    string
	Type    EncodeType
	Outcome Outcome
	// NewPath is set when name encoding moved the target
	NewPath string
	// Err is the underlying cause of a skip, if any
	Err error
}

// Report collects the results of one Encrypt or Decrypt call in processing
// order
type Report struct {
	Results []Result
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

// Count returns the number of results with outcome o
func (r *Report) Count(o Outcome) int {
	return lo.CountBy(r.Results, func(res Result) bool {
		return res.Outcome == o
	})
}

// Lookup returns the result recorded for path
func (r *Report) Lookup(path string) (Result, bool) {
	return lo.Find(r.Results, func(res Result) bool {
		return res.Path == path
	})
}

// Processed returns the number of targets that were transformed
func (r *Report) Processed() int {
	return r.Count(OutcomeEncrypted) + r.Count(OutcomeDecrypted)
}

// Skips returns the skipped results
func (r *Report) Skips() []Result {
	return lo.Filter(r.Results, func(res Result, _ int) bool {
		return res.Outcome.Skipped()
	})
}

// Summary returns the number of results per outcome
func (r *Report) Summary() map[Outcome]int {
	return lo.CountValuesBy(r.Results, func(res Result) Outcome {
		return res.Outcome
	})
}
