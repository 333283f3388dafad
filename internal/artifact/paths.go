package artifact

import (
	"fmt"
	"path/filepath"
)

// RunDir returns the run's output directory: <out>/<stash-name>/<run-timestamp>.
func RunDir(outRoot, stashName, runTimestamp string) string {
	return filepath.Join(outRoot, stashName, runTimestamp)
}

// SequenceDir returns the zero-padded per-sequence directory under the run
// directory (§4.8 file path).
func SequenceDir(runDir string, seqIndex int, seqName string) string {
	return filepath.Join(runDir, fmt.Sprintf("seq%03d-%s", seqIndex, seqName))
}

// ResponsePath returns the deterministic response body path for one
// request attempt (§4.8): <out>/<stash>/<ts>/seq<NNN>-<seq>/req<NNN>-<key>-response.<ext>.
func ResponsePath(runDir string, seqIndex int, seqName string, reqIndex int, reqKey, ext string) string {
	return filepath.Join(SequenceDir(runDir, seqIndex, seqName), fmt.Sprintf("req%03d-%s-response%s", reqIndex, reqKey, ext))
}

// ResolvedConfigPath returns the resolved-config YAML path (§6 "Output tree").
func ResolvedConfigPath(runDir, configBasename string) string {
	return filepath.Join(runDir, configBasename+"-resolved.yml")
}

// ResultsCSVPath returns the results table path.
func ResultsCSVPath(runDir, configBasename string) string {
	return filepath.Join(runDir, configBasename+"-results.csv")
}

// LogPath returns the run log path.
func LogPath(runDir, configBasename string) string {
	return filepath.Join(runDir, configBasename+"-log.txt")
}
