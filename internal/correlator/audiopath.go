package correlator

import "path/filepath"

// normalizeAudioPath applies the three-step rule from spec.md §4.F:
// an absolute path is used as-is; a relative path or bare filename is
// joined with audioDir; an empty path is synthesized from the canonical
// call ID.
func normalizeAudioPath(audioDir, filename, canonicalID string) string {
	if filename == "" {
		return filepath.Join(audioDir, canonicalID+".wav")
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(audioDir, filename)
}
