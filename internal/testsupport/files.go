package testsupport

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// PCASLMetadata returns a complete single-PLD PCASL sidecar in BIDS units.
// Callers own the returned map.
func PCASLMetadata() map[string]any {
	return map[string]any{
		"ArterialSpinLabelingType":  "PCASL",
		"MRAcquisitionType":         "3D",
		"PulseSequenceType":         "3Dgrase",
		"MagneticFieldStrength":     3,
		"Manufacturer":              "Siemens",
		"ManufacturersModelName":    "Prisma",
		"EchoTime":                  0.0125,
		"RepetitionTimePreparation": 4.5,
		"FlipAngle":                 90,
		"BackgroundSuppression":     false,
		"M0Type":                    "Separate",
		"AcquisitionVoxelSize":      []float64{3.5, 3.5, 4},
		"LabelingDuration":          1.8,
		"PostLabelingDelay":         2.0,
	}
}

// M0Metadata returns an m0scan sidecar matching PCASLMetadata.
func M0Metadata() map[string]any {
	return map[string]any{
		"MRAcquisitionType":         "3D",
		"PulseSequenceType":         "3Dgrase",
		"MagneticFieldStrength":     3,
		"EchoTime":                  0.0125,
		"FlipAngle":                 90,
		"RepetitionTimePreparation": 6,
	}
}

// ControlLabel returns an aslcontext volume list of n control-label pairs.
func ControlLabel(n int) []string {
	out := make([]string, 0, 2*n)
	for range n {
		out = append(out, "control", "label")
	}
	return out
}

// With returns a copy of doc with overrides applied. A nil override value
// deletes the key.
func With(doc map[string]any, overrides map[string]any) map[string]any {
	out := maps.Clone(doc)
	for k, v := range overrides {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// MarshalJSON encodes doc or fails the test.
func MarshalJSON(t testing.TB, doc any) []byte {
	t.Helper()

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	return data
}

// ContextTSV renders an aslcontext.tsv body.
func ContextTSV(volumes []string) []byte {
	return []byte("volume_type\n" + strings.Join(volumes, "\n") + "\n")
}

// WriteBytes writes data to path, creating parent directories.
func WriteBytes(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSession writes <prefix>asl.json and, when given, <prefix>m0scan.json
// and <prefix>aslcontext.tsv under dir. It returns the ASL sidecar path.
func WriteSession(t testing.TB, dir, prefix string, asl, m0 map[string]any, volumes []string) string {
	t.Helper()

	aslPath := filepath.Join(dir, prefix+"asl.json")
	WriteJSON(t, aslPath, asl)
	if m0 != nil {
		WriteJSON(t, filepath.Join(dir, prefix+"m0scan.json"), m0)
	}
	if volumes != nil {
		WriteBytes(t, filepath.Join(dir, prefix+"aslcontext.tsv"), ContextTSV(volumes))
	}
	return aslPath
}

// WriteJSON encodes doc to path.
func WriteJSON(t testing.TB, path string, doc any) {
	t.Helper()

	WriteBytes(t, path, MarshalJSON(t, doc))
}
