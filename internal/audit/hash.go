package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/lockview-project/lockview/pkg/model"
)

// canonical re-encodes v through a generic value. encoding/json writes map
// keys sorted and without whitespace, so the result is stable regardless of
// struct field order.
func canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonical unmarshal: %w", err)
	}
	return json.Marshal(generic)
}

// recordHash hashes rec with its RecordHash cleared.
func recordHash(rec model.LaunchRecord) (string, error) {
	rec.RecordHash = ""
	data, err := canonical(rec)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
