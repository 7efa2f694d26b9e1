package hashid

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// Namespace is the fixed UUID namespace every row primary key is derived
// under (node, generator and input hashes are plain SHA-256 digests). It has no significance beyond being constant across
// processes and versions, matching the "fixed hash function" strategy
// called out for cyclic/self-referential identity derivation.
var Namespace = uuid.MustParse("6f1e6b2a-6e8a-4e1a-9a8a-6e7c0f1f3b1a")

// RowID derives the deterministic primary key for a row: the UUIDv5-style
// hash of the entity name and its canonicalized identifying values. Two
// calls with an identical entity name and identifying values always return
// the same UUID, which is what makes Load idempotent across runs (§3 Row
// identity, §8 Determinism of row identity).
func RowID(entityName string, identifying map[string]interface{}) (uuid.UUID, error) {
	payload, err := Canonicalize(map[string]interface{}{
		"entity":     entityName,
		"identifying": identifying,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.NewSHA1(Namespace, payload), nil
}

// NodeHash derives the stable content hash of a computational node
// definition (its kind plus whatever shape the caller passes as def). It is
// NOT a function of runtime state: the same Extract/Transform/Load
// declaration hashes the same way every time it is constructed, which is
// what lets the per-generator graph use hashes instead of object identity
// for its edges (§3 ComputationalNode, §9 Cyclic references).
func NodeHash(kind string, def interface{}) (string, error) {
	payload, err := Canonicalize(map[string]interface{}{
		"kind": kind,
		"def":  def,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// GeneratorHash derives the stable identity of a generator from its name
// and description; used as the generator_id persisted into run metadata and
// as the salt mixed into each row's input_hash (§4.5 step 3a).
func GeneratorHash(name, description string) (string, error) {
	return NodeHash("generator", map[string]interface{}{"name": name, "description": description})
}

// InputHash derives the per-row dedup key used by the repeats table:
// hash(generator_hash || canonical(record)).
func InputHash(generatorHash string, record map[string]interface{}) (string, error) {
	payload, err := Canonicalize(map[string]interface{}{
		"generator": generatorHash,
		"record":    record,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
