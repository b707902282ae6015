package artifact

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrArtifactLoad reports a missing or corrupt stored blob. It is a
// whole-request precondition failure, never a per-row one.
var ErrArtifactLoad = errors.New("artifact: stored model or encoder blob missing or corrupt")

// Store persists trained model/encoder-set pairs under versioned keys.
// Publication is atomic from the reader's perspective: a loadable model
// key always has a loadable companion encoder blob. Published blobs
// are immutable and may be read concurrently.
type Store interface {
	// Publish writes both blobs under the version token and returns
	// the model key the ledger should record. On error nothing is
	// visible to readers.
	Publish(version string, modelBlob, encoderBlob []byte) (modelKey string, err error)
	// Load retrieves the model blob and its companion encoder blob by
	// the model key recorded in the ledger.
	Load(modelKey string) (modelBlob, encoderBlob []byte, err error)
}

// NewVersion mints a fresh globally-unique version token.
func NewVersion() string {
	return uuid.NewString()
}

// ModelKey builds the stored model name for a version token.
func ModelKey(version string) string {
	return fmt.Sprintf("model_%s.json", version)
}

// EncoderKey derives the encoder blob name from its model key by fixed
// string substitution. The naming convention is load-bearing: the
// ledger records only the model key.
func EncoderKey(modelKey string) string {
	return strings.Replace(modelKey, "model_", "encoder_", 1)
}
