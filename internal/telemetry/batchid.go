package telemetry

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

const (
	batchIDPrefix = "mtx"
	batchPurpose  = "metrics-batch"

	// batchIDBucket is the time-bucket resolution. Two flushes for the
	// same user inside one bucket produce the same id, so a retried
	// transmission of the same logical batch is recognizable as a
	// duplicate by the receiver.
	batchIDBucket = 30 * time.Second

	batchIDDigestLen = 8 // 16 hex chars
)

// batchID computes the deterministic idempotency token for a flush.
func batchID(userID string, now time.Time) string {
	bucket := now.Unix() / int64(batchIDBucket/time.Second)
	h, err := blake2b.New(batchIDDigestLen, nil)
	if err != nil {
		// Only reachable with an invalid digest size, which is constant.
		panic(err)
	}
	fmt.Fprintf(h, "%s|%d|%s", userID, bucket, batchPurpose)
	return batchIDPrefix + "_" + hex.EncodeToString(h.Sum(nil))
}
