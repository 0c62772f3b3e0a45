package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// PhotoName returns a deterministic, collision-resistant file name for a
// photo sent by userID at t: YYYYMMDD-HHMMSS-<user>-<hash8><ext>. The
// extension comes from the content, not from the sender.
func PhotoName(t time.Time, userID int64, data []byte) string {
	id := uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%d:%d", userID, t.UnixNano()))
	hash := strings.ReplaceAll(id.String(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s%s", t.UTC().Format("20060102-150405"), userID, hash, PhotoExtension(data))
}

// PhotoExtension detects the file extension of data, defaulting to ".bin".
func PhotoExtension(data []byte) string {
	if ext := mimetype.Detect(data).Extension(); ext != "" {
		return ext
	}
	return ".bin"
}
