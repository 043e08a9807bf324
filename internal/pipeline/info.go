package pipeline

import (
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/olegiv/burplog-go/internal/errors"
)

// SourceInfo returns metadata about the log file at path.
// Keys: size_bytes, size_mb, size_human, modified, age_hours.
func (p *Pipeline) SourceInfo(path string) (map[string]interface{}, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewIOError(path, "failed to stat log file", err)
	}

	return map[string]interface{}{
		"size_bytes": info.Size(),
		"size_mb":    float64(info.Size()) / 1024 / 1024,
		"size_human": humanize.IBytes(uint64(info.Size())),
		"modified":   info.ModTime(),
		"age_hours":  time.Since(info.ModTime()).Hours(),
	}, nil
}
