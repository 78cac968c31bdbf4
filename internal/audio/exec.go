package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"voxchat/pkg/audioconv"
)

// ExecRecorder shells out to the sox `rec` command and decodes the
// resulting file. It is the fallback capture path when portaudio cannot
// be initialized.
type ExecRecorder struct {
	Command string
}

func NewExecRecorder() *ExecRecorder {
	return &ExecRecorder{Command: "rec"}
}

func (r *ExecRecorder) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	if d <= 0 {
		d = 2 * time.Second
	}

	tmp, err := os.CreateTemp("", "voxchat-rec-*.wav")
	if err != nil {
		return nil, err
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	secs := strconv.Itoa(int(d.Round(time.Second).Seconds()))
	cmd := exec.CommandContext(ctx, r.Command, tmp.Name(), "trim", "0", secs)
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Warn("external recorder failed", "cmd", r.Command, "err", err, "output", string(out))
		return nil, fmt.Errorf("%s: %w", r.Command, err)
	}

	pcm, err := audioconv.DecodeFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}
	return pcm, nil
}
