package pipeline

import (
	"context"
	"os"

	"github.com/backmassage/vid2audio/internal/probe"
	"github.com/backmassage/vid2audio/internal/transcode"
)

// Action is what a run would do with one planned task.
type Action string

const (
	ActionEncode  Action = "encode"
	ActionCopy    Action = "copy"
	ActionReuse   Action = "reuse"
	ActionNoAudio Action = "no audio"
	ActionError   Action = "probe error"
)

// TaskInfo is a planned task with what probing the source revealed.
type TaskInfo struct {
	Task       transcode.Task
	Action     Action
	Duration   float64 // Seconds; 0 when unknown.
	AudioCodec string
	Video      string // "WxH" or "unknown".
	Err        error
}

// Inspect probes every task of plan without converting anything, for
// previewing a run. Probe failures are reported per task.
func (c *Converter) Inspect(ctx context.Context, plan *Plan) ([]TaskInfo, error) {
	infos := make([]TaskInfo, 0, len(plan.Tasks))
	for _, task := range plan.Tasks {
		if err := ctx.Err(); err != nil {
			return infos, err
		}
		infos = append(infos, c.inspect(ctx, task))
	}
	return infos, nil
}

func (c *Converter) inspect(ctx context.Context, task transcode.Task) TaskInfo {
	info := TaskInfo{Task: task}
	if fi, err := os.Stat(task.Target); err == nil && fi.Mode().IsRegular() && fi.Size() > 0 && !task.Overwrite {
		info.Action = ActionReuse
		return info
	}

	pr, err := probe.Probe(ctx, c.cfg.ProbePath, task.Source.Path)
	if err != nil {
		info.Action, info.Err = ActionError, err
		return info
	}
	info.Duration = pr.DurationSeconds()
	info.Video = pr.Resolution()
	a := pr.PrimaryAudio()
	if a == nil {
		info.Action = ActionNoAudio
		return info
	}
	info.AudioCodec = a.Codec

	ofmt, err := transcode.LookupFormat(task.Format)
	if err != nil {
		info.Action, info.Err = ActionError, err
		return info
	}
	if transcode.BuildAudioPlan(task, ofmt, a).Copy {
		info.Action = ActionCopy
	} else {
		info.Action = ActionEncode
	}
	return info
}
