package teleboy

import "context"

// Dispatch describes one sendMessage request issued by the Client.
type Dispatch struct {
	ChatID  string
	TopicID string
	Part    int // 1-based
	Parts   int
	Length  int // runes
	Err     error
}

// Recorder observes every dispatched unit, successful or not.
type Recorder interface {
	Record(ctx context.Context, d Dispatch)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, d Dispatch)

func (f RecorderFunc) Record(ctx context.Context, d Dispatch) { f(ctx, d) }

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Dispatch) {}
