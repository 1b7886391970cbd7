// Package speech defines the capability interfaces for voice-driven
// clients. Speech recognition and synthesis happen on the client; the
// server treats transcripts as ordinary messages and voicing a reply as
// a side effect of producing it.
package speech

import "context"

// Transcript is one recognized utterance of user speech.
type Transcript struct {
	Text   string
	Locale string
}

// Recorder supplies a stream of transcripts. The channel closes when the
// source ends or ctx is cancelled.
type Recorder interface {
	Record(ctx context.Context) (<-chan Transcript, error)
}

// Speaker voices an assistant reply in the given BCP-47 locale.
type Speaker interface {
	Speak(ctx context.Context, text, locale string) error
}

// NoopSpeaker discards all output. Used when the client handles
// synthesis itself, which is the normal deployment.
type NoopSpeaker struct{}

func (NoopSpeaker) Speak(context.Context, string, string) error { return nil }

// NoopRecorder yields an already-closed stream.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context) (<-chan Transcript, error) {
	ch := make(chan Transcript)
	close(ch)
	return ch, nil
}

var (
	_ Speaker  = NoopSpeaker{}
	_ Recorder = NoopRecorder{}
)
