package state

import "github.com/osa030/voicememo/internal/domain/audio"

// Resource is the single active audio resource: nil, a RecordingResource
// or a PlaybackResource.
type Resource interface {
	Kind() ResourceKind
	// Generation identifies the subscription attached to the handle.
	Generation() uint64
	isResource()
}

// RecordingResource holds a recorder.
type RecordingResource struct {
	Handle audio.RecordingHandle
	Gen    uint64
}

func (RecordingResource) Kind() ResourceKind  { return ResourceRecording }
func (r RecordingResource) Generation() uint64 { return r.Gen }
func (RecordingResource) isResource()          {}

// PlaybackResource holds a loaded sound.
type PlaybackResource struct {
	Handle audio.PlaybackHandle
	Gen    uint64
}

func (PlaybackResource) Kind() ResourceKind  { return ResourcePlayback }
func (p PlaybackResource) Generation() uint64 { return p.Gen }
func (PlaybackResource) isResource()          {}

// KindOf returns the kind of r, treating nil as ResourceNone.
func KindOf(r Resource) ResourceKind {
	if r == nil {
		return ResourceNone
	}
	return r.Kind()
}
