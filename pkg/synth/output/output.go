// Package output implements the sinks rendered blocks are fanned out to.
// Every output selects blocks by channel id (TalkGroup.ID) and, when its
// context ends, writes whatever is still queued before returning.
package output

import "github.com/norasector/turbine-common/types"

const sampleBufferLength int = 8

type channelFilter map[int]struct{}

func newChannelFilter(channels []int) channelFilter {
	f := make(channelFilter, len(channels))
	for _, id := range channels {
		f[id] = struct{}{}
	}
	return f
}

func (f channelFilter) accepts(ts *types.TaggedAudioSampleFloat32) bool {
	if ts == nil || ts.TalkGroup == nil || ts.Audio == nil {
		return false
	}
	_, ok := f[ts.TalkGroup.ID]
	return ok
}

// drain handles everything already queued on recv without blocking.
func drain(recv chan *types.TaggedAudioSampleFloat32, handle func(*types.TaggedAudioSampleFloat32) error) error {
	for {
		select {
		case ts := <-recv:
			if err := handle(ts); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
