package indicator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

type cueKind int

const (
	cueListening cueKind = iota + 1
	cueStopped
	cueFailed
)

const (
	chimeRate = 16000
	chimeGain = 0.18
	chimeRest = 20 * time.Millisecond
	chimeFade = 4 * time.Millisecond
)

// chime is a short phrase of notes, each a semitone offset from root.
type chime struct {
	root  float64
	steps []int
	beat  time.Duration
}

// Listening rises and stopping falls; failures sit an octave lower.
var chimes = map[cueKind]chime{
	cueListening: {root: 784, steps: []int{0, 5}, beat: 70 * time.Millisecond},
	cueStopped:   {root: 784, steps: []int{0, -4}, beat: 85 * time.Millisecond},
	cueFailed:    {root: 392, steps: []int{3, 0}, beat: 90 * time.Millisecond},
}

var (
	renderOnce sync.Once
	rendered   map[cueKind][]int16
)

func cuePCM(kind cueKind) []int16 {
	renderOnce.Do(func() {
		rendered = make(map[cueKind][]int16, len(chimes))
		for k, c := range chimes {
			rendered[k] = c.render()
		}
	})
	return rendered[kind]
}

func (c chime) render() []int16 {
	if len(c.steps) == 0 || c.root <= 0 {
		return nil
	}
	noteLen := durationSamples(c.beat)
	restLen := durationSamples(chimeRest)
	if noteLen == 0 {
		return nil
	}

	pcm := make([]int16, 0, len(c.steps)*(noteLen+restLen))
	for i, step := range c.steps {
		if i > 0 {
			pcm = append(pcm, make([]int16, restLen)...)
		}
		freq := c.root * math.Pow(2, float64(step)/12)
		pcm = appendNote(pcm, freq, noteLen)
	}
	return pcm
}

// appendNote writes a sine note with raised-cosine edges.
func appendNote(pcm []int16, freq float64, n int) []int16 {
	fade := min(durationSamples(chimeFade), n/2)
	for i := 0; i < n; i++ {
		edge := 1.0
		if d := min(i, n-1-i); fade > 0 && d < fade {
			edge = 0.5 - 0.5*math.Cos(math.Pi*float64(d)/float64(fade))
		}
		phase := 2 * math.Pi * freq * float64(i) / chimeRate
		pcm = append(pcm, int16(math.Round(math.Sin(phase)*edge*chimeGain*math.MaxInt16)))
	}
	return pcm
}

func durationSamples(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d.Seconds() * chimeRate)
}

// playCue plays kind through the Pulse server unless ctx is already done.
func playCue(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pcm := cuePCM(kind)
	if len(pcm) == 0 {
		return nil
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("speach"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	offset := 0
	source := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, pcm[offset:])
		offset += n
		if offset == len(pcm) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(source,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(chimeRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("speach session cue"),
	)
	if err != nil {
		return fmt.Errorf("open cue stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play cue: %w", err)
	}
	return nil
}
