package edge

import (
	"bytes"
	"fmt"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// mp3 解码输出为 16 位双声道 PCM
const bytesPerSample = 4

// Duration measures the playback length of MP3 data.
func Duration(data []byte) (time.Duration, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty audio")
	}
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	rate := dec.SampleRate()
	length := dec.Length()
	if rate <= 0 || length <= 0 {
		return 0, fmt.Errorf("unknown mp3 length")
	}
	samples := length / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(rate), nil
}
