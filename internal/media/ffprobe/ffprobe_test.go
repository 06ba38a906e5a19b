package ffprobe

import (
	"math"
	"testing"
)

func TestDurationPrefersContainer(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio", Duration: "200"}},
		Format:  Format{Duration: "123.45"},
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if (Result{}).DurationSeconds() != 0 {
		t.Fatal("expected 0 when nothing reports a duration")
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{Streams: []Stream{
		{CodecType: "audio", Duration: "10.5"},
		{CodecType: "audio", Duration: "12.25"},
		{CodecType: "video", Duration: "99"},
	}}
	if got := result.DurationSeconds(); got != 12.25 {
		t.Fatalf("expected longest audio stream duration, got %v", got)
	}
}

func TestDurationInvalidIsNaN(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
}

func TestParse(t *testing.T) {
	payload := []byte(`{"streams":[{"index":0,"codec_type":"audio","channels":2,"sample_rate":"44100"}],"format":{"duration":"61.2","format_name":"mp3"}}`)
	result, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Format.FormatName != "mp3" || result.Streams[0].Channels != 2 || result.DurationSeconds() != 61.2 {
		t.Fatalf("unexpected parse result %+v", result)
	}
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
