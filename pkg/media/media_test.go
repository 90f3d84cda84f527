package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDocument(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"pdf data uri", "data:application/pdf;base64,JVBERi0xLjQ=", true},
		{"bare prefix", DocumentPrefix, true},
		{"plain text", "Our return policy is 30 days.", false},
		{"prefix mid-string", "see data:application/pdf;base64,JVBERi0=", false},
		{"leading space", " data:application/pdf;base64,JVBERi0=", false},
		{"other media type", "data:text/plain;base64,aGk=", false},
		{"case differs", "DATA:application/pdf;base64,JVBERi0=", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDocument(tt.in))
		})
	}
}

func TestEncodeDocument(t *testing.T) {
	uri := EncodeDocument([]byte("%PDF-1.4"))
	assert.Equal(t, "data:application/pdf;base64,JVBERi0xLjQ=", uri)
	assert.True(t, IsDocument(uri))

	d, err := ParseDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, DocumentMediaType, d.MediaType)
	assert.Equal(t, []byte("%PDF-1.4"), d.Data)
}

func TestParseDataURI(t *testing.T) {
	t.Run("keeps media type parameters", func(t *testing.T) {
		d, err := ParseDataURI("data:audio/webm;codecs=opus;base64,AAEC")
		require.NoError(t, err)
		assert.Equal(t, "audio/webm;codecs=opus", d.MediaType)
		assert.Equal(t, []byte{0, 1, 2}, d.Data)
	})

	t.Run("rejects non data uri", func(t *testing.T) {
		_, err := ParseDataURI("hello")
		assert.ErrorIs(t, err, ErrNotDataURI)
	})

	t.Run("rejects non base64 uri", func(t *testing.T) {
		_, err := ParseDataURI("data:text/plain,hello")
		assert.ErrorIs(t, err, ErrNotDataURI)
	})

	t.Run("rejects bad base64", func(t *testing.T) {
		_, err := ParseDataURI("data:audio/wav;base64,@@@")
		assert.Error(t, err)
	})
}

func TestAudioDataURI(t *testing.T) {
	a := Audio{MediaType: AudioMPEG, Data: []byte{0xff, 0xfb}}
	got, err := AudioFromDataURI(a.DataURI())
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = AudioFromDataURI(EncodeDocument([]byte("x")))
	assert.Error(t, err)
}

func TestFormatFromMediaType(t *testing.T) {
	assert.Equal(t, "webm", FormatFromMediaType("audio/webm;codecs=opus"))
	assert.Equal(t, "mp3", FormatFromMediaType("audio/mpeg"))
	assert.Equal(t, "wav", FormatFromMediaType("audio/x-wav"))
	assert.Equal(t, "pcm", FormatFromMediaType("audio/L16;rate=24000"))
	assert.Equal(t, AudioOGG, MediaTypeFromFormat("opus"))
}

func TestWAVRoundTrip(t *testing.T) {
	in := PCM{Samples: []int16{0, 1, -1, 32767, -32768}, SampleRate: 16000, Channels: 1}

	b := EncodeWAV(in)
	assert.Len(t, b, wavHeaderSize+len(in.Samples)*2)

	out, err := DecodeWAV(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeWAV_Invalid(t *testing.T) {
	_, err := DecodeWAV([]byte("ID3\x03 not a wav"))
	assert.ErrorIs(t, err, ErrInvalidWAV)

	_, err = DecodeWAV([]byte("RIFF\x00\x00\x00\x00WAVE"))
	assert.ErrorIs(t, err, ErrInvalidWAV)
}
