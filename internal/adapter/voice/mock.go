package voice

import "context"

// MockEngine is a deterministic Engine for tests.
type MockEngine struct {
	// TranscribeText is returned for every Transcribe call.
	TranscribeText string
	// SynthesizedAudio is returned for every Synthesize call.
	SynthesizedAudio []byte
	// Err fails every call when set.
	Err error

	// SynthesizedTexts records what was sent for synthesis.
	SynthesizedTexts []string
}

var _ Engine = (*MockEngine)(nil)

func (m *MockEngine) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.TranscribeText, nil
}

func (m *MockEngine) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.SynthesizedTexts = append(m.SynthesizedTexts, text)
	return m.SynthesizedAudio, nil
}

func (m *MockEngine) Ping(ctx context.Context) error {
	return m.Err
}
