package generation

import "context"

// MockGenerator is a scriptable Generator for tests. It records every prompt
// it receives and replies with Reply (or echoes the prompt when Reply is "").
type MockGenerator struct {
	Reply   string
	Err     error
	Prompts []string
}

// Generate records the prompt and returns the scripted reply.
func (m *MockGenerator) Generate(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply == "" {
		return prompt, nil
	}
	return m.Reply, nil
}

// Calls returns how many times Generate was invoked.
func (m *MockGenerator) Calls() int {
	return len(m.Prompts)
}

var _ Generator = (*MockGenerator)(nil)
