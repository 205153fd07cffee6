package agent

import (
	"context"
	"fmt"
	"sync"
)

// Recorded captures one Chat invocation for assertions.
type Recorded struct {
	Messages []Message
	Opts     ChatOptions
}

// MockClient is a Chatter that replays scripted responses in order.
// Once the script runs out, further calls fail, which keeps tests honest
// about how many backend round-trips a code path makes. Safe for
// concurrent use, matching the pipeline's scene fan-out.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Calls     []Recorded
	Err       error

	BackendName string
	ModelName   string
}

func NewMockClient(responses ...string) *MockClient {
	return &MockClient{
		Responses:   responses,
		BackendName: "mock",
		ModelName:   "mock-model",
	}
}

func (m *MockClient) Chat(_ context.Context, messages []Message, opts ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Recorded{Messages: messages, Opts: opts})
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Calls) > len(m.Responses) {
		return "", fmt.Errorf("mock client exhausted after %d responses", len(m.Responses))
	}
	return m.Responses[len(m.Calls)-1], nil
}

func (m *MockClient) Backend() string { return m.BackendName }

func (m *MockClient) Model() string { return m.ModelName }

// CallCount reports how many Chat calls were made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
