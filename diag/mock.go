package diag

// MockClient is a test double for Client, grounded on dropbox-llama's
// client.go/mock.go pair.
type MockClient struct {
	NextOutcomes []Outcome
	NextErr      error
}

func (m *MockClient) GetOutcomes() ([]Outcome, error) { return m.NextOutcomes, m.NextErr }
func (m *MockClient) Hostname() string                { return "" }
func (m *MockClient) Port() string                    { return "" }
