package mocks

type WorkspaceEnsurerMock struct {
	EnsureFunc func(projectID uint, sessionID string) (string, string, error)
}

func (m *WorkspaceEnsurerMock) Ensure(projectID uint, sessionID string) (string, string, error) {
	if m.EnsureFunc != nil {
		return m.EnsureFunc(projectID, sessionID)
	}
	return "", "", nil
}
