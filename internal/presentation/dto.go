package presentation

// ResolutionDTO is the output of a team or issue resolution.
type ResolutionDTO struct {
	Input     string `json:"input" yaml:"input"`
	TeamKey   string `json:"team_key" yaml:"team_key"`
	Workspace string `json:"workspace" yaml:"workspace"`
}

// WorkspaceDTO is one configured workspace, without its credential.
type WorkspaceDTO struct {
	Name    string `json:"name" yaml:"name"`
	KeyHint string `json:"key_hint" yaml:"key_hint"`
}

// MaskAPIKey keeps the last four characters of key.
func MaskAPIKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
