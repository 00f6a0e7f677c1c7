package host

import "strings"

// Environment names the deployment stage the process runs in.
type Environment string

const (
	Development Environment = "Development"
	Staging     Environment = "Staging"
	Production  Environment = "Production"
)

// ParseEnvironment canonicalizes the well-known names; other values are kept
// as given. Empty means Production.
func ParseEnvironment(s string) Environment {
	s = strings.TrimSpace(s)
	for _, known := range []Environment{Development, Staging, Production} {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	switch strings.ToLower(s) {
	case "":
		return Production
	case "dev":
		return Development
	case "stage":
		return Staging
	case "prod":
		return Production
	}
	return Environment(s)
}

// Is compares case-insensitively.
func (e Environment) Is(name string) bool {
	return strings.EqualFold(string(e), strings.TrimSpace(name))
}

func (e Environment) IsDevelopment() bool { return e.Is(string(Development)) }
func (e Environment) IsStaging() bool     { return e.Is(string(Staging)) }
func (e Environment) IsProduction() bool  { return e.Is(string(Production)) }

func (e Environment) String() string { return string(e) }
