package cl

import "fmt"

// ReadBuildLog returns the compiler output for p. When the log itself
// cannot be queried the returned text names the reason instead.
func ReadBuildLog(p Program) string {
	log, err := p.BuildLog()
	if err != nil {
		return fmt.Sprintf("(build log unavailable: %v)", err)
	}
	return log
}
