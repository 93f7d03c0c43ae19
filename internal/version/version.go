// Package version хранит сведения о сборке, заданные через -ldflags:
//
//	-X github.com/vladislavdragonenkov/offers/internal/version.version=v1.2.0
package version

import "fmt"

const serviceName = "offer-service"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает текущую сборку.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current возвращает сведения о сборке.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

func (b Build) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", serviceName, b.Version, b.Commit, b.Date)
}

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// UserAgent — значение User-Agent и Kafka client.id для исходящих вызовов сервиса.
func UserAgent(component string) string {
	if component == "" {
		return serviceName + "/" + version
	}
	return fmt.Sprintf("%s-%s/%s", serviceName, component, version)
}
