package version

import (
	log "github.com/sirupsen/logrus"
)

// Заполняются при сборке:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/foodstore/internal/version.version=v1.2.0 \
//	  -X github.com/vladislavdragonenkov/foodstore/internal/version.commit=$(git rev-parse --short HEAD)"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает сборку сервиса.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Current возвращает данные текущей сборки.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// Fields возвращает поля сборки для структурированного лога.
func (b Build) Fields() log.Fields {
	return log.Fields{"version": b.Version, "commit": b.Commit, "build_date": b.Date}
}

// Dev сообщает, что бинарник собран без ldflags.
func (b Build) Dev() bool {
	return b.Version == "dev"
}

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }
