package config

import "os"

func IsDebug() bool {
	return os.Getenv("LOANPILOT_DEBUG") == "1"
}
